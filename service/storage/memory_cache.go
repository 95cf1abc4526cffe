package storage

import (
	"context"
	"sync"
	"time"

	"ArgbRelay/module/relay/model"
)

type MemoryCacheConf struct {
	SweepEvery time.Duration    // 清理周期
	Clock      func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *MemoryCacheConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
}

type memEntry struct {
	ac       model.AuthContext
	expireAt time.Time
}

// MemoryAuthCache is a process-local AuthCache. Expired entries read as absent
// immediately and are removed by a background sweeper.
type MemoryAuthCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry

	conf     MemoryCacheConf
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewMemoryAuthCache(conf MemoryCacheConf) *MemoryAuthCache {
	conf.norm()
	c := &MemoryAuthCache{
		entries: make(map[string]memEntry),
		conf:    conf,
		stopCh:  make(chan struct{}),
	}
	go c.sweeper()
	return c
}

func (c *MemoryAuthCache) Set(_ context.Context, clientID string, ac model.AuthContext, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[clientID] = memEntry{ac: ac, expireAt: c.conf.Clock().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryAuthCache) Get(_ context.Context, clientID string) (model.AuthContext, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[clientID]
	c.mu.RUnlock()
	if !ok || !c.conf.Clock().Before(e.expireAt) {
		return model.AuthContext{}, false, nil
	}
	return e.ac, true, nil
}

func (c *MemoryAuthCache) Delete(_ context.Context, clientID string) error {
	c.mu.Lock()
	delete(c.entries, clientID)
	c.mu.Unlock()
	return nil
}

// Len counts stored entries, expired ones included until swept.
func (c *MemoryAuthCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryAuthCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *MemoryAuthCache) sweeper() {
	t := time.NewTicker(c.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			c.sweepOnce(c.conf.Clock())
		}
	}
}

func (c *MemoryAuthCache) sweepOnce(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if !now.Before(e.expireAt) {
			delete(c.entries, id)
		}
	}
}
