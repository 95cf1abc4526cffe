package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	mgo "ArgbRelay/data/database/mgo/mongoutil"
	"ArgbRelay/tools/errs"
	"ArgbRelay/tools/safe"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
	healthEvery = 10 * time.Second // 健康检查周期
	failThresh  = 3                // 连续失败阈值
)

// MongoManager keeps one mongo client alive: it connects with backoff, pings
// periodically and reconnects after failThresh failed pings.
type MongoManager struct {
	cfg *mgo.Config
	log *zap.Logger

	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{} // closed once, on the first successful connect
	readyOnce sync.Once

	lastErr atomic.Value // error
}

func NewManager(cfg *mgo.Config, log *zap.Logger) *MongoManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &MongoManager{
		cfg:     cfg,
		log:     log,
		readyCh: make(chan struct{}),
	}
}

// StartAsync runs until ctx is done.
func (m *MongoManager) StartAsync(ctx context.Context) {
	safe.Go(m.log, "mongo", func() {
		for {
			if !m.connect(ctx) {
				return
			}
			m.health(ctx)
			if ctx.Err() != nil {
				return
			}
		}
	}, nil)
}

// connect retries with jittered exponential backoff; false means ctx ended first.
func (m *MongoManager) connect(ctx context.Context) bool {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		cli, err := mgo.NewMongoDB(ctx, m.cfg)
		if err == nil {
			m.mu.Lock()
			m.client = cli
			m.mu.Unlock()

			m.readyOnce.Do(func() { close(m.readyCh) })
			m.log.Info("[Mongo] connected", zap.String("database", m.cfg.Database))
			return true
		}

		m.lastErr.Store(err)
		m.log.Warn("[Mongo] connect failed", zap.Int("attempt", attempt), zap.Error(err))

		backoff := baseBackoff << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1)) // 0~20%
		sleep := backoff - jitter/2

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if attempt < 6 {
			attempt++
		}
	}
}

func (m *MongoManager) health(ctx context.Context) {
	fail := 0
	ticker := time.NewTicker(healthEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return
		case <-ticker.C:
			m.mu.RLock()
			c := m.client
			m.mu.RUnlock()

			if c == nil {
				return
			}
			if err := c.GetDB().Client().Ping(ctx, nil); err != nil {
				fail++
				m.lastErr.Store(err)
				m.log.Warn("[Mongo] ping failed", zap.Int("fail", fail), zap.Error(err))
				if fail >= failThresh {
					m.drop()
					return
				}
			} else {
				fail = 0
			}
		}
	}
}

func (m *MongoManager) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Close(context.Background())
		m.client = nil
	}
}

// Ready is closed after the first successful connect.
func (m *MongoManager) Ready() <-chan struct{} {
	return m.readyCh
}

// Err returns the most recent connect or ping error.
func (m *MongoManager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (m *MongoManager) TryGetDB() (*mongo.Database, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, false
	}
	return m.client.GetDB(), true
}

// WaitReady blocks until the first connect succeeds or ctx ends.
func (m *MongoManager) WaitReady(ctx context.Context) error {
	if _, ok := m.TryGetDB(); ok {
		return nil
	}
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		if err := m.Err(); err != nil {
			return errs.WrapMsg(err, "mongo not ready")
		}
		return errs.WrapMsg(ctx.Err(), "mongo not ready")
	}
}
