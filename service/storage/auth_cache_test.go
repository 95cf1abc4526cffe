package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"ArgbRelay/module/relay/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func sampleContext(id string) model.AuthContext {
	return model.AuthContext{
		Channel: model.Channel{ID: "chan-1", Name: "Office", OwnerID: "owner", Members: []string{id}},
		Client:  model.Client{ID: id, Name: "Desk", Roles: model.NewRoleSet(model.RoleReceiver)},
		Token:   model.TokenInfo{Token: "tok-" + id, ExpiresIn: 300},
	}
}

func TestMemoryAuthCache_Expiry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	c := NewMemoryAuthCache(MemoryCacheConf{Clock: clk.Now, SweepEvery: time.Hour})
	defer c.Close()

	req.NoError(c.Set(ctx, "a", sampleContext("a"), 5*time.Minute))

	got, ok, err := c.Get(ctx, "a")
	req.NoError(err)
	req.True(ok)
	req.Equal(sampleContext("a"), got)

	clk.Advance(5*time.Minute - time.Second)
	_, ok, _ = c.Get(ctx, "a")
	req.True(ok)

	// exactly at expiry the entry is gone
	clk.Advance(time.Second)
	_, ok, _ = c.Get(ctx, "a")
	req.False(ok)

	req.Equal(1, c.Len())
	c.sweepOnce(clk.Now())
	req.Equal(0, c.Len())
}

func TestMemoryAuthCache_Replace(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := &fakeClock{now: time.Now()}

	c := NewMemoryAuthCache(MemoryCacheConf{Clock: clk.Now})
	defer c.Close()

	req.NoError(c.Set(ctx, "a", sampleContext("a"), time.Minute))
	clk.Advance(50 * time.Second)

	fresh := sampleContext("a")
	fresh.Token.Token = "second"
	req.NoError(c.Set(ctx, "a", fresh, time.Minute))
	clk.Advance(50 * time.Second)

	got, ok, err := c.Get(ctx, "a")
	req.NoError(err)
	req.True(ok)
	req.Equal("second", got.Token.Token)

	req.NoError(c.Delete(ctx, "a"))
	_, ok, _ = c.Get(ctx, "a")
	req.False(ok)

	_, ok, _ = c.Get(ctx, "")
	req.False(ok)
}

func TestMemoryAuthCache_Sweeper(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := &fakeClock{now: time.Now()}

	c := NewMemoryAuthCache(MemoryCacheConf{Clock: clk.Now, SweepEvery: 5 * time.Millisecond})
	defer c.Close()

	req.NoError(c.Set(ctx, "a", sampleContext("a"), time.Second))
	req.NoError(c.Set(ctx, "b", sampleContext("b"), time.Hour))
	clk.Advance(2 * time.Second)

	req.Eventually(func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
	_, ok, _ := c.Get(ctx, "b")
	req.True(ok)

	req.NoError(c.Close())
	req.NoError(c.Close())
}

func newRedisCache(t *testing.T) (*RedisAuthCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisAuthCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisAuthCache_SetGet(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c, mr := newRedisCache(t)

	req.NoError(c.Set(ctx, "a", sampleContext("a"), 5*time.Minute))
	req.True(mr.Exists("ArgbRelay:Auth:a"))
	req.Equal(5*time.Minute, mr.TTL("ArgbRelay:Auth:a"))

	got, ok, err := c.Get(ctx, "a")
	req.NoError(err)
	req.True(ok)
	req.Equal(sampleContext("a"), got)

	mr.FastForward(5 * time.Minute)
	_, ok, err = c.Get(ctx, "a")
	req.NoError(err)
	req.False(ok)
}

func TestRedisAuthCache_MissAndDelete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c, mr := newRedisCache(t)

	_, ok, err := c.Get(ctx, "nobody")
	req.NoError(err)
	req.False(ok)

	req.NoError(c.Set(ctx, "a", sampleContext("a"), time.Minute))
	req.NoError(c.Delete(ctx, "a"))
	req.False(mr.Exists("ArgbRelay:Auth:a"))

	req.NoError(mr.Set("ArgbRelay:Auth:bad", "{not json"))
	_, ok, err = c.Get(ctx, "bad")
	req.Error(err)
	req.False(ok)
}

func TestRedisAuthCache_BackendDown(t *testing.T) {
	req := require.New(t)
	c, mr := newRedisCache(t)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "a")
	req.Error(err)
	req.False(ok)
}
