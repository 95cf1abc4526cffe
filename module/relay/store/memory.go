package store

import (
	"context"
	"sort"
	"sync"

	"ArgbRelay/global/config"
	"ArgbRelay/module/relay/model"
	"ArgbRelay/tools/errs"

	"go.uber.org/zap"
)

// MemoryStore serves clients and channels from memory, typically seeded from config.
type MemoryStore struct {
	mu       sync.RWMutex
	clients  map[string]model.Client
	channels map[string]model.Channel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:  make(map[string]model.Client),
		channels: make(map[string]model.Channel),
	}
}

// NewMemoryStoreFromSeed loads the seed section of the config.
func NewMemoryStoreFromSeed(seed config.SeedConfig, log *zap.Logger) *MemoryStore {
	if log == nil {
		log = zap.NewNop()
	}
	s := NewMemoryStore()
	for _, c := range seed.Clients {
		s.PutClient(model.Client{
			ID:         c.ID,
			Name:       c.Name,
			Roles:      toRoleSet(log, c.ID, c.Roles),
			SecretHash: c.SecretHash,
		})
	}
	for _, ch := range seed.Channels {
		s.PutChannel(model.Channel{
			ID:      ch.ID,
			Name:    ch.Name,
			OwnerID: ch.OwnerID,
			Members: append([]string(nil), ch.Members...),
		})
	}
	return s
}

func (s *MemoryStore) PutClient(c model.Client) {
	s.mu.Lock()
	s.clients[c.ID] = c
	s.mu.Unlock()
}

func (s *MemoryStore) PutChannel(ch model.Channel) {
	s.mu.Lock()
	s.channels[ch.ID] = ch
	s.mu.Unlock()
}

func (s *MemoryStore) GetClient(_ context.Context, id string) (*model.Client, error) {
	s.mu.RLock()
	c, ok := s.clients[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("client", "id", id)
	}
	return &c, nil
}

// GetChannelByMemberID picks the lowest channel id when a client is in several.
func (s *MemoryStore) GetChannelByMemberID(_ context.Context, clientID string) (*model.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ch := s.channels[id]
		if ch.IsMember(clientID) {
			ch.Members = append([]string(nil), ch.Members...)
			return &ch, nil
		}
	}
	return nil, errs.ErrRecordNotFound.WrapMsg("channel", "member", clientID)
}

func (s *MemoryStore) Close(context.Context) error { return nil }

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
