package chat

import (
	"sort"
	"sync"
	"time"

	"ArgbRelay/module/relay/model"
)

// DefaultPayload is the state of a channel nobody has updated yet.
const DefaultPayload = "0000000000255"

// Entry is one admitted connection. It is owned by the handler serving it.
type Entry struct {
	ID        string
	Conn      Conn
	Client    model.Client
	ChannelID string
	JoinedAt  time.Time
}

func (e *Entry) IsReceiver() bool { return e.Client.HasRole(model.RoleReceiver) }
func (e *Entry) IsSender() bool   { return e.Client.HasRole(model.RoleSender) }

// ChannelState holds the payload and the entries of one channel.
type ChannelState struct {
	id string

	mu      sync.Mutex
	payload []byte
	entries map[string]*Entry // entry id -> entry
}

func newChannelState(id string) *ChannelState {
	return &ChannelState{
		id:      id,
		payload: []byte(DefaultPayload),
		entries: make(map[string]*Entry),
	}
}

// ChannelStats is a point-in-time view of one channel.
type ChannelStats struct {
	ID        string `json:"id"`
	Members   int    `json:"members"`
	Senders   int    `json:"senders"`
	Receivers int    `json:"receivers"`
	Payload   string `json:"payload"`
}

// Registry maps channel ids to their state. Each channel has its own lock,
// so work on distinct channels never contends.
type Registry struct {
	channels sync.Map // channel id -> *ChannelState
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) state(channelID string) (*ChannelState, bool) {
	v, ok := r.channels.Load(channelID)
	if !ok {
		return nil, false
	}
	return v.(*ChannelState), true
}

// AddConnection creates the channel with the default payload on first use.
func (r *Registry) AddConnection(channelID string, e *Entry) {
	st, ok := r.state(channelID)
	if !ok {
		v, _ := r.channels.LoadOrStore(channelID, newChannelState(channelID))
		st = v.(*ChannelState)
	}
	e.ChannelID = channelID

	st.mu.Lock()
	st.entries[e.ID] = e
	st.mu.Unlock()
}

// RemoveConnection drops the entry with e's id whatever its connection state.
// Unknown channels and entries are ignored; the result reports whether anything was removed.
func (r *Registry) RemoveConnection(channelID string, e *Entry) bool {
	if e == nil {
		return false
	}
	st, ok := r.state(channelID)
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.entries[e.ID]; !ok {
		return false
	}
	delete(st.entries, e.ID)
	return true
}

// GetReceivers snapshots the receiver entries of a channel.
func (r *Registry) GetReceivers(channelID string) []*Entry {
	return r.snapshot(channelID, (*Entry).IsReceiver)
}

// Members snapshots every entry of a channel.
func (r *Registry) Members(channelID string) []*Entry {
	return r.snapshot(channelID, nil)
}

func (r *Registry) snapshot(channelID string, keep func(*Entry) bool) []*Entry {
	st, ok := r.state(channelID)
	if !ok {
		return nil
	}
	st.mu.Lock()
	out := make([]*Entry, 0, len(st.entries))
	for _, e := range st.entries {
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	st.mu.Unlock()
	return out
}

// GetPayload returns a copy of the channel payload.
func (r *Registry) GetPayload(channelID string) ([]byte, bool) {
	st, ok := r.state(channelID)
	if !ok {
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]byte(nil), st.payload...), true
}

// SetPayload replaces the payload; it does nothing for an unknown channel.
func (r *Registry) SetPayload(channelID string, payload []byte) bool {
	st, ok := r.state(channelID)
	if !ok {
		return false
	}
	b := append([]byte(nil), payload...)
	st.mu.Lock()
	st.payload = b
	st.mu.Unlock()
	return true
}

// Channels lists every known channel sorted by id, including empty ones.
func (r *Registry) Channels() []ChannelStats {
	var out []ChannelStats
	r.channels.Range(func(_, v any) bool {
		st := v.(*ChannelState)
		st.mu.Lock()
		cs := ChannelStats{ID: st.id, Members: len(st.entries), Payload: string(st.payload)}
		for _, e := range st.entries {
			if e.IsSender() {
				cs.Senders++
			}
			if e.IsReceiver() {
				cs.Receivers++
			}
		}
		st.mu.Unlock()
		out = append(out, cs)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reset forgets every channel, payloads included.
func (r *Registry) Reset() {
	r.channels.Range(func(k, _ any) bool {
		r.channels.Delete(k)
		return true
	})
}
