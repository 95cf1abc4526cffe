package chat

import (
	"fmt"
	"sync"
	"testing"

	"ArgbRelay/module/relay/model"

	"github.com/stretchr/testify/require"
)

func newEntry(id string, roles ...model.Role) *Entry {
	return &Entry{
		ID:     id,
		Conn:   newFakeConn(),
		Client: model.Client{ID: "client-" + id, Roles: model.NewRoleSet(roles...)},
	}
}

func TestRegistry_AddAndReceivers(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	sender := newEntry("1", model.RoleSender)
	recv := newEntry("2", model.RoleReceiver)
	both := newEntry("3", model.RoleSender, model.RoleReceiver)

	r.AddConnection("chan-1", sender)
	r.AddConnection("chan-1", recv)
	r.AddConnection("chan-1", both)

	req.Len(r.Members("chan-1"), 3)
	req.Equal("chan-1", sender.ChannelID)
	req.ElementsMatch([]*Entry{recv, both}, r.GetReceivers("chan-1"))
	req.Empty(r.GetReceivers("unknown"))
}

func TestRegistry_DefaultPayload(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	_, ok := r.GetPayload("chan-1")
	req.False(ok)

	r.AddConnection("chan-1", newEntry("1", model.RoleSender))
	p, ok := r.GetPayload("chan-1")
	req.True(ok)
	req.Equal(DefaultPayload, string(p))
}

func TestRegistry_SetPayload(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	req.False(r.SetPayload("nope", []byte("100001")))
	_, ok := r.GetPayload("nope")
	req.False(ok)

	e := newEntry("1", model.RoleSender)
	r.AddConnection("chan-1", e)
	for _, v := range []string{"100001", "0001002003004", "299999"} {
		req.True(r.SetPayload("chan-1", []byte(v)))
	}
	p, _ := r.GetPayload("chan-1")
	req.Equal("299999", string(p))

	// callers cannot alias the stored payload
	in := []byte("100002")
	r.SetPayload("chan-1", in)
	in[0] = 'X'
	p, _ = r.GetPayload("chan-1")
	p[1] = 'Y'
	again, _ := r.GetPayload("chan-1")
	req.Equal("100002", string(again))
}

func TestRegistry_PayloadSurvivesReconnect(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	e := newEntry("1", model.RoleSender)
	r.AddConnection("chan-1", e)
	r.SetPayload("chan-1", []byte("100042"))
	req.True(r.RemoveConnection("chan-1", e))
	req.Empty(r.Members("chan-1"))

	r.AddConnection("chan-1", newEntry("2", model.RoleSender))
	p, ok := r.GetPayload("chan-1")
	req.True(ok)
	req.Equal("100042", string(p))
}

func TestRegistry_RemoveAnyState(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	for i, st := range []ConnState{ConnOpen, ConnCloseReceived, ConnClosed, ConnAborted} {
		e := newEntry(fmt.Sprint(i), model.RoleReceiver)
		e.Conn.(*fakeConn).setState(st)
		r.AddConnection("chan-1", e)
		req.True(r.RemoveConnection("chan-1", e), st.String())
	}
	req.Empty(r.GetReceivers("chan-1"))
}

func TestRegistry_RemoveNoop(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	e := newEntry("1", model.RoleReceiver)
	req.False(r.RemoveConnection("unknown", e))
	req.False(r.RemoveConnection("unknown", nil))

	r.AddConnection("chan-1", e)
	req.False(r.RemoveConnection("chan-1", newEntry("2", model.RoleReceiver)))
	req.True(r.RemoveConnection("chan-1", e))
	req.False(r.RemoveConnection("chan-1", e))
}

func TestRegistry_ConcurrentChannels(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	const channels, perChannel = 32, 16
	var wg sync.WaitGroup
	for c := 0; c < channels; c++ {
		for i := 0; i < perChannel; i++ {
			wg.Add(1)
			go func(c, i int) {
				defer wg.Done()
				ch := fmt.Sprintf("chan-%d", c)
				e := newEntry(fmt.Sprintf("%d-%d", c, i), model.RoleReceiver)
				r.AddConnection(ch, e)
				r.SetPayload(ch, []byte(fmt.Sprintf("1%05d", i)))
				_ = r.GetReceivers(ch)
			}(c, i)
		}
	}
	wg.Wait()

	stats := r.Channels()
	req.Len(stats, channels)
	for _, s := range stats {
		req.Equal(perChannel, s.Members)
		req.Equal(perChannel, s.Receivers)
		req.Zero(s.Senders)
		req.Len(s.Payload, 6)
	}
}

func TestRegistry_Reset(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	r.AddConnection("a", newEntry("1", model.RoleSender))
	r.AddConnection("b", newEntry("2", model.RoleReceiver))

	req.Len(r.Channels(), 2)
	r.Reset()
	req.Empty(r.Channels())
}
