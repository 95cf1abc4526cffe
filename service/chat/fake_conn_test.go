package chat

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

type frame struct {
	mt   int
	data []byte
	err  error
}

// fakeConn is an in-memory Conn. Closing in simulates a peer close frame.
type fakeConn struct {
	in chan frame

	mu       sync.Mutex
	state    ConnState
	sent     [][]byte
	sendErr  error
	block    bool // Send waits for ctx
	released int
	acked    bool
	sentCh   chan []byte

	abortOnce sync.Once
	aborted   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan frame, 16),
		sentCh:  make(chan []byte, 16),
		aborted: make(chan struct{}),
	}
}

func (f *fakeConn) push(s string) { f.in <- frame{mt: websocket.TextMessage, data: []byte(s)} }

func (f *fakeConn) Read() (int, []byte, error) {
	select {
	case fr, ok := <-f.in:
		if !ok {
			f.mu.Lock()
			if f.state == ConnOpen {
				f.state = ConnCloseReceived
			}
			f.mu.Unlock()
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		if fr.err != nil {
			return 0, nil, fr.err
		}
		return fr.mt, fr.data, nil
	case <-f.aborted:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) Send(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	state, sendErr, block := f.state, f.sendErr, f.block
	f.mu.Unlock()

	if state != ConnOpen {
		return errors.New("not open")
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if sendErr != nil {
		return sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, append([]byte(nil), payload...))
	f.mu.Unlock()
	f.sentCh <- payload
	return nil
}

func (f *fakeConn) AckClose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == ConnCloseReceived {
		f.state = ConnClosed
		f.acked = true
	}
	return nil
}

func (f *fakeConn) Abort() {
	f.mu.Lock()
	if f.state != ConnClosed {
		f.state = ConnAborted
	}
	f.mu.Unlock()
	f.abortOnce.Do(func() { close(f.aborted) })
}

func (f *fakeConn) Release() error {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) State() ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) RemoteAddr() string { return "fake" }

func (f *fakeConn) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, b := range f.sent {
		out = append(out, string(b))
	}
	return out
}

func (f *fakeConn) setState(s ConnState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
