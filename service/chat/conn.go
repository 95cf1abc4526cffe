package chat

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ArgbRelay/tools/errs"

	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle of one transport connection.
type ConnState int32

const (
	ConnOpen ConnState = iota
	// ConnCloseReceived: the peer sent a close frame we have not answered yet.
	ConnCloseReceived
	ConnClosed
	ConnAborted
)

func (s ConnState) String() string {
	switch s {
	case ConnOpen:
		return "open"
	case ConnCloseReceived:
		return "close_received"
	case ConnClosed:
		return "closed"
	case ConnAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Conn is the capability set the relay needs from a client connection.
type Conn interface {
	// Read blocks for the next data frame.
	Read() (messageType int, data []byte, err error)
	// Send writes payload as one text frame, bounded by ctx.
	Send(ctx context.Context, payload []byte) error
	// AckClose answers a received close frame with a normal closure.
	AckClose() error
	// Abort tears the transport down without a close handshake.
	Abort()
	// Release frees the transport. It is safe to call more than once.
	Release() error
	State() ConnState
	RemoteAddr() string
}

const (
	writeWait  = 10 * time.Second
	closeGrace = time.Second
	sendChunk  = 4096
)

// ConnOptions tune a websocket connection. PingPeriod 0 disables keepalive.
type ConnOptions struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
}

func (o *ConnOptions) norm() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4096
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Upgrade switches an HTTP request to a websocket and wraps it.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ConnOptions) (*WsConn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errs.WrapMsg(err, "upgrade websocket")
	}
	return NewWsConn(ws, opts), nil
}

// WsConn adapts a gorilla connection. gorilla allows one concurrent writer,
// so data frames go through writeMu.
type WsConn struct {
	ws    *websocket.Conn
	opts  ConnOptions
	state atomic.Int32

	writeMu     sync.Mutex
	releaseOnce sync.Once
	stopPing    chan struct{}
}

func NewWsConn(ws *websocket.Conn, opts ConnOptions) *WsConn {
	opts.norm()
	c := &WsConn{ws: ws, opts: opts, stopPing: make(chan struct{})}
	c.state.Store(int32(ConnOpen))

	ws.SetReadLimit(opts.ReadLimit)
	ws.SetCloseHandler(func(code int, text string) error {
		c.state.CompareAndSwap(int32(ConnOpen), int32(ConnCloseReceived))
		return nil
	})
	if opts.PingPeriod > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(opts.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(opts.PongWait))
		})
		go c.pingLoop()
	}
	return c
}

func (c *WsConn) State() ConnState { return ConnState(c.state.Load()) }

func (c *WsConn) RemoteAddr() string {
	if a := c.ws.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (c *WsConn) Read() (int, []byte, error) {
	return c.ws.ReadMessage()
}

// Send writes payload as one text message. A write that fails or is cut
// short by ctx leaves the stream unusable, so the connection is aborted.
func (c *WsConn) Send(ctx context.Context, payload []byte) error {
	if c.State() != ConnOpen {
		return errs.ErrPeerUnreachable.WrapMsg("connection not open", "state", c.State())
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)

	// net.Conn deadlines may be moved from any goroutine; this interrupts the frame being flushed
	stop := context.AfterFunc(ctx, func() { _ = c.ws.NetConn().SetWriteDeadline(time.Now()) })
	err := c.writeText(ctx, payload)
	stop()
	if err == nil {
		return nil
	}

	c.Abort()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return errs.ErrPeerUnreachable.WrapMsg(err.Error())
}

// writeText streams payload in sendChunk pieces. gorilla re-arms the write
// deadline for every frame, so ctx is checked between pieces as well.
func (c *WsConn) writeText(ctx context.Context, payload []byte) error {
	w, err := c.ws.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	for len(payload) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(len(payload), sendChunk)
		if _, err := w.Write(payload[:n]); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return w.Close()
}

func (c *WsConn) AckClose() error {
	if !c.state.CompareAndSwap(int32(ConnCloseReceived), int32(ConnClosed)) {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Acknowledge Close frame")
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); err != nil {
		return errs.ErrConnectionFault.WrapMsg("write close ack", "err", err)
	}
	return nil
}

// Close starts a normal closing handshake from our side.
func (c *WsConn) Close() error {
	for {
		s := c.State()
		if s == ConnClosed || s == ConnAborted {
			return nil
		}
		if c.state.CompareAndSwap(int32(s), int32(ConnClosed)) {
			break
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	return nil
}

func (c *WsConn) Abort() {
	for {
		s := c.State()
		if s == ConnClosed || s == ConnAborted {
			break
		}
		if c.state.CompareAndSwap(int32(s), int32(ConnAborted)) {
			break
		}
	}
	_ = c.Release()
}

func (c *WsConn) Release() error {
	var err error
	c.releaseOnce.Do(func() {
		close(c.stopPing)
		err = c.ws.Close()
	})
	return err
}

func (c *WsConn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			if c.State() != ConnOpen {
				return
			}
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

var _ Conn = (*WsConn)(nil)
