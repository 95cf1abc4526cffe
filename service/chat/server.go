package chat

import (
	"context"
	"sync"
	"time"

	"ArgbRelay/module/relay/model"
	"ArgbRelay/tools/errs"
	"ArgbRelay/tools/ids"

	"go.uber.org/zap"
)

// Server is the relay: it owns the registry and runs one handler per admitted connection.
type Server struct {
	reg     *Registry
	handler *Handler
	ids     *ids.Generator
	log     *zap.Logger

	mu     sync.Mutex
	live   map[string]context.CancelFunc // entry id -> cancel
	closed bool
	wg     sync.WaitGroup
}

type ServerConf struct {
	NodeID  int64
	Handler HandlerConf
}

func NewServer(reg *Registry, conf ServerConf, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return &Server{
		reg:     reg,
		handler: NewHandler(reg, conf.Handler, log),
		ids:     ids.NewGenerator(conf.NodeID),
		log:     log,
		live:    make(map[string]context.CancelFunc),
	}
}

func (s *Server) Registry() *Registry { return s.reg }

// Serve registers conn under channel and blocks until its handler has finished and deregistered it.
func (s *Server) Serve(ctx context.Context, conn Conn, client model.Client, channel model.Channel) error {
	e := &Entry{
		ID:       s.ids.NextString(),
		Conn:     conn,
		Client:   client,
		JoinedAt: time.Now(),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Abort()
		_ = conn.Release()
		return errs.ErrServerInternal.WrapMsg("relay is shutting down")
	}
	s.live[e.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.live, e.ID)
		s.mu.Unlock()
		s.wg.Done()
	}()

	s.reg.AddConnection(channel.ID, e)
	s.log.Info("[Relay] connection admitted",
		zap.String("conn_id", e.ID),
		zap.String("client", client.ID),
		zap.String("channel", channel.ID),
		zap.Strings("roles", client.Roles.Strings()),
		zap.String("remote", conn.RemoteAddr()))

	s.handler.Run(ctx, e)
	return nil
}

// Live counts connections currently being served.
func (s *Server) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *Server) Stats() []ChannelStats {
	return s.reg.Channels()
}

// Shutdown refuses new connections, cancels the live ones and waits for their
// handlers, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, cancel := range s.live {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.reg.Reset()
		return nil
	case <-ctx.Done():
		return errs.WrapMsg(ctx.Err(), "relay shutdown")
	}
}
