package chat

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"ArgbRelay/tools/errs"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the handler state of one connection.
type State int32

const (
	StateAdmitted State = iota
	StateInitialStateSent
	StateReceiving
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAdmitted:
		return "admitted"
	case StateInitialStateSent:
		return "initial_state_sent"
	case StateReceiving:
		return "receiving"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type HandlerConf struct {
	SendTimeout time.Duration // 单次发送上限
	// OnState, when set, observes every state transition.
	OnState func(e *Entry, s State)
}

func (c *HandlerConf) norm() {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
}

// Handler drives one admitted connection from registration to cleanup.
type Handler struct {
	reg  *Registry
	conf HandlerConf
	log  *zap.Logger
}

func NewHandler(reg *Registry, conf HandlerConf, log *zap.Logger) *Handler {
	conf.norm()
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{reg: reg, conf: conf, log: log}
}

// Run serves e until the peer closes, ctx is cancelled or the transport fails.
// The entry must already be registered; Run always deregisters it and releases the connection.
func (h *Handler) Run(ctx context.Context, e *Entry) {
	log := h.log.With(
		zap.String("conn_id", e.ID),
		zap.String("client", e.Client.ID),
		zap.String("channel", e.ChannelID),
	)

	defer h.terminate(e, log)
	defer func() {
		if r := recover(); r != nil {
			err := errs.ErrPanicMsg(r, errs.ConnectionFault, "connection fault")
			log.Error("[WS] handler panic", zap.Error(err))
		}
	}()

	// cancellation unblocks a pending read
	stop := context.AfterFunc(ctx, e.Conn.Abort)
	defer stop()

	h.transition(e, StateAdmitted)

	if e.IsSender() {
		if payload, ok := h.reg.GetPayload(e.ChannelID); ok {
			if err := h.send(ctx, e, payload); err != nil {
				log.Warn("[WS] initial state not delivered", zap.Error(err))
			}
		}
		h.transition(e, StateInitialStateSent)
	}

	h.transition(e, StateReceiving)
	for {
		mt, data, err := e.Conn.Read()
		if err != nil {
			h.readFailed(ctx, e, err, log)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		payload, err := Decode(data)
		if err != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			log.Warn("[WS] malformed message skipped", zap.ByteString("sample", sample), zap.Int("len", len(data)), zap.Error(err))
			continue
		}

		h.reg.SetPayload(e.ChannelID, payload)
		h.broadcast(ctx, e, payload)
	}
}

func (h *Handler) readFailed(ctx context.Context, e *Entry, err error, log *zap.Logger) {
	switch {
	case e.Conn.State() == ConnCloseReceived:
		if aerr := e.Conn.AckClose(); aerr != nil {
			log.Info("[WS] close ack failed", zap.Error(aerr))
		}
		h.transition(e, StateClosing)
		log.Info("[WS] peer closed")
	case ctx.Err() != nil:
		h.transition(e, StateClosing)
		log.Info("[WS] connection cancelled")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		h.transition(e, StateClosing)
		log.Info("[WS] peer closed", zap.Error(err))
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			log.Info("[WS] read timeout", zap.Error(err))
			return
		}
		log.Warn("[WS] connection fault", zap.Error(errs.ErrConnectionFault.WrapMsg(err.Error())))
	}
}

// broadcast sends payload to every open receiver of the sender's channel and waits for all sends.
// A receiver whose send fails is aborted.
func (h *Handler) broadcast(ctx context.Context, from *Entry, payload []byte) {
	receivers := h.reg.GetReceivers(from.ChannelID)
	if len(receivers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, r := range receivers {
		if r.Conn.State() != ConnOpen {
			continue
		}
		wg.Add(1)
		go func(to *Entry) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					h.log.Error("[WS] send panic", zap.String("conn_id", to.ID), zap.Error(errs.ErrPanic(rec)))
				}
			}()
			if err := h.send(ctx, to, payload); err != nil {
				h.log.Warn("[WS] receiver unreachable, dropping it",
					zap.String("channel", from.ChannelID),
					zap.String("from", from.Client.ID),
					zap.String("to", to.Client.ID),
					zap.String("conn_id", to.ID),
					zap.Error(err))
				// the receiver's own handler wakes from Read and deregisters it
				to.Conn.Abort()
			}
		}(r)
	}
	wg.Wait()
}

// send is bounded by SendTimeout. A send cut short because ctx ended is not an error.
func (h *Handler) send(ctx context.Context, to *Entry, payload []byte) error {
	sctx, cancel := context.WithTimeout(ctx, h.conf.SendTimeout)
	defer cancel()

	err := to.Conn.Send(sctx, payload)
	if err == nil || ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.ErrPeerUnreachable.WrapMsg("send timed out", "timeout", h.conf.SendTimeout)
	}
	if errs.CodeOf(err) == 0 {
		return errs.ErrPeerUnreachable.WrapMsg(err.Error())
	}
	return err
}

func (h *Handler) terminate(e *Entry, log *zap.Logger) {
	if s := e.Conn.State(); s != ConnClosed && s != ConnAborted {
		e.Conn.Abort()
	}
	h.reg.RemoveConnection(e.ChannelID, e)
	if err := e.Conn.Release(); err != nil {
		log.Debug("[WS] release", zap.Error(err))
	}
	h.transition(e, StateTerminated)
	log.Info("[WS] connection terminated")
}

func (h *Handler) transition(e *Entry, s State) {
	h.log.Debug("[WS] state", zap.String("conn_id", e.ID), zap.Stringer("state", s))
	if h.conf.OnState != nil {
		h.conf.OnState(e, s)
	}
}
