package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/nightwatch-game/server/game/player"
	"go.uber.org/zap"
)

// HandlerFunc processes a decoded WS message payload. A returned error is
// reported to the client as an "error" packet.
type HandlerFunc func(ctx context.Context, s *player.Session, payload json.RawMessage) error

// Router dispatches incoming WS packets to registered handlers.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers fn for msgType, replacing any earlier handler.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Dispatch decodes raw bytes, validates seq, and invokes the appropriate handler.
func (r *Router) Dispatch(s *player.Session, raw []byte) {
	var pkt player.Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet", zap.String("player_id", s.PlayerID), zap.Error(err))
		return
	}

	// Seq 0 opts out of replay protection.
	if pkt.Seq != 0 && pkt.Seq <= s.LastSeq {
		r.logger.Warn("replayed or out-of-order packet",
			zap.String("player_id", s.PlayerID),
			zap.Uint64("seq", pkt.Seq),
			zap.Uint64("last_seq", s.LastSeq))
		return
	}
	if pkt.Seq != 0 {
		s.LastSeq = pkt.Seq
	}

	s.TraceID = uuid.NewString()
	ctx := context.WithValue(context.Background(), ctxKeyTraceID{}, s.TraceID)

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type", zap.String("type", pkt.Type), zap.String("player_id", s.PlayerID))
		return
	}

	if err := r.call(ctx, fn, s, pkt.Payload); err != nil {
		r.logger.Warn("handler error",
			zap.String("type", pkt.Type),
			zap.String("player_id", s.PlayerID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
		s.SendJSON("error", errorPayload{Type: pkt.Type, Seq: pkt.Seq, Error: err.Error()})
	}
}

func (r *Router) call(ctx context.Context, fn HandlerFunc, s *player.Session, payload json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("ws handler panicked",
				zap.String("player_id", s.PlayerID),
				zap.Any("recover", rec),
				zap.Stack("stack"))
			err = errInternal
		}
	}()
	return fn(ctx, s, payload)
}

type errorPayload struct {
	Type  string `json:"type"`
	Seq   uint64 `json:"seq,omitempty"`
	Error string `json:"error"`
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the trace ID from a handler context.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
