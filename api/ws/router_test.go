package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nightwatch-game/server/game/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { return zap.NewNop() }

// newSession creates a connectionless Session whose outgoing packets stay queued.
func newSession(playerID string) *player.Session {
	return &player.Session{
		PlayerID: playerID,
		SendChan: make(chan []byte, 256),
		Done:     make(chan struct{}),
	}
}

func makePacket(t *testing.T, seq uint64, msgType string, payload interface{}) []byte {
	t.Helper()
	p, _ := json.Marshal(payload)
	pkt := player.Packet{Seq: seq, Type: msgType, Payload: p}
	b, err := json.Marshal(pkt)
	require.NoError(t, err)
	return b
}

func nextPacket(t *testing.T, s *player.Session) player.Packet {
	t.Helper()
	select {
	case raw := <-s.SendChan:
		var pkt player.Packet
		require.NoError(t, json.Unmarshal(raw, &pkt))
		return pkt
	default:
		t.Fatal("no packet queued")
		return player.Packet{}
	}
}

func counter(n *int) HandlerFunc {
	return func(context.Context, *player.Session, json.RawMessage) error {
		*n++
		return nil
	}
}

func TestRouter_Dispatch_Basic(t *testing.T) {
	r := NewRouter(nop())
	calls := 0
	r.On("ping", counter(&calls))

	r.Dispatch(newSession("p1"), makePacket(t, 1, "ping", nil))
	assert.Equal(t, 1, calls)
}

func TestRouter_Dispatch_MalformedJSON(t *testing.T) {
	r := NewRouter(nop())
	s := newSession("p1")
	r.Dispatch(s, []byte("not json"))
	assert.Empty(t, s.SendChan)
}

func TestRouter_Dispatch_UnknownType(t *testing.T) {
	r := NewRouter(nop())
	calls := 0
	r.On("known", counter(&calls))
	r.Dispatch(newSession("p1"), makePacket(t, 1, "unknown", nil))
	assert.Zero(t, calls)
}

func TestRouter_Dispatch_AntiReplay(t *testing.T) {
	r := NewRouter(nop())
	calls := 0
	r.On("msg", counter(&calls))
	s := newSession("p1")

	r.Dispatch(s, makePacket(t, 5, "msg", nil))
	r.Dispatch(s, makePacket(t, 5, "msg", nil))
	r.Dispatch(s, makePacket(t, 3, "msg", nil))
	assert.Equal(t, 1, calls)

	r.Dispatch(s, makePacket(t, 6, "msg", nil))
	r.Dispatch(s, makePacket(t, 100, "msg", nil))
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint64(100), s.LastSeq)
}

func TestRouter_Dispatch_SeqZeroSkipsAntiReplay(t *testing.T) {
	r := NewRouter(nop())
	calls := 0
	r.On("msg", counter(&calls))
	s := newSession("p1")
	s.LastSeq = 100

	r.Dispatch(s, makePacket(t, 0, "msg", nil))
	r.Dispatch(s, makePacket(t, 0, "msg", nil))
	assert.Equal(t, 2, calls)
}

func TestRouter_Dispatch_PayloadPassed(t *testing.T) {
	r := NewRouter(nop())
	var got map[string]interface{}
	r.On("data", func(_ context.Context, _ *player.Session, raw json.RawMessage) error {
		return json.Unmarshal(raw, &got)
	})
	r.Dispatch(newSession("p1"), makePacket(t, 1, "data", map[string]interface{}{"key": "value"}))
	assert.Equal(t, "value", got["key"])
}

func TestRouter_Dispatch_HandlerErrorIsReported(t *testing.T) {
	r := NewRouter(nop())
	r.On("err", func(context.Context, *player.Session, json.RawMessage) error { return assert.AnError })
	s := newSession("p1")

	r.Dispatch(s, makePacket(t, 7, "err", nil))
	pkt := nextPacket(t, s)
	assert.Equal(t, "error", pkt.Type)

	var body errorPayload
	require.NoError(t, json.Unmarshal(pkt.Payload, &body))
	assert.Equal(t, "err", body.Type)
	assert.Equal(t, uint64(7), body.Seq)
	assert.Equal(t, assert.AnError.Error(), body.Error)
}

func TestRouter_Dispatch_PanicIsRecovered(t *testing.T) {
	r := NewRouter(nop())
	r.On("boom", func(context.Context, *player.Session, json.RawMessage) error { panic("boom") })
	s := newSession("p1")

	assert.NotPanics(t, func() { r.Dispatch(s, makePacket(t, 1, "boom", nil)) })
	assert.Equal(t, "error", nextPacket(t, s).Type)
}

func TestRouter_TraceIDFromCtx(t *testing.T) {
	r := NewRouter(nop())
	var traceID string
	r.On("trace", func(ctx context.Context, _ *player.Session, _ json.RawMessage) error {
		traceID = TraceIDFromCtx(ctx)
		return nil
	})
	s := newSession("p1")
	r.Dispatch(s, makePacket(t, 1, "trace", nil))
	assert.NotEmpty(t, traceID)
	assert.Equal(t, s.TraceID, traceID)

	assert.Equal(t, "", TraceIDFromCtx(context.Background()))
}

func TestRouter_ReplaceHandler(t *testing.T) {
	r := NewRouter(nop())
	var calls []string
	r.On("msg", func(context.Context, *player.Session, json.RawMessage) error {
		calls = append(calls, "first")
		return nil
	})
	r.On("msg", func(context.Context, *player.Session, json.RawMessage) error {
		calls = append(calls, "second")
		return nil
	})
	r.Dispatch(newSession("p1"), makePacket(t, 1, "msg", nil))
	assert.Equal(t, []string{"second"}, calls)
}
