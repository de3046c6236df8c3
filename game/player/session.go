package player

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Packet is the WS message envelope in both directions.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one player's WebSocket connection into an arena.
type Session struct {
	PlayerID string
	ArenaID  string
	Player   *Player

	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64

	closeOnce sync.Once
	logger    *zap.Logger
}

// NewSession starts the write goroutine for conn.
func NewSession(p *Player, arenaID string, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		PlayerID: p.ID(),
		ArenaID:  arenaID,
		Player:   p,
		Conn:     conn,
		SendChan: make(chan []byte, sendChanBuf),
		Done:     make(chan struct{}),
		logger:   logger.With(zap.String("player_id", p.ID())),
	}
	go s.writePump()
	return s
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.SendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes pkt and queues it. Drops when the queue is full or the session closed.
func (s *Session) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	s.SendRaw(data, pkt.Type)
}

// SendJSON wraps v as the payload of a packet of the given type.
func (s *Session) SendJSON(msgType string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Send(&Packet{Type: msgType, Payload: payload})
}

// SendRaw queues pre-encoded bytes; msgType is only used for logging.
func (s *Session) SendRaw(data []byte, msgType string) {
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		if !s.IsClosed() {
			s.logger.Warn("send channel full, dropping packet", zap.String("type", msgType))
		}
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.Done) })
}

func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// SendPong answers a client ping with both timestamps.
func (s *Session) SendPong(clientTS int64) {
	s.SendJSON("pong", struct {
		ClientTS int64 `json:"client_ts"`
		ServerTS int64 `json:"server_ts"`
	}{clientTS, time.Now().UnixMilli()})
}

func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}
