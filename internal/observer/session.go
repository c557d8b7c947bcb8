package observer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/l1jgo/zonelights/internal/net/packet"
)

const (
	writeWait   = 5 * time.Second
	readWait    = 60 * time.Second
	pingPeriod  = 25 * time.Second
	maxReadSize = 512
)

// Session is one connected viewer. Network I/O runs in dedicated
// goroutines; the hub only ever calls Send, which never blocks.
type Session struct {
	ID uint64
	IP string

	conn    *websocket.Conn
	state   atomic.Int32 // packet.SessionState stored as int32
	flags   atomic.Uint32
	limiter *rate.Limiter

	OutQueue chan []byte
	dropped  atomic.Uint64

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uint64, ip string, queueSize, maxFPS int, log *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		IP:       ip,
		conn:     conn,
		limiter:  rate.NewLimiter(rate.Limit(maxFPS), 1),
		OutQueue: make(chan []byte, queueSize),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("viewer", id)),
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

func (s *Session) Flags() byte           { return byte(s.flags.Load()) }
func (s *Session) SetFlags(f byte)       { s.flags.Store(uint32(f)) }
func (s *Session) Dropped() uint64       { return s.dropped.Load() }
func (s *Session) IsClosed() bool        { return s.closed.Load() }
func (s *Session) Done() <-chan struct{} { return s.closeCh }

// Send queues a packet. When the queue is full the packet is dropped;
// a slow viewer only loses frames, it never stalls the hub.
func (s *Session) Send(data []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.OutQueue <- data:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// AllowFrame applies the per-viewer frame rate limit.
func (s *Session) AllowFrame() bool {
	return s.limiter.Allow()
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateClosing)
		close(s.closeCh)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		s.conn.Close()
	})
}

// readLoop dispatches viewer packets through the registry until the
// connection fails.
func (s *Session) readLoop(reg *packet.Registry) {
	defer s.Close()

	s.conn.SetReadLimit(maxReadSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
		if mt != websocket.BinaryMessage {
			continue
		}
		if err := reg.Dispatch(s, s.State(), data); err != nil {
			s.log.Debug("dispatch", zap.Error(err))
		}
	}
}

// writeLoop drains OutQueue to the websocket and keeps the link alive.
func (s *Session) writeLoop() {
	defer s.Close()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case data := <-s.OutQueue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
