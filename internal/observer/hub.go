package observer

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/l1jgo/zonelights/internal/net/packet"
	"github.com/l1jgo/zonelights/internal/sink"
)

type hubMsg struct {
	frame   sink.Frame
	release bool
}

// Hub fans light frames out to connected viewers. It implements
// sink.Listener: the game loop hands frames over a buffered channel and
// never waits on the network.
type Hub struct {
	serverName string
	in         chan hubMsg
	reg        *packet.Registry
	dropped    atomic.Uint64

	mu         sync.Mutex
	sessions   map[uint64]*Session
	zoneInfo   []byte // cached S_OPCODE_ZONEINFO for late joiners
	zoneID     int32
	zoneLights int
	hasZone    bool

	log *zap.Logger
}

func NewHub(serverName string, backlog int, log *zap.Logger) *Hub {
	h := &Hub{
		serverName: serverName,
		in:         make(chan hubMsg, backlog),
		reg:        packet.NewRegistry(log),
		sessions:   make(map[uint64]*Session),
		log:        log,
	}
	h.registerHandlers()
	return h
}

func (h *Hub) registerHandlers() {
	h.reg.Register(packet.C_OPCODE_SUBSCRIBE,
		[]packet.SessionState{packet.StateConnected, packet.StateStreaming},
		func(sess any, r *packet.Reader) {
			s := sess.(*Session)
			s.SetFlags(r.ReadC())
			s.SetState(packet.StateStreaming)
			s.log.Debug("viewer subscribed", zap.Uint8("flags", s.Flags()))
		})
	h.reg.Register(packet.C_OPCODE_PAUSE,
		[]packet.SessionState{packet.StateStreaming},
		func(sess any, _ *packet.Reader) {
			sess.(*Session).SetState(packet.StateConnected)
		})
}

// OnFrame implements sink.Listener.
func (h *Hub) OnFrame(f sink.Frame) {
	h.enqueue(hubMsg{frame: f})
}

// OnRelease implements sink.Listener.
func (h *Hub) OnRelease(zoneID int32) {
	h.enqueue(hubMsg{frame: sink.Frame{ZoneID: zoneID}, release: true})
}

func (h *Hub) enqueue(m hubMsg) {
	select {
	case h.in <- m:
	default:
		h.dropped.Add(1)
	}
}

// Dropped returns how many frames were discarded because the hub lagged.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Run delivers queued frames until ctx is done, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, s := range h.sessions {
				s.Close()
			}
			h.mu.Unlock()
			return
		case m := <-h.in:
			if m.release {
				h.release(m.frame.ZoneID)
			} else {
				h.publish(m.frame)
			}
		}
	}
}

// Register adds a viewer and sends it the greeting and current zone.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
	s.Send(BuildHello(h.serverName))
	if h.zoneInfo != nil {
		s.Send(h.zoneInfo)
	}
}

func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

func (h *Hub) publish(f sink.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasZone || h.zoneID != f.ZoneID || h.zoneLights != len(f.Lights) {
		h.zoneInfo = BuildZoneInfo(f)
		h.zoneID = f.ZoneID
		h.zoneLights = len(f.Lights)
		h.hasZone = true
		for _, s := range h.sessions {
			s.Send(h.zoneInfo)
		}
	}

	var full, visible []byte
	for _, s := range h.sessions {
		if s.State() != packet.StateStreaming || !s.AllowFrame() {
			continue
		}
		if s.Flags()&FlagVisibleOnly != 0 {
			if visible == nil {
				visible = BuildLightFrame(f, true)
			}
			s.Send(visible)
			continue
		}
		if full == nil {
			full = BuildLightFrame(f, false)
		}
		s.Send(full)
	}
}

func (h *Hub) release(zoneID int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.zoneInfo = nil
	h.hasZone = false
	msg := BuildZoneRelease(zoneID)
	for _, s := range h.sessions {
		s.Send(msg)
	}
}
