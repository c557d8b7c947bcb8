package system

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/l1jgo/zonelights/internal/core/event"
	coresys "github.com/l1jgo/zonelights/internal/core/system"
	"github.com/l1jgo/zonelights/internal/lighting"
	"github.com/l1jgo/zonelights/internal/sink"
	"github.com/l1jgo/zonelights/internal/zone"
)

// Viewpoint supplies the position lights are selected around.
type Viewpoint interface {
	Position() mgl64.Vec3
}

// LightingSystem ticks the active zone's scheduler, emits a LightActivated
// or LightHidden event for every visibility flip and publishes the frame to
// the render sink. Phase 3 (PostUpdate).
type LightingSystem struct {
	mgr *zone.Manager
	vp  Viewpoint
	bus *event.Bus

	zone   *zone.Active
	prev   []bool
	frames uint64
}

func NewLightingSystem(mgr *zone.Manager, vp Viewpoint, bus *event.Bus) *LightingSystem {
	return &LightingSystem{mgr: mgr, vp: vp, bus: bus}
}

func (s *LightingSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

// Frames returns the number of frames published.
func (s *LightingSystem) Frames() uint64 { return s.frames }

func (s *LightingSystem) Update(dt time.Duration) {
	a := s.mgr.Active()
	if a == nil {
		s.zone = nil
		return
	}
	if a != s.zone {
		s.zone = a
		s.prev = make([]bool, a.Catalog.Len())
	}

	p := s.vp.Position()
	s.mgr.Tick(dt, p)

	for _, l := range a.Catalog.Lights() {
		v := l.Visible()
		if v == s.prev[l.ID] {
			continue
		}
		s.prev[l.ID] = v
		if v {
			event.Emit(s.bus, event.LightActivated{ZoneID: a.ID, Light: int32(l.ID)})
		} else {
			event.Emit(s.bus, event.LightHidden{ZoneID: a.ID, Light: int32(l.ID)})
		}
	}

	rs := s.mgr.Sink()
	if vs, ok := rs.(sink.ViewpointSink); ok {
		vs.SetViewpoint(p)
	}
	s.frames++
	lighting.Publish(a.Catalog, rs, s.frames)
}
