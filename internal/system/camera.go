package system

import (
	"time"

	coresys "github.com/l1jgo/zonelights/internal/core/system"
	"github.com/l1jgo/zonelights/internal/world"
	"github.com/l1jgo/zonelights/internal/zone"
)

// CameraSystem moves the fly-through camera and resets it to the zone's
// path whenever a different zone becomes active. Phase 0 (Input).
type CameraSystem struct {
	cam  *world.Camera
	mgr  *zone.Manager
	zone *zone.Active
}

func NewCameraSystem(cam *world.Camera, mgr *zone.Manager) *CameraSystem {
	return &CameraSystem{cam: cam, mgr: mgr}
}

func (s *CameraSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *CameraSystem) Update(dt time.Duration) {
	a := s.mgr.Active()
	if a != s.zone {
		s.zone = a
		if a != nil {
			p := a.Camera
			s.cam.SetPath(p.Points(), p.Speed, p.Loop)
		}
		return
	}
	s.cam.Advance(dt)
}
