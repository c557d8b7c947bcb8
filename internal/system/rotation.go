package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/l1jgo/zonelights/internal/core/system"
	"github.com/l1jgo/zonelights/internal/zone"
)

// ZoneRotationSystem cycles through a list of zones, staying dwell in each.
// With fewer than two zones or a zero dwell it never switches. Phase 2 (Update).
type ZoneRotationSystem struct {
	mgr      *zone.Manager
	rotation []int32
	dwell    time.Duration
	log      *zap.Logger

	idx     int
	elapsed time.Duration
}

// NewZoneRotationSystem assumes rotation[0] is already loaded.
func NewZoneRotationSystem(mgr *zone.Manager, rotation []int32, dwell time.Duration, log *zap.Logger) *ZoneRotationSystem {
	return &ZoneRotationSystem{mgr: mgr, rotation: rotation, dwell: dwell, log: log}
}

func (s *ZoneRotationSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ZoneRotationSystem) Update(dt time.Duration) {
	if len(s.rotation) < 2 || s.dwell <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.dwell {
		return
	}
	s.elapsed = 0

	// skip zones that fail to load, but try each at most once per switch
	for range s.rotation {
		s.idx = (s.idx + 1) % len(s.rotation)
		id := s.rotation[s.idx]
		if _, err := s.mgr.Load(context.Background(), id); err != nil {
			s.log.Warn("zone rotation: load failed", zap.Int32("zone", id), zap.Error(err))
			continue
		}
		return
	}
}
