package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/l1jgo/zonelights/internal/core/system"
	"github.com/l1jgo/zonelights/internal/zone"
)

// StatsSystem logs scheduler counters for the active zone every interval,
// along with the loop time spent selecting and fading lights.
// Phase 4 (Output).
type StatsSystem struct {
	mgr      *zone.Manager
	runner   *coresys.Runner // optional
	interval time.Duration
	log      *zap.Logger

	elapsed    time.Duration
	zone       *zone.Active
	lastPasses uint64
}

func NewStatsSystem(mgr *zone.Manager, runner *coresys.Runner, interval time.Duration, log *zap.Logger) *StatsSystem {
	return &StatsSystem{mgr: mgr, runner: runner, interval: interval, log: log}
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *StatsSystem) Update(dt time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0

	var busy [coresys.PhaseCount]time.Duration
	if s.runner != nil {
		busy = s.runner.TakeBusy()
	}
	a := s.mgr.Active()
	if a == nil {
		return
	}
	if a != s.zone {
		s.zone = a
		s.lastPasses = 0
	}
	st := a.Scheduler.Stats()
	passes := st.Passes - s.lastPasses
	s.lastPasses = st.Passes
	s.log.Info("lighting stats",
		zap.Int32("zone", a.ID),
		zap.Uint64("passes", passes),
		zap.Int("candidates", st.Candidates),
		zap.Int("selected", st.Selected),
		zap.Int("visible", a.Catalog.VisibleCount()),
		zap.Int("lights", a.Catalog.Len()),
		zap.Duration("lighting_busy", busy[coresys.PhasePostUpdate]),
		zap.Duration("zone_busy", busy[coresys.PhaseUpdate]),
	)
}
