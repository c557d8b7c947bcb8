package system

import (
	"fmt"
	"sort"
	"time"
)

// Runner executes systems in phase order each tick and keeps the wall time
// each phase spent since the last TakeBusy.
// Systems sharing a phase keep their registration order.
type Runner struct {
	systems []System
	sorted  bool
	ticks   uint64
	busy    [PhaseCount]time.Duration
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

// Register adds s. It panics on a phase outside the known range, which is a
// wiring mistake caught at boot.
func (r *Runner) Register(s System) {
	if p := s.Phase(); p < 0 || p >= PhaseCount {
		panic(fmt.Sprintf("system %T: phase %d out of range", s, p))
	}
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	r.ticks++
	for _, s := range r.systems {
		start := time.Now()
		s.Update(dt)
		r.busy[s.Phase()] += time.Since(start)
	}
}

// Ticks returns how many times Tick has run.
func (r *Runner) Ticks() uint64 { return r.ticks }

// TakeBusy returns the per-phase time accumulated since the previous call
// and resets it.
func (r *Runner) TakeBusy() [PhaseCount]time.Duration {
	b := r.busy
	r.busy = [PhaseCount]time.Duration{}
	return b
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
