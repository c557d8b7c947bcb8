package lighting

import (
	"math"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// FadeStep selects how much time one fade pass advances.
type FadeStep string

const (
	// FadeStepFrame advances by the dt of the tick that opened the gate,
	// regardless of how much time accumulated since the previous pass.
	FadeStepFrame FadeStep = "frame"
	// FadeStepInterval advances by the full time accumulated since the
	// previous pass.
	FadeStepInterval FadeStep = "interval"
)

// Params tune the scheduler.
type Params struct {
	UpdateInterval time.Duration
	MaxQueryRadius float64
	MaxActive      int
	FadeRate       float64 // per second
	OffThreshold   float64
	FadeStep       FadeStep
}

func DefaultParams() Params {
	return Params{
		UpdateInterval: 200 * time.Millisecond,
		MaxQueryRadius: 300,
		MaxActive:      10,
		FadeRate:       5.0,
		OffThreshold:   1.5,
		FadeStep:       FadeStepFrame,
	}
}

// PassStats describes the most recent re-evaluation pass.
type PassStats struct {
	Passes     uint64 // total passes since creation
	Candidates int
	Selected   int
	Activated  int // lights that turned visible this pass
	Hidden     int // lights that turned invisible this pass
}

type ranked struct {
	l    *Light
	dist float64
}

// Scheduler keeps the nearest lights of a catalog lit around a viewpoint.
// Not safe for concurrent use; Tick is called from the game loop only.
type Scheduler struct {
	cat    *Catalog
	params Params

	elapsed time.Duration
	forced  bool

	active []bool
	cands  []*Light
	rank   []ranked
	stats  PassStats
}

func NewScheduler(cat *Catalog, p Params) *Scheduler {
	if p.FadeStep == "" {
		p.FadeStep = FadeStepFrame
	}
	return &Scheduler{
		cat:    cat,
		params: p,
		active: make([]bool, cat.Len()),
	}
}

func (s *Scheduler) Catalog() *Catalog { return s.cat }
func (s *Scheduler) Params() Params    { return s.params }
func (s *Scheduler) Stats() PassStats  { return s.stats }

// Force makes the next Tick run a pass even if the interval has not elapsed.
func (s *Scheduler) Force() { s.forced = true }

// Tick advances the scheduler by dt with the viewer at vp. Light state only
// changes on ticks where a pass runs; between passes it is left untouched.
func (s *Scheduler) Tick(dt time.Duration, vp mgl64.Vec3) {
	s.elapsed += dt
	if s.elapsed < s.params.UpdateInterval && !s.forced {
		return
	}
	step := dt
	if s.params.FadeStep == FadeStepInterval {
		step = s.elapsed
	}
	s.elapsed = 0
	s.forced = false

	s.selectActive(vp)
	s.fade(step.Seconds())
}

func (s *Scheduler) selectActive(vp mgl64.Vec3) {
	r := s.params.MaxQueryRadius
	s.cands = s.cat.Within(vp, r, s.cands[:0])

	s.rank = s.rank[:0]
	for _, l := range s.cands {
		s.rank = append(s.rank, ranked{l: l, dist: l.Position.Sub(vp).Len()})
	}
	sort.Slice(s.rank, func(i, j int) bool {
		if s.rank[i].dist != s.rank[j].dist {
			return s.rank[i].dist < s.rank[j].dist
		}
		return s.rank[i].l.ID < s.rank[j].l.ID
	})

	for i := range s.active {
		s.active[i] = false
	}
	n := min(s.params.MaxActive, len(s.rank))
	selected := 0
	for _, c := range s.rank[:max(n, 0)] {
		// the query already bounds this; a light past the radius must never light
		if c.dist > r {
			continue
		}
		s.active[c.l.ID] = true
		selected++
	}

	s.stats.Passes++
	s.stats.Candidates = len(s.cands)
	s.stats.Selected = selected
}

func (s *Scheduler) fade(sec float64) {
	k := math.Max(0, math.Min(1, s.params.FadeRate*sec))
	activated, hidden := 0, 0
	for _, l := range s.cat.lights {
		if s.active[l.ID] {
			if !l.visible {
				activated++
			}
			l.visible = true
			l.intensity += (l.BaseIntensity - l.intensity) * k
			continue
		}
		l.intensity -= l.intensity * k
		if l.visible && l.intensity < s.params.OffThreshold {
			l.visible = false
			hidden++
		}
	}
	s.stats.Activated = activated
	s.stats.Hidden = hidden
}

// IsActive reports whether id was selected by the most recent pass.
func (s *Scheduler) IsActive(id ID) bool {
	return id >= 0 && int(id) < len(s.active) && s.active[id]
}

// Tuning is a sparse per-zone override of Params; nil fields keep the base.
type Tuning struct {
	MaxActive      *int     `yaml:"max_active" json:"max_active,omitempty"`
	MaxQueryRadius *float64 `yaml:"max_query_radius" json:"max_query_radius,omitempty"`
	FadeRate       *float64 `yaml:"fade_rate" json:"fade_rate,omitempty"`
}

func (t Tuning) Empty() bool {
	return t.MaxActive == nil && t.MaxQueryRadius == nil && t.FadeRate == nil
}

// With returns p with the non-nil fields of t applied. Out-of-range
// overrides are ignored.
func (p Params) With(t Tuning) Params {
	if t.MaxActive != nil && *t.MaxActive >= 0 {
		p.MaxActive = *t.MaxActive
	}
	if t.MaxQueryRadius != nil && *t.MaxQueryRadius > 0 {
		p.MaxQueryRadius = *t.MaxQueryRadius
	}
	if t.FadeRate != nil && *t.FadeRate > 0 {
		p.FadeRate = *t.FadeRate
	}
	return p
}
