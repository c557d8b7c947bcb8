package system

import "time"

// Phase defines execution ordering within a single loop tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: viewpoint / camera movement
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseUpdate                  // 2: zone lifecycle
	PhasePostUpdate              // 3: light selection + fade
	PhaseOutput                  // 4: frame consumers (stats)

	PhaseCount
)

var phaseNames = [PhaseCount]string{"input", "pre_update", "update", "post_update", "output"}

func (p Phase) String() string {
	if p < 0 || p >= PhaseCount {
		return "unknown"
	}
	return phaseNames[p]
}

// System is the interface every loop system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
