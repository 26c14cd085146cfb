package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: deliver last tick's events
	PhasePreUpdate               // 1: script reloads, spawn bookkeeping
	PhaseUpdate                  // 2: conveyor control law
	PhasePostUpdate              // 3: physics step, belt dots
	PhaseOutput                  // 4: instance buffer write-back, preview
	PhaseReport                  // 5: stats logging
	PhaseCleanup                 // 6: destroy queued entities
)

var phaseNames = [...]string{"input", "pre-update", "update", "post-update", "output", "report", "cleanup"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// System is the interface every simulation system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
