package system

import (
	"time"

	coresys "github.com/sveltemachine/conveyor/internal/core/system"
	"github.com/sveltemachine/conveyor/internal/physics"
)

// PhysicsSystem 每 tick 推進一次剛體世界，於輸送帶施加衝量之後執行。
// Phase 3 (PostUpdate)。
type PhysicsSystem struct {
	world *physics.World
}

func NewPhysicsSystem(w *physics.World) *PhysicsSystem {
	return &PhysicsSystem{world: w}
}

func (s *PhysicsSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *PhysicsSystem) Update(dt time.Duration) {
	s.world.Step(dt)
}
