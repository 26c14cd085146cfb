package system

import (
	"time"

	coresys "github.com/sveltemachine/conveyor/internal/core/system"
	"github.com/sveltemachine/conveyor/internal/world"
)

// BeltSystem 負責推進輸送帶裝飾點（不經物理）。
// Phase 3 (PostUpdate)，註冊於 PhysicsSystem 之後。
type BeltSystem struct {
	dots *world.BeltDots
}

func NewBeltSystem(d *world.BeltDots) *BeltSystem {
	return &BeltSystem{dots: d}
}

func (s *BeltSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *BeltSystem) Update(dt time.Duration) {
	s.dots.Tick(dt)
}
