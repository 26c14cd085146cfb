package system

import (
	"time"

	coresys "github.com/sveltemachine/conveyor/internal/core/system"
	"github.com/sveltemachine/conveyor/internal/render"
	"github.com/sveltemachine/conveyor/internal/world"
)

// RenderSyncSystem 將剛體姿態寫回實例緩衝，並讓脈衝燈光衰減。
// Phase 4 (Output)。
type RenderSyncSystem struct {
	manager *world.Manager
	light   *render.PulseLight // 燈光停用時為 nil
}

func NewRenderSyncSystem(m *world.Manager, light *render.PulseLight) *RenderSyncSystem {
	return &RenderSyncSystem{manager: m, light: light}
}

func (s *RenderSyncSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *RenderSyncSystem) Update(dt time.Duration) {
	s.manager.Sync()
	if s.light != nil {
		s.light.Update(dt)
	}
}
