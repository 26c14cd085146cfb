package system

import (
	"fmt"
	"time"

	coresys "github.com/sveltemachine/conveyor/internal/core/system"
	"github.com/sveltemachine/conveyor/internal/render"
	"github.com/sveltemachine/conveyor/internal/render/termview"
	"github.com/sveltemachine/conveyor/internal/world"
)

// PreviewSystem 每 N 個 tick 重繪一次終端預覽。
// Phase 4 (Output)，註冊於 RenderSyncSystem 之後。
type PreviewSystem struct {
	view      *termview.View
	scene     *render.Scene
	manager   *world.Manager
	every     int
	tickCount int
}

func NewPreviewSystem(view *termview.View, scene *render.Scene, m *world.Manager, every int) *PreviewSystem {
	if every < 1 {
		every = 1
	}
	return &PreviewSystem{view: view, scene: scene, manager: m, every: every}
}

func (s *PreviewSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *PreviewSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount%s.every != 0 {
		return
	}
	c := s.manager.Counts()
	status := fmt.Sprintf("tick %d  raw %d/%d  packed %d/%d  [q] quit",
		s.manager.Ticks(),
		c.RawActive, c.RawActive+c.RawFree,
		c.PackedActive, c.PackedActive+c.PackedFree)
	s.view.Draw(s.scene, status)
}
