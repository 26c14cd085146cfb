package system

import (
	"time"

	coresys "github.com/sveltemachine/conveyor/internal/core/system"
	"github.com/sveltemachine/conveyor/internal/world"
)

// ConveyorSystem 負責生成計時與路徑追蹤（轉向衝量、打包、回收）。
// Phase 2 (Update)。
type ConveyorSystem struct {
	manager *world.Manager
}

func NewConveyorSystem(m *world.Manager) *ConveyorSystem {
	return &ConveyorSystem{manager: m}
}

func (s *ConveyorSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ConveyorSystem) Update(dt time.Duration) {
	s.manager.Tick(dt)
}
