package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/sveltemachine/conveyor/internal/core/ecs"
	coresys "github.com/sveltemachine/conveyor/internal/core/system"
)

// CleanupSystem 在 tick 結束時清空物理世界的延遲銷毀佇列。
// Phase 6 (Cleanup)。
type CleanupSystem struct {
	world *ecs.World
	log   *zap.Logger
}

func NewCleanupSystem(world *ecs.World, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: world, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if n := s.world.Pending(); n > 0 {
		s.log.Debug("destroying entities", zap.Int("count", n))
	}
	s.world.FlushDestroyQueue()
}
