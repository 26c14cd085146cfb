package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/sveltemachine/conveyor/internal/core/event"
	coresys "github.com/sveltemachine/conveyor/internal/core/system"
)

// Reloader 是重新載入系統所需的腳本引擎介面。
type Reloader interface {
	Reload() error
	Files() int
}

// PresetApplier 在調校變更後重新套用物理預設值。
type PresetApplier interface {
	ApplyPresets()
}

// ScriptReloadSystem 在模擬 goroutine 上重新載入調校腳本，
// 由檔案監看器（或其他呼叫者）發出訊號觸發。Phase 1 (PreUpdate)。
type ScriptReloadSystem struct {
	scripts Reloader
	presets PresetApplier
	signal  <-chan struct{}
	bus     *event.Bus
	log     *zap.Logger
}

// NewScriptReloadSystem 建立腳本重新載入系統。
func NewScriptReloadSystem(scripts Reloader, presets PresetApplier, signal <-chan struct{}, bus *event.Bus, log *zap.Logger) *ScriptReloadSystem {
	return &ScriptReloadSystem{scripts: scripts, presets: presets, signal: signal, bus: bus, log: log}
}

func (s *ScriptReloadSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *ScriptReloadSystem) Update(_ time.Duration) {
	select {
	case <-s.signal:
	default:
		return
	}
	if err := s.scripts.Reload(); err != nil {
		s.log.Error("script reload failed, keeping previous scripts", zap.Error(err))
		return
	}
	s.presets.ApplyPresets()
	event.Emit(s.bus, event.ScriptsReloaded{Files: s.scripts.Files()})
}
