package system

import (
	"time"

	"github.com/sveltemachine/conveyor/internal/core/event"
	coresys "github.com/sveltemachine/conveyor/internal/core/system"
)

// EventSystem 派送上一個 tick 發出的事件。
// Phase 0 (Input)。
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
