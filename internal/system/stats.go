package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/sveltemachine/conveyor/internal/core/event"
	coresys "github.com/sveltemachine/conveyor/internal/core/system"
	"github.com/sveltemachine/conveyor/internal/world"
)

// Totals 是 StatsSystem 累計的事件計數。
type Totals struct {
	Spawned   int
	Packed    int
	Despawned int
	Reloads   int
}

// CountSource 回報物件池使用量。
type CountSource interface {
	Counts() world.Counts
}

// StatsSystem 負責統計輸送帶事件，並每隔 interval 連同物件池使用量寫入日誌。
// Phase 5 (Report)。
type StatsSystem struct {
	pools    CountSource
	log      *zap.Logger
	interval time.Duration // 0 = 不輸出日誌，計數照常
	elapsed  time.Duration
	totals   Totals
}

// NewStatsSystem 建立統計系統並訂閱輸送帶事件。
func NewStatsSystem(bus *event.Bus, pools CountSource, interval time.Duration, log *zap.Logger) *StatsSystem {
	s := &StatsSystem{pools: pools, log: log, interval: interval}
	event.Subscribe(bus, func(event.ItemSpawned) { s.totals.Spawned++ })
	event.Subscribe(bus, func(event.ItemPacked) { s.totals.Packed++ })
	event.Subscribe(bus, func(event.ItemDespawned) { s.totals.Despawned++ })
	event.Subscribe(bus, func(event.ScriptsReloaded) { s.totals.Reloads++ })
	return s
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseReport }

func (s *StatsSystem) Totals() Totals { return s.totals }

func (s *StatsSystem) Update(dt time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed -= s.interval
	s.Log()
}

// Log 以 info 等級輸出目前計數。
func (s *StatsSystem) Log() {
	c := s.pools.Counts()
	s.log.Info("conveyor stats",
		zap.Int("raw_active", c.RawActive),
		zap.Int("raw_free", c.RawFree),
		zap.Int("packed_active", c.PackedActive),
		zap.Int("packed_free", c.PackedFree),
		zap.Int("spawned", s.totals.Spawned),
		zap.Int("packed", s.totals.Packed),
		zap.Int("despawned", s.totals.Despawned),
		zap.Int("script_reloads", s.totals.Reloads),
	)
}
