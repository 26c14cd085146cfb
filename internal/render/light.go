package render

import (
	"time"

	"github.com/chewxy/math32"
)

// PulseLight is the cosmetic light flashed when an item is packed. Its
// intensity jumps to Peak on Pulse and decays linearly back to Base.
type PulseLight struct {
	base      float32
	peak      float32
	decay     float32 // units per second
	intensity float32
	pulses    int
}

func NewPulseLight(base, peak, decay float32) *PulseLight {
	return &PulseLight{base: base, peak: peak, decay: decay, intensity: base}
}

func (l *PulseLight) Pulse() {
	l.intensity = l.peak
	l.pulses++
}

func (l *PulseLight) Update(dt time.Duration) {
	if l.intensity <= l.base {
		return
	}
	l.intensity = math32.Max(l.base, l.intensity-l.decay*float32(dt.Seconds()))
}

func (l *PulseLight) Intensity() float32 { return l.intensity }
func (l *PulseLight) Pulses() int        { return l.pulses }
