package visualizer

import (
	"math"
	"time"

	"voicecircle/analyser"
)

// Bars is the per-bar smoothed height, owned by the render loop.
// Its length is fixed at construction.
type Bars struct {
	cfg Config
	h   []float64
}

func NewBars(cfg Config) *Bars {
	b := &Bars{cfg: cfg, h: make([]float64, cfg.BarCount)}
	b.Reset()
	return b
}

// Reset puts every bar back at base height, as on a fresh start.
func (b *Bars) Reset() {
	for i := range b.h {
		b.h[i] = b.cfg.BaseHeight
	}
}

func (b *Bars) Len() int { return len(b.h) }

// Heights returns a copy of the smoothed (undrawn) heights.
func (b *Bars) Heights() []float64 {
	out := make([]float64, len(b.h))
	copy(out, b.h)
	return out
}

// Target maps bar i onto the snapshot. Missing data reads as 0.
func (b *Bars) Target(snap analyser.Snapshot, i int) float64 {
	n := len(b.h)
	idx := int(math.Floor(float64(i) / float64(n) * float64(len(snap))))
	var v uint8
	if idx >= 0 && idx < len(snap) {
		v = snap[idx]
	}
	return float64(v) / 255 * b.cfg.MaxBarHeight
}

// Step advances every bar one frame toward its target and returns the
// frame to draw. elapsed is monotonic time since the loop started.
func (b *Bars) Step(snap analyser.Snapshot, elapsed time.Duration) Frame {
	cfg := b.cfg
	f := newFrame(cfg, elapsed)
	f.Bars = make([]Bar, len(b.h))

	ms := float64(elapsed) / float64(time.Millisecond)
	n := float64(len(b.h))
	for i := range b.h {
		target := b.Target(snap, i)
		b.h[i] += (target - b.h[i]) * cfg.Smoothing

		variation := math.Sin(ms*0.01+float64(i)*0.1) * cfg.Variation
		drawn := math.Max(cfg.BaseHeight, b.h[i]+variation)

		angle := float64(i) / n * 2 * math.Pi
		cos, sin := math.Cos(angle), math.Sin(angle)
		f.Bars[i] = Bar{
			X0:      f.CX + cos*cfg.Radius,
			Y0:      f.CY + sin*cfg.Radius,
			X1:      f.CX + cos*(cfg.Radius+drawn),
			Y1:      f.CY + sin*(cfg.Radius+drawn),
			Height:  drawn,
			Opacity: clamp01(drawn / cfg.MaxBarHeight),
		}
	}
	return f
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
