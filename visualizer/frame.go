package visualizer

import (
	"math"
	"time"
)

// Bar is one radial segment from the face edge outward.
type Bar struct {
	X0, Y0, X1, Y1 float64
	Height         float64
	Opacity        float64
}

// Frame is everything needed to draw one picture of the circle.
type Frame struct {
	CX, CY      float64
	FaceRadius  float64
	MaskRadius  float64
	PulseRadius float64 // 0 when idle
	Bars        []Bar   // empty when idle
}

func (f Frame) Idle() bool { return len(f.Bars) == 0 }

func newFrame(cfg Config, elapsed time.Duration) Frame {
	ms := float64(elapsed) / float64(time.Millisecond)
	return Frame{
		CX:          float64(cfg.Width) / 2,
		CY:          float64(cfg.Height) / 2,
		FaceRadius:  cfg.Radius,
		MaskRadius:  cfg.Radius - cfg.MaskInset,
		PulseRadius: math.Max(0, cfg.Radius-cfg.PulseInset+math.Sin(ms/200)*cfg.PulseAmplitude),
	}
}

// IdleFrame is the static face and mask shown before listening starts.
func IdleFrame(cfg Config) Frame {
	f := newFrame(cfg, 0)
	f.PulseRadius = 0
	return f
}
