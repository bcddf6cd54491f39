package visualizer

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"
)

// Config fixes the canvas geometry. Sizes are in canvas pixels.
type Config struct {
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	Radius          float64 `yaml:"radius"`
	BarCount        int     `yaml:"bar_count"`
	BarWidth        float64 `yaml:"bar_width"`
	MaxBarHeight    float64 `yaml:"max_bar_height"`
	BaseHeight      float64 `yaml:"base_height"`
	Variation       float64 `yaml:"variation"`
	Smoothing       float64 `yaml:"smoothing"`
	MaskInset       float64 `yaml:"mask_inset"`
	PulseInset      float64 `yaml:"pulse_inset"`
	PulseAmplitude  float64 `yaml:"pulse_amplitude"`
	FrameIntervalMs int     `yaml:"frame_interval_ms"`
	Colors          Colors  `yaml:"colors"`
}

type Colors struct {
	Background  string  `yaml:"background"`
	Face        string  `yaml:"face"`
	Mask        string  `yaml:"mask"`
	Bar         string  `yaml:"bar"`
	Pulse       string  `yaml:"pulse"`
	PulseAlpha  float64 `yaml:"pulse_alpha"`
	StartButton string  `yaml:"start_button"`
	StopButton  string  `yaml:"stop_button"`
}

func DefaultConfig() Config {
	return Config{
		Width:           400,
		Height:          400,
		Radius:          80,
		BarCount:        180,
		BarWidth:        2,
		MaxBarHeight:    100,
		BaseHeight:      10,
		Variation:       0.5,
		Smoothing:       0.2,
		MaskInset:       10,
		PulseInset:      20,
		PulseAmplitude:  5,
		FrameIntervalMs: 16,
		Colors: Colors{
			Background:  "#000000",
			Face:        "#FFC0CB",
			Mask:        "#FFFFFF",
			Bar:         "#FF1493",
			Pulse:       "#FFC0CB",
			PulseAlpha:  0.3,
			StartButton: "#ec4899",
			StopButton:  "#ef4444",
		},
	}
}

func (c Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("canvas %dx%d must be positive", c.Width, c.Height)
	case c.BarCount <= 0:
		return fmt.Errorf("bar_count %d must be positive", c.BarCount)
	case c.Radius <= 0:
		return fmt.Errorf("radius %.1f must be positive", c.Radius)
	case c.MaskInset < 0 || c.MaskInset >= c.Radius:
		return fmt.Errorf("mask_inset %.1f must be in [0, radius)", c.MaskInset)
	case c.MaxBarHeight <= 0:
		return fmt.Errorf("max_bar_height %.1f must be positive", c.MaxBarHeight)
	case c.BaseHeight < 0:
		return fmt.Errorf("base_height %.1f must not be negative", c.BaseHeight)
	case c.Smoothing <= 0 || c.Smoothing > 1:
		return fmt.Errorf("smoothing %.2f must be in (0, 1]", c.Smoothing)
	case c.BarWidth <= 0:
		return fmt.Errorf("bar_width %.1f must be positive", c.BarWidth)
	case c.FrameIntervalMs <= 0:
		return fmt.Errorf("frame_interval_ms %d must be positive", c.FrameIntervalMs)
	case c.Colors.PulseAlpha < 0 || c.Colors.PulseAlpha > 1:
		return fmt.Errorf("pulse_alpha %.2f must be in [0, 1]", c.Colors.PulseAlpha)
	}
	for name, v := range map[string]string{
		"background":   c.Colors.Background,
		"face":         c.Colors.Face,
		"mask":         c.Colors.Mask,
		"bar":          c.Colors.Bar,
		"pulse":        c.Colors.Pulse,
		"start_button": c.Colors.StartButton,
		"stop_button":  c.Colors.StopButton,
	} {
		if _, err := ParseHex(v); err != nil {
			return fmt.Errorf("colors.%s: %w", name, err)
		}
	}
	return nil
}

// ParseHex parses "#rrggbb" or "#rgb" into an opaque colour.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
