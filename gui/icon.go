//go:build gui

package gui

import (
	"bytes"
	"image/png"

	"voicecircle/visualizer"
)

const iconSize = 64

// trayIcon draws a small static circle with short bars as a PNG.
func trayIcon(colors visualizer.Colors) ([]byte, error) {
	cfg := visualizer.DefaultConfig()
	cfg.Colors = colors
	cfg.Width, cfg.Height = iconSize, iconSize
	cfg.Radius = 18
	cfg.MaskInset = 4
	cfg.PulseInset = 6
	cfg.BarCount = 24
	cfg.BarWidth = 3
	cfg.MaxBarHeight = 12
	cfg.BaseHeight = 6
	cfg.Variation = 0

	r, err := visualizer.NewRaster(cfg)
	if err != nil {
		return nil, err
	}
	bars := visualizer.NewBars(cfg)
	img := r.Draw(bars.Step(nil, 0))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
