package visualizer

import (
	"image/color"
	"math"
	"strings"
	"testing"
	"time"

	"voicecircle/analyser"
)

func fullSnapshot(n int, v uint8) analyser.Snapshot {
	s := make(analyser.Snapshot, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestEMAConvergence(t *testing.T) {
	cfg := DefaultConfig()
	bars := NewBars(cfg)
	snap := fullSnapshot(512, 255)

	prevErr := cfg.MaxBarHeight - cfg.BaseHeight
	for frame := range 30 {
		bars.Step(snap, time.Duration(frame)*16*time.Millisecond)
		for i, h := range bars.Heights() {
			err := cfg.MaxBarHeight - h
			want := prevErr * (1 - cfg.Smoothing)
			if math.Abs(err-want) > 1e-9 {
				t.Fatalf("frame %d bar %d: error %v, want %v", frame, i, err, want)
			}
		}
		prevErr *= 1 - cfg.Smoothing
	}
	if prevErr > 0.2 {
		t.Errorf("not converged after 30 frames: error %v", prevErr)
	}
}

func TestDrawnHeightNeverBelowBase(t *testing.T) {
	cfg := DefaultConfig()
	bars := NewBars(cfg)
	zero := make(analyser.Snapshot, 512)

	for frame := range 200 {
		f := bars.Step(zero, time.Duration(frame)*7*time.Millisecond)
		if len(f.Bars) != cfg.BarCount {
			t.Fatalf("frame %d has %d bars, want %d", frame, len(f.Bars), cfg.BarCount)
		}
		for i, b := range f.Bars {
			if b.Height < cfg.BaseHeight {
				t.Fatalf("frame %d bar %d: drawn height %v below base %v", frame, i, b.Height, cfg.BaseHeight)
			}
		}
	}
	// the stored value is a plain EMA and decays toward the zero target
	for i, h := range bars.Heights() {
		if h > 0.01 {
			t.Fatalf("bar %d smoothed height %v did not decay toward 0", i, h)
		}
	}
}

func TestTargetMapping(t *testing.T) {
	cfg := DefaultConfig()
	bars := NewBars(cfg)
	snap := make(analyser.Snapshot, 512)
	snap[256] = 255
	snap[0] = 51

	if got := bars.Target(snap, 90); got != cfg.MaxBarHeight {
		t.Errorf("bar 90 target = %v, want %v", got, cfg.MaxBarHeight)
	}
	if got := bars.Target(snap, 0); math.Abs(got-20) > 1e-9 {
		t.Errorf("bar 0 target = %v, want 20", got)
	}
	if got := bars.Target(nil, 10); got != 0 {
		t.Errorf("empty snapshot target = %v, want 0", got)
	}
	short := analyser.Snapshot{255, 0}
	if got := bars.Target(short, 179); got != 0 {
		t.Errorf("short snapshot bar 179 target = %v, want 0", got)
	}
	if got := bars.Target(short, 10); got != cfg.MaxBarHeight {
		t.Errorf("short snapshot bar 10 target = %v, want %v", got, cfg.MaxBarHeight)
	}
}

func TestFrameGeometry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variation = 0
	bars := NewBars(cfg)
	f := bars.Step(make(analyser.Snapshot, 512), 0)

	if f.CX != 200 || f.CY != 200 {
		t.Fatalf("centre = (%v, %v), want (200, 200)", f.CX, f.CY)
	}
	if f.MaskRadius != 70 {
		t.Errorf("mask radius = %v, want 70", f.MaskRadius)
	}
	b := f.Bars[0]
	if b.X0 != 280 || math.Abs(b.Y0-200) > 1e-9 {
		t.Errorf("bar 0 starts at (%v, %v), want (280, 200)", b.X0, b.Y0)
	}
	if math.Abs(b.X1-(280+cfg.BaseHeight)) > 1e-9 {
		t.Errorf("bar 0 ends at x=%v, want %v", b.X1, 280+cfg.BaseHeight)
	}
	if math.Abs(b.Opacity-0.1) > 1e-9 {
		t.Errorf("bar 0 opacity = %v, want 0.1", b.Opacity)
	}
	quarter := f.Bars[45]
	if math.Abs(quarter.X0-200) > 1e-9 || math.Abs(quarter.Y0-280) > 1e-9 {
		t.Errorf("bar 45 starts at (%v, %v), want (200, 280)", quarter.X0, quarter.Y0)
	}
}

func TestPulseRadiusBounds(t *testing.T) {
	cfg := DefaultConfig()
	bars := NewBars(cfg)
	lo := cfg.Radius - cfg.PulseInset - cfg.PulseAmplitude
	hi := cfg.Radius - cfg.PulseInset + cfg.PulseAmplitude
	for ms := 0; ms < 3000; ms += 37 {
		f := bars.Step(nil, time.Duration(ms)*time.Millisecond)
		if f.PulseRadius < lo-1e-9 || f.PulseRadius > hi+1e-9 {
			t.Fatalf("pulse radius %v at %dms outside [%v, %v]", f.PulseRadius, ms, lo, hi)
		}
	}
}

func TestIdleFrame(t *testing.T) {
	f := IdleFrame(DefaultConfig())
	if !f.Idle() {
		t.Error("idle frame has bars")
	}
	if f.PulseRadius != 0 {
		t.Errorf("idle pulse radius = %v, want 0", f.PulseRadius)
	}
}

func TestBarsReset(t *testing.T) {
	cfg := DefaultConfig()
	bars := NewBars(cfg)
	bars.Step(fullSnapshot(512, 255), 0)
	bars.Reset()
	for i, h := range bars.Heights() {
		if h != cfg.BaseHeight {
			t.Fatalf("bar %d = %v after Reset, want %v", i, h, cfg.BaseHeight)
		}
	}
	if bars.Len() != cfg.BarCount {
		t.Errorf("Len = %d, want %d", bars.Len(), cfg.BarCount)
	}
}

func rgbaAt(t *testing.T, r *Raster, f Frame, x, y int) color.RGBA {
	t.Helper()
	return r.Draw(f).RGBAAt(x, y)
}

func TestRasterIdle(t *testing.T) {
	cfg := DefaultConfig()
	r, err := NewRaster(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f := IdleFrame(cfg)

	if c := rgbaAt(t, r, f, 200, 200); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("centre = %v, want mask white", c)
	}
	if c := rgbaAt(t, r, f, 275, 200); c != (color.RGBA{255, 192, 203, 255}) {
		t.Errorf("face ring = %v, want #FFC0CB", c)
	}
	if c := rgbaAt(t, r, f, 5, 5); c != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("corner = %v, want background", c)
	}
}

func TestRasterBarsAndPulse(t *testing.T) {
	cfg := DefaultConfig()
	r, err := NewRaster(cfg)
	if err != nil {
		t.Fatal(err)
	}
	bars := NewBars(cfg)
	snap := fullSnapshot(512, 255)
	var f Frame
	for frame := range 40 {
		f = bars.Step(snap, time.Duration(frame)*16*time.Millisecond)
	}

	img := r.Draw(f)
	bar := img.RGBAAt(int(f.CX+cfg.Radius+50), int(f.CY))
	if bar.R < 200 || bar.G > 100 {
		t.Errorf("bar pixel = %v, want deep pink", bar)
	}
	centre := img.RGBAAt(int(f.CX), int(f.CY))
	if centre == (color.RGBA{255, 255, 255, 255}) {
		t.Error("pulse disc not drawn over the mask")
	}
	if centre.R != 255 || centre.G < 230 {
		t.Errorf("centre = %v, want a light pink tint", centre)
	}
}

func TestTermEncoder(t *testing.T) {
	cfg := DefaultConfig()
	r, err := NewRaster(cfg)
	if err != nil {
		t.Fatal(err)
	}
	bg, _ := ParseHex(cfg.Colors.Background)
	enc := NewTermEncoder(40, 20, bg)
	out := enc.Encode(r.Draw(IdleFrame(cfg)))

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	if !strings.HasPrefix(lines[0], " ") {
		t.Errorf("top-left cell should be blank, got %q", lines[0][:1])
	}
	if !strings.Contains(out, "█") {
		t.Error("no solid cells in the face")
	}
	if cols, rows := enc.Size(); cols != 40 || rows != 20 {
		t.Errorf("Size = %dx%d, want 40x20", cols, rows)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"no bars", func(c *Config) { c.BarCount = 0 }, true},
		{"mask swallows face", func(c *Config) { c.MaskInset = 80 }, true},
		{"zero smoothing", func(c *Config) { c.Smoothing = 0 }, true},
		{"bad colour", func(c *Config) { c.Colors.Face = "pink" }, true},
		{"short hex", func(c *Config) { c.Colors.Face = "#fcd" }, false},
		{"zero interval", func(c *Config) { c.FrameIntervalMs = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#ec4899")
	if err != nil {
		t.Fatal(err)
	}
	if c != (color.RGBA{0xec, 0x48, 0x99, 0xff}) {
		t.Errorf("ParseHex = %v", c)
	}
	if _, err := ParseHex("#12345"); err == nil {
		t.Error("expected error for 5-digit colour")
	}
}
