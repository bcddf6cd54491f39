package analyser

import (
	"math"
	"math/cmplx"
	"testing"
	"time"

	"voicecircle/audio"
)

func sine(freq, amp float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/audio.SampleRate)
	}
	return out
}

func naiveDFT(x []float64) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := range n {
		var sum complex128
		for t := range n {
			sum += complex(x[t], 0) * cmplx.Exp(complex(0, -2*math.Pi*float64(k*t)/float64(n)))
		}
		out[k] = sum
	}
	return out
}

func TestFFTMatchesDFT(t *testing.T) {
	x := sine(1234, 0.7, 64)
	for i := range x {
		x[i] += 0.1 * float64(i%5)
	}
	want := naiveDFT(x)

	got := newSpectrum(64).transform(x)
	if len(got) != 33 {
		t.Fatalf("got %d bins, want 33", len(got))
	}
	for k := range got {
		if math.Abs(cmplx.Abs(got[k])-cmplx.Abs(want[k])) > 1e-9 {
			t.Fatalf("bin %d magnitude = %v, want %v", k, cmplx.Abs(got[k]), cmplx.Abs(want[k]))
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"not power of two", func(c *Config) { c.FFTSize = 1000 }, true},
		{"too small", func(c *Config) { c.FFTSize = 16 }, true},
		{"db inverted", func(c *Config) { c.MinDecibels = -20 }, true},
		{"smoothing out of range", func(c *Config) { c.SmoothingTimeConstant = 1.5 }, true},
		{"no smoothing", func(c *Config) { c.SmoothingTimeConstant = 0 }, false},
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

func TestSilenceIsZero(t *testing.T) {
	a, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	a.Feed(make([]float64, 4096))
	snap := a.ByteFrequencyData(nil)
	if len(snap) != 512 {
		t.Fatalf("len = %d, want 512", len(snap))
	}
	for i, v := range snap {
		if v != 0 {
			t.Fatalf("bin %d = %d, want 0", i, v)
		}
	}
	if a.Level() != 0 {
		t.Errorf("Level = %v, want 0", a.Level())
	}
}

func TestTonePeaksAtItsBin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmoothingTimeConstant = 0
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	a.Feed(sine(1000, 0.2, cfg.FFTSize))
	snap := a.ByteFrequencyData(nil)

	idx, v := snap.Peak()
	want := int(math.Round(1000 * float64(cfg.FFTSize) / audio.SampleRate))
	if idx != want {
		t.Errorf("peak bin = %d, want %d", idx, want)
	}
	if v != 255 {
		t.Errorf("peak value = %d, want 255", v)
	}
	if got := BinFrequency(idx, cfg.FFTSize, audio.SampleRate); math.Abs(got-1000) > 16 {
		t.Errorf("BinFrequency = %v, want ~1000", got)
	}
}

func TestSmoothingDecaysGradually(t *testing.T) {
	a, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	a.Feed(sine(1000, 0.05, 1024))
	for range 20 {
		a.ByteFrequencyData(nil)
	}
	loud := a.ByteFrequencyData(nil)[64]

	a.Feed(make([]float64, 1024))
	first := a.ByteFrequencyData(nil)[64]
	if first == 0 || first >= loud {
		t.Fatalf("first silent frame = %d, want a decaying non-zero value (loud %d)", first, loud)
	}
	prev := first
	for range 5 {
		cur := a.ByteFrequencyData(nil)[64]
		if cur > prev {
			t.Fatalf("value rose during silence: %d -> %d", prev, cur)
		}
		prev = cur
	}
	if prev >= first {
		t.Errorf("no decay after 5 frames: %d -> %d", first, prev)
	}
}

func TestDeterministic(t *testing.T) {
	pcm := audio.Tone(700, 200*time.Millisecond, 0.3)
	a1, _ := New(DefaultConfig())
	a2, _ := New(DefaultConfig())

	for off := 0; off < len(pcm); off += 1024 {
		end := min(off+1024, len(pcm))
		a1.FeedPCM(pcm[off:end])
		a2.FeedPCM(pcm[off:end])
		s1 := a1.ByteFrequencyData(nil)
		s2 := a2.ByteFrequencyData(nil)
		for i := range s1 {
			if s1[i] != s2[i] {
				t.Fatalf("offset %d bin %d: %d != %d", off, i, s1[i], s2[i])
			}
		}
	}
}

func TestResetClearsHistory(t *testing.T) {
	a, _ := New(DefaultConfig())
	a.Feed(sine(1000, 0.5, 1024))
	a.ByteFrequencyData(nil)
	a.Reset()
	snap := a.ByteFrequencyData(nil)
	if _, v := snap.Peak(); v != 0 {
		t.Errorf("peak after Reset = %d, want 0", v)
	}
}
