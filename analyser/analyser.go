// Package analyser turns a stream of PCM samples into a byte frequency
// spectrum: windowed FFT, temporal smoothing and decibel scaling into 0..255.
package analyser

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"voicecircle/audio"
)

const (
	minFFTSize = 32
	maxFFTSize = 32768
)

type Config struct {
	FFTSize               int     `yaml:"fft_size"`
	MinDecibels           float64 `yaml:"min_decibels"`
	MaxDecibels           float64 `yaml:"max_decibels"`
	SmoothingTimeConstant float64 `yaml:"smoothing"`
}

func DefaultConfig() Config {
	return Config{
		FFTSize:               1024,
		MinDecibels:           -100,
		MaxDecibels:           -30,
		SmoothingTimeConstant: 0.8,
	}
}

func (c Config) Validate() error {
	if c.FFTSize < minFFTSize || c.FFTSize > maxFFTSize || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("fft_size %d must be a power of two in [%d, %d]", c.FFTSize, minFFTSize, maxFFTSize)
	}
	if c.MinDecibels >= c.MaxDecibels {
		return fmt.Errorf("min_decibels %.1f must be below max_decibels %.1f", c.MinDecibels, c.MaxDecibels)
	}
	if c.SmoothingTimeConstant < 0 || c.SmoothingTimeConstant > 1 {
		return fmt.Errorf("smoothing %.2f must be in [0, 1]", c.SmoothingTimeConstant)
	}
	return nil
}

// Snapshot is one reading of the spectrum, FFTSize/2 values in 0..255.
// Index 0 is the lowest frequency.
type Snapshot []uint8

// Analyser is safe for one writer (the capture callback) and any number of
// readers. Its output is fully determined by the samples fed so far.
type Analyser struct {
	cfg Config

	mu       sync.Mutex
	ring     []float64
	pos      int
	fed      int
	scratch  []float64
	smoothed []float64
	window   []float64
	fft      *spectrum
	pcmBuf   []float64
}

func New(cfg Config) (*Analyser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.FFTSize
	return &Analyser{
		cfg:      cfg,
		ring:     make([]float64, n),
		scratch:  make([]float64, n),
		smoothed: make([]float64, n/2),
		window:   blackman(n),
		fft:      newSpectrum(n),
	}, nil
}

func (a *Analyser) Config() Config { return a.cfg }

// FrequencyBinCount is the length of every Snapshot.
func (a *Analyser) FrequencyBinCount() int { return a.cfg.FFTSize / 2 }

// Feed appends normalized samples in [-1, 1].
func (a *Analyser) Feed(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feedLocked(samples)
}

// FeedPCM appends S16LE mono PCM, as delivered by an audio.CaptureDevice.
func (a *Analyser) FeedPCM(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pcmBuf = audio.Samples(a.pcmBuf, pcm)
	a.feedLocked(a.pcmBuf)
}

func (a *Analyser) feedLocked(samples []float64) {
	n := len(a.ring)
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % n
	}
	a.fed += len(samples)
}

// Reset drops buffered samples and smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
	a.fed = 0
}

// ByteFrequencyData computes the current spectrum into dst (reused when
// large enough). Each call advances the smoothing state by one step.
func (a *Analyser) ByteFrequencyData(dst Snapshot) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	bins := n / 2
	if cap(dst) < bins {
		dst = make(Snapshot, bins)
	}
	dst = dst[:bins]

	// oldest sample first
	for i := range n {
		a.scratch[i] = a.ring[(a.pos+i)%n] * a.window[i]
	}
	coeff := a.fft.transform(a.scratch)

	tau := a.cfg.SmoothingTimeConstant
	scale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	for k := range bins {
		mag := cmplx.Abs(coeff[k]) / float64(n)
		v := tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.smoothed[k] = v
		dst[k] = toByte((linearToDecibels(v) - a.cfg.MinDecibels) * scale)
	}
	return dst
}

// Level returns the RMS of the buffered window, 0 before anything is fed.
func (a *Analyser) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fed == 0 {
		return 0
	}
	var sum float64
	for _, s := range a.ring {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(a.ring)))
}

func linearToDecibels(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

func toByte(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

// Peak returns the index and value of the loudest bin.
func (s Snapshot) Peak() (int, uint8) {
	idx, best := 0, uint8(0)
	for i, v := range s {
		if v > best {
			idx, best = i, v
		}
	}
	return idx, best
}

// BinFrequency converts a bin index to its centre frequency in Hz.
func BinFrequency(bin, fftSize, sampleRate int) float64 {
	return float64(bin) * float64(sampleRate) / float64(fftSize)
}
