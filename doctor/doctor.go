// Package doctor runs the -doctor self checks: hotkey, microphone,
// spectrum, recognition and clipboard.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"voicecircle/analyser"
	"voicecircle/audio"
	"voicecircle/clipboard"
	"voicecircle/hotkey"
	"voicecircle/recognizer"
)

// quietLevel is the RMS below which the microphone is reported as silent.
const quietLevel = 0.003

type Options struct {
	Audio    audio.Context
	Device   *audio.DeviceInfo
	Analyser analyser.Config
	// Record is how long the microphone check captures.
	Record time.Duration
	// SamplePath, when set, receives the capture as FLAC.
	SamplePath string
	Recognizer recognizer.Recognizer
	// RecognizerErr explains a nil Recognizer.
	RecognizerErr error
	Language      string
	Clipboard     clipboard.Clipboard
	// Hotkey is skipped when nil.
	Hotkey hotkey.Hotkey
	// Diagnose describes the hotkey backend before the press test;
	// hotkey.Diagnose in production.
	Diagnose func() (string, error)
	Timeout  time.Duration
	Out      io.Writer
}

type check struct {
	name string
	run  func(ctx context.Context, st *state) bool
}

type state struct {
	opts Options
	out  io.Writer
	pcm  []byte
}

func (st *state) printf(format string, args ...any) {
	fmt.Fprintf(st.out, format, args...)
}

// Run executes every check and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Record <= 0 {
		opts.Record = 3 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	st := &state{opts: opts, out: opts.Out}

	st.printf("voicecircle doctor - system diagnostics\n")
	st.printf("=======================================\n")

	checks := []check{
		{"Hotkey detection", checkHotkey},
		{"Microphone capture", checkMicrophone},
		{"Spectrum", checkSpectrum},
		{"Speech recognition", checkRecognition},
		{"Clipboard", checkClipboard},
	}

	allPass := true
	for i, c := range checks {
		st.printf("\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if ctx.Err() != nil {
			st.printf("  FAIL: interrupted\n")
			allPass = false
			break
		}
		if !c.run(ctx, st) {
			allPass = false
		}
	}

	st.printf("\n")
	if allPass {
		st.printf("All checks passed!\n")
		return 0
	}
	st.printf("Some checks failed. See details above.\n")
	return 1
}

func checkHotkey(ctx context.Context, st *state) bool {
	hk := st.opts.Hotkey
	if hk == nil {
		st.printf("  SKIP: hotkey disabled\n")
		return true
	}
	if st.opts.Diagnose != nil {
		info, err := st.opts.Diagnose()
		if err != nil {
			st.printf("  FAIL: %v\n", err)
			return false
		}
		st.printf("  %s\n", info)
	}
	if err := hk.Register(); err != nil {
		st.printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	st.printf("Press %s...\n", hotkey.Combo)
	select {
	case <-hk.Keydown():
		st.printf("  PASS: hotkey detected\n")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(st.opts.Timeout):
		st.printf("  FAIL: timeout waiting for hotkey\n")
		return false
	case <-ctx.Done():
		st.printf("  FAIL: interrupted\n")
		return false
	}
}

func checkMicrophone(ctx context.Context, st *state) bool {
	if st.opts.Audio == nil {
		st.printf("  FAIL: no audio backend\n")
		return false
	}
	name := "default"
	if st.opts.Device != nil {
		name = st.opts.Device.Name
	}
	st.printf("Speak for %s into %s...\n", st.opts.Record, name)

	pcm, err := record(ctx, st.opts.Audio, st.opts.Device, st.opts.Record)
	if err != nil {
		st.printf("  FAIL: Unable to access microphone: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		st.printf("  FAIL: no audio captured\n")
		return false
	}
	st.pcm = pcm
	secs := float64(len(pcm)) / float64(audio.SampleRate*audio.BitsPerSample/8)
	st.printf("  PASS: captured %.1fs (%.1f KB)\n", secs, float64(len(pcm))/1024)

	if st.opts.SamplePath != "" {
		if err := saveSample(st.opts.SamplePath, pcm); err != nil {
			st.printf("  WARN: could not save sample: %v\n", err)
		} else {
			st.printf("  Saved sample to %s\n", st.opts.SamplePath)
		}
	}
	return true
}

func checkSpectrum(_ context.Context, st *state) bool {
	if len(st.pcm) == 0 {
		st.printf("  SKIP: no capture\n")
		return false
	}
	r, err := analyse(st.opts.Analyser, st.pcm)
	if err != nil {
		st.printf("  FAIL: %v\n", err)
		return false
	}
	db := math.Inf(-1)
	if r.level > 0 {
		db = 20 * math.Log10(r.level)
	}
	st.printf("  Level: %.1f dBFS, loudest bin %d (%.0f Hz) = %d/255\n", db, r.peakBin, r.peakHz, r.peakValue)
	if r.level < quietLevel {
		st.printf("  WARN: microphone is very quiet, bars will stay near their base height\n")
	}
	st.printf("  PASS: analyser produced %d bins\n", r.bins)
	return true
}

func checkRecognition(ctx context.Context, st *state) bool {
	if st.opts.Recognizer == nil {
		reason := st.opts.RecognizerErr
		if reason == nil {
			reason = recognizer.ErrUnsupported
		}
		st.printf("  SKIP: Speech recognition not supported: %v\n", reason)
		return true
	}
	if len(st.pcm) == 0 {
		st.printf("  SKIP: no capture\n")
		return false
	}
	st.printf("  Sending capture to %s...\n", st.opts.Recognizer.Name())
	text, stats, err := transcribe(ctx, st.opts.Recognizer, recognizer.Options{
		Language:   st.opts.Language,
		SampleRate: audio.SampleRate,
	}, st.pcm, st.opts.Timeout)
	if err != nil {
		st.printf("  FAIL: %v\n", err)
		return false
	}
	if text == "" {
		text = "(no speech detected)"
	}
	st.printf("  Recognized: %s\n", text)
	st.printf("  PASS: connect %dms, sent %.1f KB, %d final result(s)\n", stats.ConnectMs, stats.SentKB, stats.RecvFinal)
	return true
}

func checkClipboard(_ context.Context, st *state) bool {
	cb := st.opts.Clipboard
	if cb == nil {
		st.printf("  SKIP: clipboard disabled\n")
		return true
	}
	previous, readErr := cb.Read()

	sentinel := fmt.Sprintf("voicecircle-doctor-%d", time.Now().UnixNano())
	if err := cb.Copy(sentinel); err != nil {
		st.printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := cb.Read()
	if readErr == nil {
		cb.Copy(previous)
	}
	if err != nil {
		st.printf("  FAIL: could not read clipboard: %v\n", err)
		return false
	}
	if got != sentinel {
		st.printf("  FAIL: clipboard readback mismatch (got %q)\n", got)
		return false
	}
	st.printf("  PASS: copy and readback verified\n")
	return true
}

func record(ctx context.Context, actx audio.Context, device *audio.DeviceInfo, d time.Duration) ([]byte, error) {
	var (
		mu  sync.Mutex
		pcm []byte
	)
	capture, err := actx.NewCapture(device, audio.DefaultCaptureConfig())
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		pcm = append(pcm, data...)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		return nil, err
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	capture.Stop()
	capture.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	return pcm, ctx.Err()
}

type spectrum struct {
	bins      int
	level     float64
	peakBin   int
	peakValue uint8
	peakHz    float64
}

// analyse walks pcm one FFT window at a time and keeps the loudest window.
func analyse(cfg analyser.Config, pcm []byte) (spectrum, error) {
	an, err := analyser.New(cfg)
	if err != nil {
		return spectrum{}, err
	}
	r := spectrum{bins: an.FrequencyBinCount()}
	step := cfg.FFTSize * 2
	var snap analyser.Snapshot
	for off := 0; off < len(pcm); off += step {
		an.FeedPCM(pcm[off:min(off+step, len(pcm))])
		snap = an.ByteFrequencyData(snap)
		if lvl := an.Level(); lvl > r.level {
			r.level = lvl
		}
		if bin, v := snap.Peak(); v > r.peakValue {
			r.peakBin, r.peakValue = bin, v
		}
	}
	r.peakHz = analyser.BinFrequency(r.peakBin, cfg.FFTSize, audio.SampleRate)
	return r, nil
}

// transcribe streams pcm in 100ms chunks and collects final results.
func transcribe(ctx context.Context, rec recognizer.Recognizer, opts recognizer.Options, pcm []byte, timeout time.Duration) (string, recognizer.Stats, error) {
	sess, err := rec.Start(ctx, opts)
	if err != nil {
		return "", recognizer.Stats{}, err
	}

	var finals []string
	var streamErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sess.Events() {
			switch ev.Kind {
			case recognizer.KindResult:
				for _, r := range ev.Results {
					if t := strings.TrimSpace(r.Transcript); r.IsFinal && t != "" {
						finals = append(finals, t)
					}
				}
			case recognizer.KindError:
				streamErr = ev.Err
			case recognizer.KindEnd:
				if ev.Err != nil {
					streamErr = ev.Err
				}
			}
		}
	}()

	chunk := audio.SampleRate * 2 / 10
	for off := 0; off < len(pcm); off += chunk {
		sess.Feed(pcm[off:min(off+chunk, len(pcm))])
	}
	sess.Stop()

	select {
	case <-done:
	case <-time.After(timeout):
		return "", sess.Stats(), errors.New("timeout waiting for recognizer to finish")
	}
	return strings.Join(finals, " "), sess.Stats(), streamErr
}

func saveSample(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audio.EncodeFLAC(f, pcm); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
