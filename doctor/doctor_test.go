package doctor

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicecircle/analyser"
	"voicecircle/audio"
	"voicecircle/clipboard"
	"voicecircle/hotkey"
	"voicecircle/recognizer"
)

func baseOptions(t *testing.T, out *bytes.Buffer) Options {
	t.Helper()
	return Options{
		Audio:      audio.NewFakeContextPCM(audio.Tone(1000, time.Second, 0.05), false),
		Analyser:   analyser.DefaultConfig(),
		Record:     300 * time.Millisecond,
		Recognizer: recognizer.NewFake("hello world"),
		Language:   "en-US",
		Clipboard:  &clipboard.Memory{},
		Timeout:    2 * time.Second,
		Out:        out,
	}
}

func TestRunAllPass(t *testing.T) {
	var out bytes.Buffer
	opts := baseOptions(t, &out)
	opts.SamplePath = filepath.Join(t.TempDir(), "sample.flac")
	hk := hotkey.NewFake()
	hk.SimTap()
	opts.Hotkey = hk

	if code := Run(context.Background(), opts); code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out.String())
	}
	got := out.String()
	for _, want := range []string{
		"PASS: hotkey detected",
		"(1000 Hz)",
		"Recognized: hello world",
		"PASS: copy and readback verified",
		"All checks passed!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	pcm, err := audio.DecodeFLAC(opts.SamplePath)
	if err != nil {
		t.Fatalf("sample not readable: %v", err)
	}
	if len(pcm) == 0 {
		t.Fatal("sample is empty")
	}
}

func TestHotkeyDiagnosis(t *testing.T) {
	tests := []struct {
		name     string
		diagnose func() (string, error)
		wantCode int
		want     string
	}{
		{
			name:     "reports backend",
			diagnose: func() (string, error) { return "2 keyboard(s) found, chord " + hotkey.Combo, nil },
			wantCode: 0,
			want:     "2 keyboard(s) found, chord Ctrl+Shift+Space",
		},
		{
			name:     "no keyboards",
			diagnose: func() (string, error) { return "", errors.New("no keyboard devices found") },
			wantCode: 1,
			want:     "FAIL: no keyboard devices found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			opts := baseOptions(t, &out)
			hk := hotkey.NewFake()
			hk.SimTap()
			opts.Hotkey = hk
			opts.Diagnose = tt.diagnose

			if code := Run(context.Background(), opts); code != tt.wantCode {
				t.Fatalf("exit code %d, want %d:\n%s", code, tt.wantCode, out.String())
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestRunSkipsUnsupportedRecognizer(t *testing.T) {
	var out bytes.Buffer
	opts := baseOptions(t, &out)
	opts.Recognizer = nil
	opts.RecognizerErr = errors.New("set DEEPGRAM_API_KEY or AWS_REGION")

	if code := Run(context.Background(), opts); code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "SKIP: Speech recognition not supported: set DEEPGRAM_API_KEY") {
		t.Errorf("missing skip line:\n%s", out.String())
	}
}

func TestRunMicrophoneFailure(t *testing.T) {
	var out bytes.Buffer
	opts := baseOptions(t, &out)
	fc := audio.NewFakeContextPCM(nil, false)
	fc.FailStart(errors.New("permission denied"))
	opts.Audio = fc

	if code := Run(context.Background(), opts); code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(out.String(), "FAIL: Unable to access microphone: permission denied") {
		t.Errorf("missing failure line:\n%s", out.String())
	}
}

func TestRunRecognizerStartFailure(t *testing.T) {
	var out bytes.Buffer
	opts := baseOptions(t, &out)
	fake := recognizer.NewFake("")
	fake.FailStart(errors.New("401 unauthorized"))
	opts.Recognizer = fake

	if code := Run(context.Background(), opts); code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(out.String(), "FAIL: 401 unauthorized") {
		t.Errorf("missing failure line:\n%s", out.String())
	}
}

func TestRunInterrupted(t *testing.T) {
	var out bytes.Buffer
	opts := baseOptions(t, &out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if code := Run(ctx, opts); code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(out.String(), "FAIL: interrupted") {
		t.Errorf("missing interrupted line:\n%s", out.String())
	}
}

func TestAnalyseSilence(t *testing.T) {
	r, err := analyse(analyser.DefaultConfig(), make([]byte, 8192))
	if err != nil {
		t.Fatal(err)
	}
	if r.level != 0 || r.peakValue != 0 {
		t.Fatalf("silence analysed as level %v peak %d", r.level, r.peakValue)
	}
	if r.bins != 512 {
		t.Fatalf("bins = %d, want 512", r.bins)
	}
}
