package audio

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSamplesNormalizes(t *testing.T) {
	pcm := []byte{0x00, 0x80, 0x00, 0x00, 0xff, 0x7f}
	got := Samples(nil, pcm)
	want := []float64{-1, 0, 32767.0 / 32768.0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestApplyGainClamps(t *testing.T) {
	tests := []struct {
		in   int16
		gain int
		want int16
	}{
		{100, 1, 100},
		{100, 0, 100},
		{100, 3, 300},
		{20000, 2, 32767},
		{-20000, 2, -32768},
	}
	for _, tt := range tests {
		if got := applyGain(tt.in, tt.gain); got != tt.want {
			t.Errorf("applyGain(%d, %d) = %d, want %d", tt.in, tt.gain, got, tt.want)
		}
	}
}

func TestIsBluetooth(t *testing.T) {
	if !IsBluetooth("AirPods Pro") {
		t.Error("AirPods should be bluetooth")
	}
	if IsBluetooth("Built-in Microphone") {
		t.Error("built-in mic should not be bluetooth")
	}
}

func TestFlacRoundTrip(t *testing.T) {
	pcm := Tone(440, 500*time.Millisecond, 0.5)

	var buf bytes.Buffer
	if err := EncodeFLAC(&buf, pcm); err != nil {
		t.Fatalf("EncodeFLAC: %v", err)
	}
	if buf.Len() < 4 || buf.String()[:4] != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	got, err := DecodeFLACReader(&buf)
	if err != nil {
		t.Fatalf("DecodeFLACReader: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Fatalf("decoded %d bytes, want %d identical bytes", len(got), len(pcm))
	}
}

func TestFakeCaptureDeliversAndStops(t *testing.T) {
	ctx := NewFakeContextPCM(Tone(440, 100*time.Millisecond, 0.5), false)
	dev, err := ctx.NewCapture(nil, DefaultCaptureConfig())
	if err != nil {
		t.Fatal(err)
	}

	var frames atomic.Int64
	dev.SetCallback(func(_ []byte, n uint32) { frames.Add(int64(n)) })
	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ctx.Active() != 1 {
		t.Errorf("Active = %d, want 1", ctx.Active())
	}

	select {
	case <-dev.(*FakeCapture).AudioDone():
	case <-time.After(2 * time.Second):
		t.Fatal("audio never finished")
	}
	dev.Stop()
	dev.Stop()

	if ctx.Active() != 0 {
		t.Errorf("Active after Stop = %d, want 0", ctx.Active())
	}
	if frames.Load() < 1600 {
		t.Errorf("delivered %d frames, want at least 1600", frames.Load())
	}

	after := frames.Load()
	time.Sleep(10 * time.Millisecond)
	if frames.Load() != after {
		t.Error("callback fired after Stop")
	}
}

func TestFakeFailStart(t *testing.T) {
	ctx := NewFakeContextPCM(nil, false)
	denied := errors.New("permission denied")
	ctx.FailStart(denied)

	dev, _ := ctx.NewCapture(nil, DefaultCaptureConfig())
	if err := dev.Start(); !errors.Is(err, denied) {
		t.Fatalf("Start err = %v, want %v", err, denied)
	}
	if ctx.Active() != 0 {
		t.Errorf("Active = %d, want 0", ctx.Active())
	}

	ctx.FailStart(nil)
	if err := dev.Start(); err != nil {
		t.Fatalf("Start after clearing failure: %v", err)
	}
	dev.Close()
}

type listContext struct {
	FakeContext
	devices []DeviceInfo
}

func (l *listContext) Devices() ([]DeviceInfo, error) { return l.devices, nil }

func TestFindDevice(t *testing.T) {
	ctx := &listContext{devices: []DeviceInfo{
		{ID: "1", Name: "Built-in Microphone"},
		{ID: "2", Name: "USB Audio"},
	}}

	tests := []struct {
		name    string
		wantID  string
		wantErr bool
	}{
		{"", "", false},
		{"usb audio", "2", false},
		{"built-in", "1", false},
		{"webcam", "", true},
	}
	for _, tt := range tests {
		got, err := FindDevice(ctx, tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("FindDevice(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		gotID := ""
		if got != nil {
			gotID = got.ID
		}
		if gotID != tt.wantID {
			t.Errorf("FindDevice(%q) = %q, want %q", tt.name, gotID, tt.wantID)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   []byte
		want pickerKey
	}{
		{[]byte{13}, keyEnter},
		{[]byte{3}, keyCancel},
		{[]byte("j"), keyDown},
		{[]byte("k"), keyUp},
		{[]byte{0x1b, '[', 'A'}, keyUp},
		{[]byte{0x1b, '[', 'B'}, keyDown},
		{[]byte("x"), keyNone},
	}
	for _, tt := range tests {
		if got := parseKey(tt.in); got != tt.want {
			t.Errorf("parseKey(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
