package main

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"
)

func genTone(freq float64, durationMs int) []byte {
	n := 16000 * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func genSilence(durationMs int) []byte {
	return make([]byte, 16000*durationMs/1000*2)
}

func TestVADSilence(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genSilence(200))
	if vp.VoiceDetected() {
		t.Error("expected no voice on silence")
	}
	if vp.HasSpeechTick() {
		t.Error("expected no speech tick on silence")
	}
}

func TestVADOddChunkSizes(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	silence := genSilence(200)
	for i := 0; i < len(silence); i += 100 {
		vp.Process(silence[i:min(i+100, len(silence))])
	}
	if vp.VoiceDetected() {
		t.Error("expected no voice on silence with odd chunks")
	}
}

func TestVADReset(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genTone(440, 200))
	vp.Reset()
	if vp.VoiceDetected() {
		t.Error("expected no voice after reset")
	}
	if vp.HasSpeechTick() {
		t.Error("expected empty tick after reset")
	}
}

func TestVADEmptyTick(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genSilence(10)) // less than one frame
	if vp.HasSpeechTick() {
		t.Error("partial frame counted as speech")
	}
}

// scriptedDetector reports speech while speaking is set.
type scriptedDetector struct {
	mu       sync.Mutex
	speaking bool
	fed      int
	resets   int
}

func (d *scriptedDetector) Process(pcm []byte) {
	d.mu.Lock()
	d.fed += len(pcm)
	d.mu.Unlock()
}

func (d *scriptedDetector) HasSpeechTick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

func (d *scriptedDetector) Reset() {
	d.mu.Lock()
	d.resets++
	d.mu.Unlock()
}

func (d *scriptedDetector) setSpeaking(v bool) {
	d.mu.Lock()
	d.speaking = v
	d.mu.Unlock()
}

func TestVoiceWatchWarnsAndClears(t *testing.T) {
	det := &scriptedDetector{}
	events := make(chan bool, 8)
	w := newVoiceWatch(det, 50*time.Millisecond, 5*time.Millisecond, func(warn bool) { events <- warn })

	w.ListeningChanged(true)
	select {
	case warn := <-events:
		if !warn {
			t.Fatal("first event should be a warning")
		}
	case <-time.After(time.Second):
		t.Fatal("no warning on silence")
	}

	det.setSpeaking(true)
	select {
	case warn := <-events:
		if warn {
			t.Fatal("second event should clear the warning")
		}
	case <-time.After(time.Second):
		t.Fatal("warning not cleared on speech")
	}
	w.ListeningChanged(false)
}

func TestVoiceWatchStopClearsWarning(t *testing.T) {
	det := &scriptedDetector{}
	events := make(chan bool, 8)
	w := newVoiceWatch(det, 20*time.Millisecond, 5*time.Millisecond, func(warn bool) { events <- warn })

	w.ListeningChanged(true)
	if warn := <-events; !warn {
		t.Fatal("expected warning")
	}
	w.ListeningChanged(false)
	select {
	case warn := <-events:
		if warn {
			t.Fatal("stop should clear the warning")
		}
	default:
		t.Fatal("stop did not clear the warning")
	}
	// idempotent
	w.ListeningChanged(false)

	w.ListeningChanged(true)
	w.ListeningChanged(false)
	det.mu.Lock()
	defer det.mu.Unlock()
	if det.resets != 2 {
		t.Fatalf("detector reset %d times, want 2", det.resets)
	}
}

func TestVoiceWatchTapFeedsDetector(t *testing.T) {
	det := &scriptedDetector{}
	w := newVoiceWatch(det, time.Second, voiceTick, func(bool) {})
	w.Tap(genSilence(20))
	det.mu.Lock()
	defer det.mu.Unlock()
	if det.fed != 640 {
		t.Fatalf("fed %d bytes, want 640", det.fed)
	}
}
