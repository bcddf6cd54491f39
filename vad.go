package main

import (
	"sync"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"voicecircle/audio"
	"voicecircle/log"
	"voicecircle/visualizer"
)

const (
	vadMode       = 3
	vadFrameMs    = 20
	vadFrameBytes = audio.SampleRate * vadFrameMs / 1000 * 2 // 640 bytes
	vadDebounce   = 3                                        // consecutive speech frames to confirm voice
)

// speechThreshold is the share of frames in a tick that must be speech.
const speechThreshold = 0.10

type speechDetector interface {
	Process(pcm []byte)
	HasSpeechTick() bool
	Reset()
}

type vadProcessor struct {
	vad *webrtcvad.VAD

	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	speechRun     int
	totalFrames   int
	speechFrames  int
	tickTotal     int
	tickSpeech    int
}

func newVADProcessor() (*vadProcessor, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &vadProcessor{vad: v}, nil
}

func (p *vadProcessor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= vadFrameBytes {
		frame := p.buf[:vadFrameBytes]
		active, err := p.vad.Process(audio.SampleRate, frame)
		p.buf = p.buf[vadFrameBytes:]
		if err != nil {
			continue
		}
		p.totalFrames++
		if active {
			p.speechFrames++
			p.speechRun++
			if p.speechRun >= vadDebounce {
				p.voiceDetected = true
			}
		} else {
			p.speechRun = 0
		}
	}
}

func (p *vadProcessor) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceDetected
}

// HasSpeechTick reports whether enough frames since the previous call
// were speech.
func (p *vadProcessor) HasSpeechTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.totalFrames - p.tickTotal
	s := p.speechFrames - p.tickSpeech
	p.tickTotal, p.tickSpeech = p.totalFrames, p.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechThreshold
}

func (p *vadProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = p.buf[:0]
	p.voiceDetected = false
	p.speechRun = 0
	p.tickTotal, p.tickSpeech = p.totalFrames, p.speechFrames
}

// voiceWatch raises the no-voice warning while listening. It is a
// session.Sink so it can follow listening state.
type voiceWatch struct {
	det       speechDetector
	warnAfter time.Duration
	tick      time.Duration
	notify    func(warn bool)

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newVoiceWatch(det speechDetector, warnAfter, tick time.Duration, notify func(bool)) *voiceWatch {
	return &voiceWatch{det: det, warnAfter: warnAfter, tick: tick, notify: notify}
}

// Tap feeds captured PCM to the detector.
func (w *voiceWatch) Tap(pcm []byte) { w.det.Process(pcm) }

func (w *voiceWatch) Frame(visualizer.Frame) {}

func (w *voiceWatch) ListeningChanged(listening bool) {
	if listening {
		w.start()
	} else {
		w.halt()
	}
}

func (w *voiceWatch) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return
	}
	w.det.Reset()
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.stop, w.done)
}

func (w *voiceWatch) halt() {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (w *voiceWatch) run(stop, done chan struct{}) {
	defer close(done)
	mon := newSilenceMonitor(w.warnAfter, w.tick)
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			if mon.Warned() {
				w.notify(false)
			}
			return
		case <-ticker.C:
		}
		switch mon.Tick(w.det.HasSpeechTick()) {
		case SilenceWarn:
			log.Warn("no voice detected")
			w.notify(true)
		case SilenceWarnClear:
			w.notify(false)
		}
	}
}
