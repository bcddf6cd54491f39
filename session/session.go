// Package session owns the listening state: the audio graph, the render
// loop and the recognizer session, started and stopped together by one
// toggle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voicecircle/analyser"
	"voicecircle/audio"
	"voicecircle/log"
	"voicecircle/recognizer"
	"voicecircle/transcript"
	"voicecircle/visualizer"
)

// ErrBusy is returned when a start or stop is already in progress.
var ErrBusy = errors.New("session: transition in progress")

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Sink receives render output and state changes. Methods are called from
// session goroutines and must not block.
type Sink interface {
	ListeningChanged(listening bool)
	Frame(f visualizer.Frame)
}

// Cues plays short audible feedback.
type Cues interface {
	PlayStart()
	PlayEnd()
	PlayError()
}

type Config struct {
	Visualizer     visualizer.Config
	Analyser       analyser.Config
	Capture        audio.CaptureConfig
	Device         *audio.DeviceInfo
	Language       string
	RestartBackoff time.Duration
}

type Deps struct {
	// Audio opens the audio context. It is called on the first successful
	// start only; a failure is retried on the next start.
	Audio func() (audio.Context, error)
	// Recognizer is nil when recognition is unsupported; Unsupported then
	// holds the reason.
	Recognizer  recognizer.Recognizer
	Unsupported error

	Log     *transcript.Log
	Caption *transcript.Caption
	Sink    Sink
	Cues    Cues
	// Tap sees every captured PCM buffer after the analyser.
	Tap func(pcm []byte)
	// Now is the render clock; defaults to time.Now.
	Now func() time.Time
}

type nopSink struct{}

func (nopSink) ListeningChanged(bool)  {}
func (nopSink) Frame(visualizer.Frame) {}

type recRef struct{ s recognizer.Session }

type Session struct {
	cfg  Config
	deps Deps
	ctx  context.Context

	mu       sync.Mutex
	state    State
	busy     bool
	audioCtx audio.Context
	an       *analyser.Analyser
	bars     *visualizer.Bars
	capture  audio.CaptureDevice

	renderCancel context.CancelFunc
	renderDone   chan struct{}
	listenDone   chan struct{}

	rec      recognizer.Session
	gen      uint64
	recFeed  atomic.Pointer[recRef]
	pumps    sync.WaitGroup
	reported bool

	listenID    string
	listenStart time.Time
	listens     int
	finals      int
	restarts    int
	lastFinal   string
	frames      atomic.Int64
}

func New(ctx context.Context, cfg Config, deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = transcript.NewLog()
	}
	if deps.Caption == nil {
		deps.Caption = &transcript.Caption{}
	}
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture = audio.DefaultCaptureConfig()
	}
	return &Session{
		cfg:  cfg,
		deps: deps,
		ctx:  ctx,
		bars: visualizer.NewBars(cfg.Visualizer),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Listening() bool { return s.State() == Listening }

// Frames counts frames rendered in the current or last listening period.
func (s *Session) Frames() int64 { return s.frames.Load() }

// LastRecognized is the most recent final transcript, if any.
func (s *Session) LastRecognized() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFinal
}

// Listens counts successful starts.
func (s *Session) Listens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listens
}

func (s *Session) Toggle() error {
	s.mu.Lock()
	busy, state := s.busy, s.state
	s.mu.Unlock()
	if busy {
		return ErrBusy
	}
	if state == Listening {
		return s.Stop()
	}
	return s.Start()
}

func (s *Session) begin(want State) (proceed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false, ErrBusy
	}
	if s.state == want {
		return false, nil
	}
	s.busy = true
	return true, nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Start opens the microphone and begins rendering and recognition. On a
// microphone failure the session stays Idle and the error is returned
// after being logged.
func (s *Session) Start() error {
	proceed, err := s.begin(Listening)
	if !proceed {
		return err
	}
	defer s.end()

	an, actx, err := s.ensureGraph()
	if err != nil {
		return s.micFailure(err)
	}

	dev, err := actx.NewCapture(s.cfg.Device, s.cfg.Capture)
	if err != nil {
		return s.micFailure(err)
	}
	an.Reset()
	dev.SetCallback(s.onPCM)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return s.micFailure(err)
	}

	s.mu.Lock()
	s.state = Listening
	s.capture = dev
	s.listenID = uuid.NewString()
	s.listenStart = time.Now()
	s.listens++
	s.finals = 0
	s.restarts = 0
	s.listenDone = make(chan struct{})
	s.frames.Store(0)
	s.bars.Reset()
	s.startRenderLocked(an)
	id := s.listenID
	s.mu.Unlock()

	s.deps.Sink.ListeningChanged(true)
	s.deps.Log.Append("Listening started...")
	log.ListeningStart(id, dev.DeviceName())
	if s.deps.Cues != nil {
		s.deps.Cues.PlayStart()
	}

	s.startRecognizer()
	return nil
}

// Stop ends listening: render loop first, then the recognizer, then the
// microphone. The caption is cleared.
func (s *Session) Stop() error {
	proceed, err := s.begin(Idle)
	if !proceed {
		return err
	}
	defer s.end()

	s.mu.Lock()
	s.state = Idle
	cancel, done := s.renderCancel, s.renderDone
	s.renderCancel, s.renderDone = nil, nil
	rec := s.rec
	s.rec = nil
	s.gen++
	dev := s.capture
	s.capture = nil
	close(s.listenDone)
	stats := log.ListenStats{
		DurationS: time.Since(s.listenStart).Seconds(),
		Finals:    s.finals,
		Restarts:  s.restarts,
	}
	id := s.listenID
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	stats.Frames = int(s.frames.Load())

	s.recFeed.Store(nil)
	if rec != nil {
		rec.Stop()
	}
	if dev != nil {
		dev.ClearCallback()
		dev.Stop()
		dev.Close()
	}

	s.deps.Caption.Clear()
	s.deps.Sink.ListeningChanged(false)
	s.deps.Log.Append("Listening stopped.")
	log.ListeningStop(id, stats)
	if s.deps.Cues != nil {
		s.deps.Cues.PlayEnd()
	}
	return nil
}

// Close stops listening, waits for recognizer sessions to drain and
// releases the audio context.
func (s *Session) Close() {
	for {
		err := s.Stop()
		if !errors.Is(err, ErrBusy) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.pumps.Wait()

	s.mu.Lock()
	actx := s.audioCtx
	s.audioCtx = nil
	s.mu.Unlock()
	if actx != nil {
		actx.Close()
	}
}

// ensureGraph builds the analyser and audio context on first use. Only
// called while a transition is in progress.
func (s *Session) ensureGraph() (*analyser.Analyser, audio.Context, error) {
	s.mu.Lock()
	an, actx := s.an, s.audioCtx
	s.mu.Unlock()
	if actx != nil {
		return an, actx, nil
	}

	an, err := analyser.New(s.cfg.Analyser)
	if err != nil {
		return nil, nil, err
	}
	actx, err = s.deps.Audio()
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	s.an, s.audioCtx = an, actx
	s.mu.Unlock()
	return an, actx, nil
}

func (s *Session) micFailure(err error) error {
	s.deps.Log.Appendf("Error: Unable to access microphone: %v", err)
	log.Errorf("microphone: %v", err)
	if s.deps.Cues != nil {
		s.deps.Cues.PlayError()
	}
	return fmt.Errorf("microphone: %w", err)
}

// onPCM runs on the capture goroutine and must not take s.mu.
func (s *Session) onPCM(pcm []byte, _ uint32) {
	s.an.FeedPCM(pcm)
	if s.deps.Tap != nil {
		s.deps.Tap(pcm)
	}
	if ref := s.recFeed.Load(); ref != nil {
		ref.s.Feed(pcm)
	}
}
