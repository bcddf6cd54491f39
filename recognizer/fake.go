package recognizer

import (
	"context"
	"strings"
	"sync"
	"time"

	"voicecircle/audio"
)

// fakeWordBytes is how much audio the fake "hears" per word: 300ms.
const fakeWordBytes = audio.SampleRate * 2 * 300 / 1000

// Fake is a scripted recognizer. Tests drive sessions by hand through
// FakeSession; with a transcript it also produces interim and final
// results from the audio it is fed, for headless runs.
type Fake struct {
	transcript []string

	mu       sync.Mutex
	sessions []*FakeSession
	startErr error
	started  chan *FakeSession
}

func NewFake(transcript string) *Fake {
	return &Fake{
		transcript: strings.Fields(transcript),
		started:    make(chan *FakeSession, 64),
	}
}

func (f *Fake) Name() string { return "fake" }

// FailStart makes subsequent Start calls return err.
func (f *Fake) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *Fake) Start(_ context.Context, _ Options) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	s := &FakeSession{
		words:  f.transcript,
		events: make(chan Event, 64),
	}
	f.sessions = append(f.sessions, s)
	select {
	case f.started <- s:
	default:
	}
	return s, nil
}

// Started delivers each session as it is started.
func (f *Fake) Started() <-chan *FakeSession { return f.started }

func (f *Fake) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// Stops is the total number of Stop calls across all sessions.
func (f *Fake) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		n += s.StopCalls()
	}
	return n
}

func (f *Fake) Sessions() []*FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeSession, len(f.sessions))
	copy(out, f.sessions)
	return out
}

// WaitStarted returns the next started session or nil after timeout.
func (f *Fake) WaitStarted(timeout time.Duration) *FakeSession {
	select {
	case s := <-f.started:
		return s
	case <-time.After(timeout):
		return nil
	}
}

type FakeSession struct {
	words []string

	mu        sync.Mutex
	events    chan Event
	ended     bool
	stopCalls int
	fed       int
	heard     int
	wordIdx   int
}

func (s *FakeSession) Events() <-chan Event { return s.events }

func (s *FakeSession) Feed(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.fed += len(pcm)
	if len(s.words) == 0 {
		return
	}
	s.heard += len(pcm)
	for s.heard >= fakeWordBytes {
		s.heard -= fakeWordBytes
		s.wordIdx++
		text := strings.Join(s.words[:s.wordIdx], " ")
		final := s.wordIdx == len(s.words)
		s.emitLocked(Event{Kind: KindResult, Results: []Result{{Transcript: text, IsFinal: final}}})
		if final {
			s.wordIdx = 0
		}
	}
}

func (s *FakeSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	s.endLocked(nil)
}

func (s *FakeSession) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{SentKB: float64(s.fed) / 1024}
}

func (s *FakeSession) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

func (s *FakeSession) Fed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fed
}

func (s *FakeSession) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Emit delivers results as one event.
func (s *FakeSession) Emit(results ...Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(Event{Kind: KindResult, Results: results})
}

// Fail reports err and ends the session, like a dropped connection.
func (s *FakeSession) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(Event{Kind: KindError, Err: err})
	s.endLocked(err)
}

// End finishes the session as if the provider closed it.
func (s *FakeSession) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(nil)
}

func (s *FakeSession) emitLocked(ev Event) {
	if s.ended {
		return
	}
	s.events <- ev
}

func (s *FakeSession) endLocked(err error) {
	if s.ended {
		return
	}
	s.events <- Event{Kind: KindEnd, Err: err}
	s.ended = true
	close(s.events)
}
