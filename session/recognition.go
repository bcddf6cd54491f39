package session

import (
	"errors"
	"strings"
	"time"

	"voicecircle/audio"
	"voicecircle/log"
	"voicecircle/recognizer"
)

// minRestartRetry spaces out restarts whose Start call fails.
const minRestartRetry = 100 * time.Millisecond

func (s *Session) recognizerOptions() recognizer.Options {
	return recognizer.Options{Language: s.cfg.Language, SampleRate: audio.SampleRate}
}

// startRecognizer begins the first recognizer session of a listening
// period, or reports once per process that recognition is unsupported.
func (s *Session) startRecognizer() {
	if s.deps.Recognizer == nil {
		s.reportUnsupported(s.deps.Unsupported)
		return
	}
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.launch(gen, false)
}

func (s *Session) reportUnsupported(reason error) {
	s.mu.Lock()
	already := s.reported
	s.reported = true
	s.mu.Unlock()
	if already {
		return
	}
	if reason == nil {
		reason = recognizer.ErrUnsupported
	}
	msg := "Speech recognition not supported"
	if detail := strings.TrimPrefix(reason.Error(), recognizer.ErrUnsupported.Error()); detail != reason.Error() {
		msg += detail
	} else {
		msg += ": " + reason.Error()
	}
	s.deps.Log.Append(msg)
	log.Warn(msg)
}

// launch starts a recognizer session that replaces generation gen. It is
// a no-op when listening stopped or another session took over meanwhile.
// A failed restart is retried until listening stops.
func (s *Session) launch(gen uint64, restart bool) {
	if restart && !s.isCurrent(gen) {
		return
	}
	rs, err := s.deps.Recognizer.Start(s.ctx, s.recognizerOptions())
	if err != nil {
		if errors.Is(err, recognizer.ErrUnsupported) {
			s.reportUnsupported(err)
			return
		}
		s.deps.Log.Appendf("Recognition error: %v", err)
		log.Errorf("recognizer start: %v", err)
		if restart {
			s.relaunchAfter(gen, max(s.cfg.RestartBackoff, minRestartRetry))
		}
		return
	}

	s.mu.Lock()
	if s.state != Listening || s.gen != gen {
		s.mu.Unlock()
		rs.Stop()
		s.drain(rs)
		return
	}
	s.gen++
	mine := s.gen
	s.rec = rs
	s.recFeed.Store(&recRef{s: rs})
	s.pumps.Add(1)
	s.mu.Unlock()

	go s.pump(mine, rs)
}

func (s *Session) drain(rs recognizer.Session) {
	s.pumps.Add(1)
	go func() {
		defer s.pumps.Done()
		for range rs.Events() {
		}
	}()
}

func (s *Session) pump(gen uint64, rs recognizer.Session) {
	defer s.pumps.Done()
	for ev := range rs.Events() {
		s.handle(gen, rs, ev)
	}
}

func (s *Session) handle(gen uint64, rs recognizer.Session, ev recognizer.Event) {
	switch ev.Kind {
	case recognizer.KindResult:
		s.onResults(gen, ev.Results)
	case recognizer.KindError:
		s.deps.Log.Appendf("Recognition error: %v", ev.Err)
	case recognizer.KindEnd:
		s.onEnd(gen, rs, ev.Err)
	}
}

// onResults logs each final once and replaces the caption with the
// interim text. Results from a session that is no longer current still
// reach the log, but not the caption.
func (s *Session) onResults(gen uint64, results []recognizer.Result) {
	var finals []string
	for _, r := range results {
		if !r.IsFinal {
			continue
		}
		if text := strings.TrimSpace(r.Transcript); text != "" {
			finals = append(finals, text)
		}
	}

	s.mu.Lock()
	current := s.gen == gen && s.state == Listening
	s.finals += len(finals)
	if len(finals) > 0 {
		s.lastFinal = finals[len(finals)-1]
	}
	if current {
		// under s.mu so a concurrent Stop clears after, never before
		s.deps.Caption.Set(recognizer.InterimText(results))
	}
	s.mu.Unlock()

	for _, text := range finals {
		s.deps.Log.Append("Recognized: " + text)
	}
}

// onEnd restarts recognition if the ended session is still the current
// one. A session that failed waits RestartBackoff first.
func (s *Session) onEnd(gen uint64, rs recognizer.Session, endErr error) {
	st := rs.Stats()
	s.mu.Lock()
	id := s.listenID
	current := s.gen == gen && s.state == Listening
	var listenDone chan struct{}
	if current {
		s.restarts++
		listenDone = s.listenDone
	}
	s.mu.Unlock()

	m := log.RecognizerStats{
		Provider:     s.deps.Recognizer.Name(),
		ConnectMs:    st.ConnectMs,
		TotalMs:      st.TotalMs,
		SentChunks:   st.SentChunks,
		SentKB:       st.SentKB,
		RecvMessages: st.RecvMessages,
		RecvFinal:    st.RecvFinal,
		RecvInterim:  st.RecvInterim,
	}
	if endErr != nil {
		m.Err = endErr.Error()
	}
	log.RecognizerEnd(id, m)

	if !current {
		return
	}
	if endErr != nil && s.cfg.RestartBackoff > 0 {
		go s.relaunch(gen, s.cfg.RestartBackoff, listenDone)
		return
	}
	s.launch(gen, true)
}

// relaunchAfter schedules a restart of generation gen if it is still the
// current one.
func (s *Session) relaunchAfter(gen uint64, delay time.Duration) {
	s.mu.Lock()
	current := s.gen == gen && s.state == Listening
	listenDone := s.listenDone
	s.mu.Unlock()
	if current {
		go s.relaunch(gen, delay, listenDone)
	}
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.state == Listening
}

func (s *Session) relaunch(gen uint64, delay time.Duration, listenDone <-chan struct{}) {
	select {
	case <-time.After(delay):
		s.launch(gen, true)
	case <-listenDone:
	}
}
