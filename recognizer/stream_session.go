package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"voicecircle/audio"
	"voicecircle/log"
)

const (
	streamChunkMs      = 100
	streamChunkBytes   = audio.SampleRate * audio.Channels * (audio.BitsPerSample / 8) * streamChunkMs / 1000
	streamQueueChunks  = 128
	streamFinalizeIdle = 200 * time.Millisecond
	streamFinalizeMax  = 1500 * time.Millisecond
	streamDrainTimeout = 2 * time.Second
)

// rawStreamSession is one provider connection. Recv returns io.EOF when
// the provider ends the stream cleanly.
type rawStreamSession interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Results      []Result
	FromFinalize bool
}

type dialFunc func(ctx context.Context) (rawStreamSession, error)

// streamSession adapts a rawStreamSession to Session: chunking, a send
// queue, graceful finalize on Stop and the End guarantee.
type streamSession struct {
	provider  string
	events    chan Event
	audioCh   chan []byte
	startedAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	quit     chan struct{}
	quitOnce sync.Once

	feedMu     sync.Mutex
	feedBuf    []byte
	feedClosed bool

	mu      sync.Mutex
	ws      rawStreamSession
	err     error
	closing bool
	stats   streamStats
}

type streamStats struct {
	ConnectDur   time.Duration
	SessionDur   time.Duration
	SentChunks   int
	SentBytes    uint64
	Dropped      int
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
}

func newStreamSession(ctx context.Context, provider string, dial dialFunc) *streamSession {
	s := &streamSession{
		provider:  provider,
		events:    make(chan Event, 64),
		audioCh:   make(chan []byte, streamQueueChunks),
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
		quit:      make(chan struct{}),
	}
	go s.run(ctx, dial)
	return s
}

func (s *streamSession) Events() <-chan Event { return s.events }

func (s *streamSession) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *streamSession) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *streamSession) Feed(pcm []byte) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.feedClosed {
		return
	}
	s.feedBuf = append(s.feedBuf, pcm...)
	for len(s.feedBuf) >= streamChunkBytes {
		chunk := make([]byte, streamChunkBytes)
		copy(chunk, s.feedBuf[:streamChunkBytes])
		s.feedBuf = s.feedBuf[streamChunkBytes:]
		s.enqueue(chunk)
	}
}

// enqueue must be called with feedMu held.
func (s *streamSession) enqueue(chunk []byte) {
	select {
	case s.audioCh <- chunk:
	default:
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
	}
}

// closeFeed flushes buffered PCM and closes the send queue.
func (s *streamSession) closeFeed(flush bool) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.feedClosed {
		return
	}
	if flush && len(s.feedBuf) > 0 {
		tail := make([]byte, len(s.feedBuf))
		copy(tail, s.feedBuf)
		s.enqueue(tail)
	}
	s.feedBuf = nil
	s.feedClosed = true
	close(s.audioCh)
}

func (s *streamSession) abort() {
	s.quitOnce.Do(func() { close(s.quit) })
	s.closeFeed(false)
}

func (s *streamSession) run(ctx context.Context, dial dialFunc) {
	defer close(s.events)

	// Stop during the handshake cancels it. Providers must not tie the
	// established stream to the dial context.
	dialCtx, cancelDial := context.WithCancel(ctx)
	defer cancelDial()
	dialed := make(chan struct{})
	go func() {
		select {
		case <-s.stopCh:
			cancelDial()
		case <-dialed:
		}
	}()

	connectStart := time.Now()
	ws, err := dial(dialCtx)
	close(dialed)
	s.mu.Lock()
	s.stats.ConnectDur = time.Since(connectStart)
	s.mu.Unlock()
	if err != nil {
		s.abort()
		if s.stopped() {
			s.finish(nil)
			return
		}
		s.finish(fmt.Errorf("%s connect: %w", s.provider, err))
		return
	}

	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()

	sendDone := make(chan struct{})
	recvDone := make(chan struct{})
	finalized := make(chan struct{})
	go s.runSender(ws, sendDone)
	go s.runReceiver(ws, recvDone, finalized)

	select {
	case <-s.stopCh:
		s.closeFeed(true)
		<-sendDone
		select {
		case <-finalized:
			time.Sleep(streamFinalizeIdle)
		case <-recvDone:
		case <-time.After(streamFinalizeMax):
		}
	case <-recvDone:
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.abort()
	ws.Close()

	select {
	case <-recvDone:
	case <-time.After(streamDrainTimeout):
		log.Warn("recognizer receiver drain timeout")
		<-recvDone
	}
	<-sendDone

	s.mu.Lock()
	err = s.err
	s.mu.Unlock()
	s.finish(err)
}

func (s *streamSession) finish(err error) {
	s.mu.Lock()
	s.stats.SessionDur = time.Since(s.startedAt)
	s.mu.Unlock()
	if err != nil {
		s.events <- Event{Kind: KindError, Err: err}
	}
	s.events <- Event{Kind: KindEnd, Err: err}
}

func (s *streamSession) runSender(ws rawStreamSession, done chan struct{}) {
	defer close(done)
	for chunk := range s.audioCh {
		select {
		case <-s.quit:
			return
		default:
		}
		if err := ws.Send(chunk); err != nil {
			s.setErr(err)
			return
		}
		s.mu.Lock()
		s.stats.SentChunks++
		s.stats.SentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
	select {
	case <-s.quit:
		return
	default:
	}
	if err := ws.CloseSend(); err != nil {
		s.setErr(err)
	}
}

func (s *streamSession) runReceiver(ws rawStreamSession, done, finalized chan struct{}) {
	defer close(done)
	var finalizedOnce sync.Once
	markFinalized := func() { finalizedOnce.Do(func() { close(finalized) }) }

	for {
		update, err := ws.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				markFinalized()
				return
			}
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if !closing {
				s.setErr(err)
			}
			return
		}

		s.mu.Lock()
		s.stats.RecvMessages++
		for _, r := range update.Results {
			if r.IsFinal {
				s.stats.RecvFinal++
			} else {
				s.stats.RecvInterim++
			}
		}
		s.mu.Unlock()

		if len(update.Results) > 0 {
			s.events <- Event{Kind: KindResult, Results: update.Results}
		}
		if update.FromFinalize {
			markFinalized()
		}
	}
}

func (s *streamSession) setErr(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = err
	ws := s.ws
	s.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
}

func (s *streamSession) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	s.mu.Unlock()
	total := st.SessionDur
	if total == 0 {
		total = time.Since(s.startedAt)
	}
	return Stats{
		ConnectMs:    float64(st.ConnectDur.Milliseconds()),
		TotalMs:      float64(total.Milliseconds()),
		SentChunks:   st.SentChunks,
		SentKB:       float64(st.SentBytes) / 1024,
		Dropped:      st.Dropped,
		RecvMessages: st.RecvMessages,
		RecvFinal:    st.RecvFinal,
		RecvInterim:  st.RecvInterim,
	}
}
