package session

import (
	"context"
	"time"

	"voicecircle/analyser"
)

// startRenderLocked launches the frame loop. The returned cancel and done
// pair is the only handle to it.
func (s *Session) startRenderLocked(an *analyser.Analyser) {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.renderCancel, s.renderDone = cancel, done
	go s.renderLoop(ctx, done, an)
}

func (s *Session) renderLoop(ctx context.Context, done chan struct{}, an *analyser.Analyser) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Visualizer.FrameInterval())
	defer ticker.Stop()

	start := s.deps.Now()
	var snap analyser.Snapshot
	for {
		snap = an.ByteFrequencyData(snap)
		frame := s.bars.Step(snap, s.deps.Now().Sub(start))
		s.frames.Add(1)
		s.deps.Sink.Frame(frame)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
