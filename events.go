package main

import (
	"sync"

	"voicecircle/session"
	"voicecircle/visualizer"
)

// fanout forwards session events to several sinks in order.
type fanout []session.Sink

func (f fanout) ListeningChanged(listening bool) {
	for _, s := range f {
		s.ListeningChanged(listening)
	}
}

func (f fanout) Frame(fr visualizer.Frame) {
	for _, s := range f {
		s.Frame(fr)
	}
}

// bridge hands events to a front end without ever blocking the caller.
// Control messages keep their order; frames collapse to the newest one.
type bridge struct {
	mu    sync.Mutex
	queue []any
	frame *visualizer.Frame

	kick chan struct{}
	done chan struct{}
	once sync.Once
}

func newBridge() *bridge {
	return &bridge{
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (b *bridge) wake() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *bridge) post(msg any) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	b.wake()
}

func (b *bridge) ListeningChanged(listening bool) {
	b.mu.Lock()
	if !listening {
		// frames still pending belong to the finished listen
		b.frame = nil
	}
	b.queue = append(b.queue, ListeningMsg{On: listening})
	b.mu.Unlock()
	b.wake()
}

func (b *bridge) Frame(f visualizer.Frame) {
	b.mu.Lock()
	b.frame = &f
	b.mu.Unlock()
	b.wake()
}

// run delivers pending messages through send until close.
func (b *bridge) run(send func(msg any)) {
	for {
		select {
		case <-b.done:
			return
		case <-b.kick:
		}
		b.mu.Lock()
		queue, frame := b.queue, b.frame
		b.queue, b.frame = nil, nil
		b.mu.Unlock()

		for _, m := range queue {
			send(m)
		}
		if frame != nil {
			send(FrameMsg{Frame: *frame})
		}
	}
}

func (b *bridge) close() {
	b.once.Do(func() { close(b.done) })
}
