package hotkey

import (
	"sync"
	"time"
)

// Toggler turns chord presses into toggle requests. A tap toggles. A press
// that starts listening and is held past longPress toggles again on release,
// so holding the chord works as push-to-talk.
type Toggler struct {
	requests chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewToggler reads hk until Close. listening reports the current state and
// is sampled at each press.
func NewToggler(hk Hotkey, longPress time.Duration, listening func() bool) *Toggler {
	t := &Toggler{
		requests: make(chan struct{}, 2),
		done:     make(chan struct{}),
	}
	go t.run(hk, longPress, listening)
	return t
}

// Requests delivers one value per toggle the caller should perform.
func (t *Toggler) Requests() <-chan struct{} { return t.requests }

func (t *Toggler) Close() {
	t.once.Do(func() { close(t.done) })
}

func (t *Toggler) emit() bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.requests <- struct{}{}:
		return true
	case <-t.done:
		return false
	}
}

func (t *Toggler) run(hk Hotkey, longPress time.Duration, listening func() bool) {
	for {
		select {
		case <-t.done:
			return
		case <-hk.Keydown():
		}

		starting := !listening()
		if !t.emit() {
			return
		}
		pressed := time.Now()

		select {
		case <-t.done:
			return
		case <-hk.Keyup():
		}
		if starting && time.Since(pressed) >= longPress {
			if !t.emit() {
				return
			}
		}
	}
}
