// Package beep plays the short start, stop and error cues.
package beep

import (
	"sync"
	"sync/atomic"
)

const sampleRate = 44100

type cue int

const (
	cueStart cue = iota
	cueEnd
	cueError
)

// tone describes one decaying sine cue.
type tone struct {
	freq   float64
	dur    float64
	volume float64
	decay  float64
	// repeat > 1 plays the tick again after gap seconds.
	repeat int
	gap    float64
}

var tones = map[cue]tone{
	cueStart: {freq: 1200, dur: 0.06, volume: 0.5, decay: 60, repeat: 1},
	cueEnd:   {freq: 900, dur: 0.08, volume: 0.5, decay: 40, repeat: 1},
	cueError: {freq: 350, dur: 0.08, volume: 0.6, decay: 30, repeat: 2, gap: 0.05},
}

// output is the platform playback sink. play must not block the caller.
type output interface {
	play(samples []int16)
	close()
}

// Player implements the session cue hooks.
type Player struct {
	disabled atomic.Bool

	once    sync.Once
	out     output
	samples map[cue][]int16
}

func New() *Player {
	return &Player{}
}

func (p *Player) Disable() { p.disabled.Store(true) }

func (p *Player) Enabled() bool { return !p.disabled.Load() }

// Init prepares the samples and opens the output ahead of the first cue.
func (p *Player) Init() { p.once.Do(p.init) }

func (p *Player) init() {
	p.samples = make(map[cue][]int16, len(tones))
	for c, t := range tones {
		p.samples[c] = t.render(sampleRate)
	}
	p.out = newOutput()
}

func (p *Player) PlayStart() { p.play(cueStart) }
func (p *Player) PlayEnd()   { p.play(cueEnd) }
func (p *Player) PlayError() { p.play(cueError) }

func (p *Player) play(c cue) {
	if p.disabled.Load() {
		return
	}
	p.Init()
	if p.out == nil {
		return
	}
	p.out.play(p.samples[c])
}

func (p *Player) Close() {
	p.Init()
	if p.out != nil {
		p.out.close()
	}
}
