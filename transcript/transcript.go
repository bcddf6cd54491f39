// Package transcript holds the two user-visible text surfaces: an
// append-only timestamped log and the single interim caption.
package transcript

import (
	"fmt"
	"sync"
	"time"
)

const DefaultTimeFormat = "15:04:05"

type Line struct {
	Time time.Time
	Text string
}

// Log is append-only: no cap, no dedup, no persistence. Observers run
// synchronously in append order.
type Log struct {
	mu        sync.Mutex
	lines     []Line
	format    string
	now       func() time.Time
	observers []func(Line)
}

type Option func(*Log)

func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func WithTimeFormat(layout string) Option {
	return func(l *Log) {
		if layout != "" {
			l.format = layout
		}
	}
}

func NewLog(opts ...Option) *Log {
	l := &Log{format: DefaultTimeFormat, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Observe registers fn for every line appended from now on.
func (l *Log) Observe(fn func(Line)) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

func (l *Log) Append(msg string) Line {
	l.mu.Lock()
	line := Line{Time: l.now(), Text: msg}
	l.lines = append(l.lines, line)
	// held across observers; they must not call back into Log
	for _, fn := range l.observers {
		fn(line)
	}
	l.mu.Unlock()
	return line
}

func (l *Log) Appendf(format string, args ...any) Line {
	return l.Append(fmt.Sprintf(format, args...))
}

// Lines returns a copy of every line so far.
func (l *Log) Lines() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Format renders a line as "[time] text".
func (l *Log) Format(line Line) string {
	return fmt.Sprintf("[%s] %s", line.Time.Format(l.format), line.Text)
}

// Caption is the single interim transcript region. It is replaced, never
// appended to.
type Caption struct {
	mu       sync.Mutex
	text     string
	onChange func(string)
}

func (c *Caption) OnChange(fn func(string)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Caption) Set(text string) {
	c.mu.Lock()
	c.text = text
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

func (c *Caption) Clear() { c.Set("") }

func (c *Caption) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}
