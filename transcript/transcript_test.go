package transcript

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(step)
		return now
	}
}

func TestAppendOrderAndTimestamps(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	log := NewLog(WithClock(stepClock(start, time.Second)))

	log.Append("Voice Circle Visualization ready.")
	log.Append("Listening started...")
	log.Appendf("Recognized: %s", "hello")

	lines := log.Lines()
	want := []string{
		"[09:30:00] Voice Circle Visualization ready.",
		"[09:30:01] Listening started...",
		"[09:30:02] Recognized: hello",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, w := range want {
		if got := log.Format(lines[i]); got != w {
			t.Errorf("line %d = %q, want %q", i, got, w)
		}
		if i > 0 && lines[i].Time.Before(lines[i-1].Time) {
			t.Errorf("line %d timestamp goes backwards", i)
		}
	}
}

func TestNoDedup(t *testing.T) {
	log := NewLog()
	log.Append("same")
	log.Append("same")
	if log.Len() != 2 {
		t.Errorf("Len = %d, want 2", log.Len())
	}
}

func TestLinesIsCopy(t *testing.T) {
	log := NewLog()
	log.Append("a")
	lines := log.Lines()
	lines[0].Text = "mutated"
	if log.Lines()[0].Text != "a" {
		t.Error("Lines exposed internal storage")
	}
}

func TestObserversSeeArrivalOrder(t *testing.T) {
	log := NewLog()
	var got []string
	log.Observe(func(l Line) { got = append(got, l.Text) })

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(fmt.Sprintf("msg %d", i))
		}()
	}
	wg.Wait()

	lines := log.Lines()
	if len(got) != len(lines) {
		t.Fatalf("observer saw %d lines, log has %d", len(got), len(lines))
	}
	for i := range lines {
		if got[i] != lines[i].Text {
			t.Fatalf("observer order differs at %d: %q vs %q", i, got[i], lines[i].Text)
		}
	}
}

func TestCustomTimeFormat(t *testing.T) {
	at := time.Date(2024, 3, 1, 21, 5, 9, 0, time.UTC)
	log := NewLog(WithClock(func() time.Time { return at }), WithTimeFormat("3:04:05 PM"))
	if got := log.Format(log.Append("x")); got != "[9:05:09 PM] x" {
		t.Errorf("Format = %q", got)
	}
}

func TestCaption(t *testing.T) {
	var c Caption
	var seen []string
	c.OnChange(func(s string) { seen = append(seen, s) })

	c.Set("h")
	c.Set("he")
	c.Clear()

	if c.Text() != "" {
		t.Errorf("Text = %q, want empty", c.Text())
	}
	want := []string{"h", "he", ""}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("changes = %q, want %q", seen, want)
	}
}
