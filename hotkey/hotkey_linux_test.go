//go:build linux

package hotkey

import "testing"

func TestChordState(t *testing.T) {
	type ev struct {
		code  uint16
		value int32
		want  chordEdge
	}
	tests := []struct {
		name   string
		events []ev
	}{
		{"full chord", []ev{
			{keyLCtrl, keyPress, chordNone},
			{keyLShift, keyPress, chordNone},
			{keySpace, keyPress, chordDown},
			{keySpace, 2, chordNone},
			{keySpace, keyRelease, chordUp},
		}},
		{"space without modifiers", []ev{
			{keySpace, keyPress, chordNone},
			{keySpace, keyRelease, chordNone},
		}},
		{"ctrl released first", []ev{
			{keyRCtrl, keyPress, chordNone},
			{keyRShift, keyPress, chordNone},
			{keyRCtrl, keyRelease, chordNone},
			{keySpace, keyPress, chordNone},
		}},
		{"modifier repeat keeps state", []ev{
			{keyLCtrl, keyPress, chordNone},
			{keyLCtrl, 2, chordNone},
			{keyLShift, keyPress, chordNone},
			{keySpace, keyPress, chordDown},
			{keyLCtrl, keyRelease, chordNone},
			{keySpace, keyRelease, chordUp},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c chordState
			for i, e := range tt.events {
				if got := c.feed(e.code, e.value); got != e.want {
					t.Fatalf("event %d: got %v, want %v", i, got, e.want)
				}
			}
		})
	}
}
