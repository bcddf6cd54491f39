package clipboard

import (
	"errors"
	"testing"
)

func TestCopyText(t *testing.T) {
	tests := []struct {
		in, want string
		err      error
	}{
		{"hello world", "hello world", nil},
		{"  padded \n", "padded", nil},
		{"", "", ErrEmpty},
		{" \t ", "", ErrEmpty},
	}
	for _, tt := range tests {
		m := &Memory{}
		err := CopyText(m, tt.in)
		if !errors.Is(err, tt.err) {
			t.Fatalf("CopyText(%q) err = %v, want %v", tt.in, err, tt.err)
		}
		got, _ := m.Read()
		if got != tt.want {
			t.Errorf("CopyText(%q) copied %q, want %q", tt.in, got, tt.want)
		}
		if tt.err != nil && m.Copies() != 0 {
			t.Errorf("CopyText(%q) wrote to clipboard", tt.in)
		}
	}
}
