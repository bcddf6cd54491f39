// Package clipboard copies recognized text to the system clipboard.
package clipboard

import (
	"errors"
	"strings"
	"sync"

	cb "github.com/atotto/clipboard"
)

var ErrEmpty = errors.New("nothing recognized yet")

type Clipboard interface {
	Copy(text string) error
	Read() (string, error)
}

type System struct{}

func (System) Copy(text string) error { return cb.WriteAll(text) }

func (System) Read() (string, error) { return cb.ReadAll() }

// Supported is false when no clipboard utility is available (for example
// a Linux box without xclip, xsel or wl-copy).
func Supported() bool { return !cb.Unsupported }

// CopyText trims text and copies it. Empty text is ErrEmpty.
func CopyText(c Clipboard, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}
	return c.Copy(text)
}

// Memory is an in-process clipboard for tests and headless runs.
type Memory struct {
	mu   sync.Mutex
	text string
	n    int
}

func (m *Memory) Copy(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.n++
	return nil
}

func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *Memory) Copies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}
