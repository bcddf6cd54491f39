// Package hotkey watches the global Ctrl+Shift+Space chord and turns it
// into listening toggles.
package hotkey

// Combo is the chord every backend listens for.
const Combo = "Ctrl+Shift+Space"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
