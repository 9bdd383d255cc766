// Package fragment persists query state in a navigable address fragment
// and restores widget selections from it.
package fragment

import (
	"strings"
	"sync"
)

// Navigator is the port to the navigable address: the browser location
// hash in a UI, a state file for the CLI, memory in tests.
type Navigator interface {
	// ReadFragment returns the live fragment without the leading '#'.
	ReadFragment() string
	// WriteFragment makes f the live fragment. Implementations may
	// normalize it, so callers re-read rather than assume.
	WriteFragment(f string)
	// GoBack steps one entry back in navigation history.
	GoBack()
}

// Notifier is implemented by navigators that can report external changes
// instead of waiting to be polled.
type Notifier interface {
	Changes() <-chan struct{}
}

func normalize(f string) string {
	return strings.TrimPrefix(f, "#")
}

// MemoryNavigator keeps a browser-like history stack in memory. The first
// entry is the empty fragment of a freshly loaded page.
type MemoryNavigator struct {
	mu      sync.Mutex
	history []string
	pos     int
}

// NewMemoryNavigator creates a navigator whose live fragment is initial.
func NewMemoryNavigator(initial string) *MemoryNavigator {
	return &MemoryNavigator{history: []string{normalize(initial)}}
}

// ReadFragment returns the live fragment.
func (n *MemoryNavigator) ReadFragment() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history[n.pos]
}

// WriteFragment pushes f unless it is already live. Forward history is
// dropped, as in a browser.
func (n *MemoryNavigator) WriteFragment(f string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.push(normalize(f))
}

// Navigate simulates the user typing an address or following a link.
func (n *MemoryNavigator) Navigate(f string) {
	n.WriteFragment(f)
}

// GoBack moves one entry back. At the first entry it does nothing.
func (n *MemoryNavigator) GoBack() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pos > 0 {
		n.pos--
	}
}

// GoForward moves one entry forward if there is one.
func (n *MemoryNavigator) GoForward() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pos < len(n.history)-1 {
		n.pos++
	}
}

// History returns a copy of the history stack and the live position.
func (n *MemoryNavigator) History() ([]string, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.history))
	copy(out, n.history)
	return out, n.pos
}

func (n *MemoryNavigator) push(f string) {
	if n.history[n.pos] == f {
		return
	}
	n.history = append(n.history[:n.pos+1], f)
	n.pos++
}
