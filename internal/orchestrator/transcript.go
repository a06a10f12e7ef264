package orchestrator

import (
	"strings"
	"sync"
)

// transcript is the append-only text seen so far. One writer (the feeder),
// many readers.
type transcript struct {
	mu      sync.RWMutex
	b       strings.Builder
	version int
}

func (t *transcript) append(s string) {
	if s == "" {
		return
	}
	t.mu.Lock()
	t.b.WriteString(s)
	t.version++
	t.mu.Unlock()
}

// snapshot returns the text and a version that changes on every append.
func (t *transcript) snapshot() (string, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.b.String(), t.version
}

func (t *transcript) String() string {
	s, _ := t.snapshot()
	return s
}
