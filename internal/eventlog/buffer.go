package eventlog

import (
	"sync"

	"github.com/ligun0805/wethcycle/internal/swap"
)

const DefaultBufferSize = 200

// Buffer keeps the most recent events in memory for the log view.
type Buffer struct {
	mu   sync.Mutex
	ring []swap.Event
	next int
	full bool
}

func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{ring: make([]swap.Event, size)}
}

func (b *Buffer) Emit(ev swap.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring[b.next] = ev
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
}

// Events returns the retained events, oldest first.
func (b *Buffer) Events() []swap.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]swap.Event(nil), b.ring[:b.next]...)
	}
	out := make([]swap.Event, 0, len(b.ring))
	out = append(out, b.ring[b.next:]...)
	return append(out, b.ring[:b.next]...)
}

// Lines renders the retained events the way the console does.
func (b *Buffer) Lines() []string {
	evs := b.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = dim("["+ev.Time.Format(timeLayout)+"]") + " " + Paint(ev.Severity, ev.Message)
	}
	return out
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next, b.full = 0, false
	clear(b.ring)
}
