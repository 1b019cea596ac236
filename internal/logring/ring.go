// Package logring keeps a bounded in-memory log of daemon activity for the
// dashboard, with live fan-out for stream subscribers.
package logring

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity bounds the ring when the caller passes 0.
const DefaultCapacity = 500

// Entry is one recorded log line.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Buffer is a fixed-capacity ring of log entries. Appends never block;
// subscribers that fall behind miss entries rather than stalling the
// writer.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
	subs    map[chan Entry]struct{}
}

// NewBuffer returns a Buffer holding at most capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries: make([]Entry, capacity),
		subs:    make(map[chan Entry]struct{}),
	}
}

// Append records one entry and fans it out to subscribers.
func (b *Buffer) Append(level, format string, args ...any) {
	e := Entry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	}
	b.mu.Lock()
	idx := (b.start + b.count) % len(b.entries)
	if b.count == len(b.entries) {
		b.start = (b.start + 1) % len(b.entries)
	} else {
		b.count++
	}
	b.entries[idx] = e
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	b.mu.Unlock()
}

// Entries returns the retained entries in chronological order.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0, b.count)
	for i := 0; i < b.count; i++ {
		out = append(out, b.entries[(b.start+i)%len(b.entries)])
	}
	return out
}

// Subscribe registers a live entry feed. The returned cancel func must be
// called to release the subscription.
func (b *Buffer) Subscribe() (<-chan Entry, func()) {
	ch := make(chan Entry, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}
