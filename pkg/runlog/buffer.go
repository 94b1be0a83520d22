package runlog

import "sync"

// DefaultCapacity bounds a Buffer unless an explicit capacity is given.
const DefaultCapacity = 10000

// Buffer is a thread-safe ring buffer of entries. When full, the oldest
// entries are overwritten so a long run cannot exhaust memory.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	full    bool
	dropped int
}

// NewBuffer returns a buffer holding at most capacity entries. A capacity
// of zero or less uses DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{entries: make([]Entry, 0, capacity)}
}

// Emit implements Sink.
func (b *Buffer) Emit(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) < cap(b.entries) {
		b.entries = append(b.entries, e)
		return
	}
	b.entries[b.head] = e
	b.head = (b.head + 1) % cap(b.entries)
	b.full = true
	b.dropped++
}

// Entries returns a copy in emission order.
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, len(b.entries))
	if b.full {
		out = append(out, b.entries[b.head:]...)
		out = append(out, b.entries[:b.head]...)
		return out
	}
	return append(out, b.entries...)
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Dropped returns how many entries were overwritten.
func (b *Buffer) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// ChannelSink forwards entries onto a buffered channel, dropping entries
// when the consumer falls behind so the executor never blocks.
type ChannelSink struct {
	C       chan Entry
	mu      sync.Mutex
	dropped int
}

// NewChannelSink returns a sink with the given channel capacity.
func NewChannelSink(capacity int) *ChannelSink {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ChannelSink{C: make(chan Entry, capacity)}
}

// Emit implements Sink.
func (c *ChannelSink) Emit(e Entry) {
	select {
	case c.C <- e:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
	}
}

// Dropped returns how many entries the consumer missed.
func (c *ChannelSink) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes the channel. Only the producer may call it, after the final
// sentinel entry.
func (c *ChannelSink) Close() {
	close(c.C)
}
