package trace

import (
	"fmt"
	"io"
	"sync"
)

// RingTracer keeps the most recent events in a fixed circular buffer. It is
// the post-mortem buffer: the CLI dumps it on exit in ring mode.
type RingTracer struct {
	mu      sync.RWMutex
	events  []Event
	next    int
	stored  int
	dropped uint64
	level   Level
}

// NewRingTracer creates a ring holding capacity events (default 4096).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

// Emit stores a copy of ev, overwriting the oldest event when full.
func (t *RingTracer) Emit(ev *Event) {
	if !t.level.accepts(ev) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := *ev
	stored.Seq = seqs.next()
	t.events[t.next] = stored
	t.next = (t.next + 1) % len(t.events)
	if t.stored < len(t.events) {
		t.stored++
	} else {
		t.dropped++
	}
}

// Snapshot returns the stored events oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Event, 0, t.stored)
	start := (t.next - t.stored + len(t.events)) % len(t.events)
	for i := 0; i < t.stored; i++ {
		out = append(out, t.events[(start+i)%len(t.events)])
	}
	return out
}

// Dropped returns how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dropped
}

// Dump writes the stored events to w. Text dumps start with a note when
// older events were overwritten.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	if dropped := t.Dropped(); dropped > 0 && format != FormatNDJSON {
		if _, err := fmt.Fprintf(w, "(%d earlier events dropped)\n", dropped); err != nil {
			return err
		}
	}
	events := t.Snapshot()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
