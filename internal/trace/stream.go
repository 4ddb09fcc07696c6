package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer formats each accepted event and writes it through a buffer.
// Events reach the underlying writer on Flush, on Close, or when the buffer
// fills.
type StreamTracer struct {
	level  Level
	format Format

	mu     sync.Mutex
	buf    *bufio.Writer
	closer io.Closer // nil when the writer is not ours to close
}

// NewStreamTracer writes to w without taking ownership of it.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return newStream(w, nil, level, format)
}

func newStream(w io.Writer, closer io.Closer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	return &StreamTracer{level: level, format: format, buf: bufio.NewWriter(w), closer: closer}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.accepts(ev) {
		return
	}
	ev.Seq = seqs.next()
	line := FormatEvent(ev, t.format)

	t.mu.Lock()
	// Write errors resurface from Flush.
	_, _ = t.buf.Write(line)
	if ev.Kind == KindError {
		_ = t.buf.Flush()
	}
	t.mu.Unlock()
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Flush()
}

// Close flushes and closes the output file, if the tracer opened one.
func (t *StreamTracer) Close() error {
	err := t.Flush()
	t.mu.Lock()
	closer := t.closer
	t.closer = nil
	t.mu.Unlock()
	if closer != nil {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
