package trace

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

// counter hands out process-wide identifiers starting at 1.
type counter struct{ n atomic.Uint64 }

func (c *counter) next() uint64 { return c.n.Add(1) }

var (
	seqs  counter // event order across all tracers
	spans counter // span identity; 0 means "no span"
)

// goroutineID reads the current goroutine number from the first line of
// runtime.Stack ("goroutine 17 [running]:"). Bench workers run one VM per
// goroutine, so it tells their events apart.
func goroutineID() uint64 {
	var buf [64]byte
	line := buf[:runtime.Stack(buf[:], false)]
	line, ok := bytes.CutPrefix(line, []byte("goroutine "))
	if !ok {
		return 0
	}
	if i := bytes.IndexByte(line, ' '); i >= 0 {
		line = line[:i]
	}
	id, err := strconv.ParseUint(string(line), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Span brackets a VM session, a collection cycle or one collector phase.
// The zero-cost form returned for filtered scopes still measures time so
// callers can use End's duration for statistics.
type Span struct {
	tracer Tracer
	begin  Event // template for the end event; SpanID 0 when unrecorded
	attrs  map[string]string
}

// Begin opens a span under parent (0 for a top-level span) and emits its
// begin event when scope passes the tracer's level.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	s := &Span{begin: Event{Time: time.Now(), ParentID: parent}}
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return s
	}
	s.tracer = t
	s.begin = Event{
		Time:     s.begin.Time,
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   spans.next(),
		ParentID: parent,
		GID:      goroutineID(),
		Name:     name,
	}
	ev := s.begin
	t.Emit(&ev)
	return s
}

// Attr records a key/value pair reported with the end event.
func (s *Span) Attr(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	if s.attrs == nil {
		s.attrs = make(map[string]string, 4)
	}
	s.attrs[key] = value
	return s
}

// End closes the span with detail and returns how long it was open.
func (s *Span) End(detail string) time.Duration {
	if s == nil {
		return 0
	}
	elapsed := time.Since(s.begin.Time)
	if s.tracer == nil || !s.tracer.Enabled() {
		return elapsed
	}
	ev := s.begin
	ev.Time = time.Now()
	ev.Kind = KindSpanEnd
	ev.Detail = detail
	ev.Extra = s.attrs
	s.tracer.Emit(&ev)
	return elapsed
}

// ID is the identifier children should use as their parent. An unrecorded
// span passes its own parent through, so a recorded phase still hangs off
// the session when its cycle was filtered out.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	if s.begin.SpanID == 0 {
		return s.begin.ParentID
	}
	return s.begin.SpanID
}
