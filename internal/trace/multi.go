package trace

import "errors"

// MultiTracer sends every event to a stream and a ring in ModeBoth.
type MultiTracer struct {
	level   Level
	targets []Tracer
}

func NewMultiTracer(level Level, targets ...Tracer) *MultiTracer {
	return &MultiTracer{level: level, targets: targets}
}

// Emit hands each target its own copy; targets stamp Seq themselves.
func (t *MultiTracer) Emit(ev *Event) {
	for _, target := range t.targets {
		dup := *ev
		target.Emit(&dup)
	}
}

func (t *MultiTracer) Flush() error {
	var errs []error
	for _, target := range t.targets {
		errs = append(errs, target.Flush())
	}
	return errors.Join(errs...)
}

func (t *MultiTracer) Close() error {
	var errs []error
	for _, target := range t.targets {
		errs = append(errs, target.Close())
	}
	return errors.Join(errs...)
}

// Ring returns the in-memory target, or nil.
func (t *MultiTracer) Ring() *RingTracer {
	for _, target := range t.targets {
		if ring, ok := target.(*RingTracer); ok {
			return ring
		}
	}
	return nil
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }
