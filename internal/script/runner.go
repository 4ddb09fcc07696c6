package script

import (
	"context"
	"fmt"
	"strconv"

	"heapcore/internal/trace"
	"heapcore/internal/vm"
)

// Status is the state of one step as reported to an event sink.
type Status uint8

const (
	StatusQueued Status = iota
	StatusRunning
	StatusDone
	StatusError
)

// String returns the status label.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Event reports progress of a run.
type Event struct {
	Step   int // index into Script.Ops
	Total  int
	Op     Op
	Status Status
	Live   int              // live objects after the step
	Stats  *vm.CollectStats // set when a collect step finished
	Err    error
}

// StepError wraps the failure of one step with its position.
type StepError struct {
	File string
	Op   Op
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Op.Line, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Result summarizes a finished run.
type Result struct {
	Steps  int
	Cycles []vm.CollectStats
	Live   int
}

// Runner executes a script against a VM.
type Runner struct {
	Script *Script
	// Events receives one event per state change when non-nil. The runner
	// never closes it.
	Events chan<- Event
}

// NewRunner creates a runner for s.
func NewRunner(s *Script, events chan<- Event) *Runner {
	return &Runner{Script: s, Events: events}
}

// Run executes every step in order. It stops at the first failing step and
// checks ctx between steps. The tracer in ctx, if any, receives one point per
// step.
func (r *Runner) Run(ctx context.Context, m *vm.VM) (Result, error) {
	var res Result
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeSession, "script", 0)
	defer func() {
		span.Attr("steps", strconv.Itoa(res.Steps)).End(r.Script.Name)
	}()

	total := len(r.Script.Ops)
	for i, op := range r.Script.Ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r.emit(ctx, Event{Step: i, Total: total, Op: op, Status: StatusRunning, Live: m.LiveObjects()})

		stats, err := r.step(m, op)
		if err != nil {
			stepErr := &StepError{File: r.Script.Name, Op: op, Err: err}
			trace.Error(tracer, trace.ScopeObject, "step", stepErr.Error(), span.ID(), map[string]string{
				"line": strconv.Itoa(op.Line),
			})
			r.emit(ctx, Event{Step: i, Total: total, Op: op, Status: StatusError, Live: m.LiveObjects(), Err: stepErr})
			return res, stepErr
		}
		res.Steps++
		ev := Event{Step: i, Total: total, Op: op, Status: StatusDone, Live: m.LiveObjects()}
		if stats != nil {
			res.Cycles = append(res.Cycles, *stats)
			ev.Stats = stats
		}
		trace.Point(tracer, trace.ScopeObject, "step", op.String(), span.ID(), map[string]string{
			"line": strconv.Itoa(op.Line),
			"live": strconv.Itoa(ev.Live),
		})
		r.emit(ctx, ev)
	}
	res.Live = m.LiveObjects()
	return res, nil
}

func (r *Runner) emit(ctx context.Context, ev Event) {
	if r.Events == nil {
		return
	}
	select {
	case r.Events <- ev:
	case <-ctx.Done():
	}
}

func (r *Runner) step(m *vm.VM, op Op) (*vm.CollectStats, error) {
	switch op.Kind {
	case OpPushInt:
		return nil, m.Push(vm.MakeInt(op.Int))
	case OpPushReal:
		return nil, m.Push(vm.MakeReal(op.Real))
	case OpPushBool:
		return nil, m.Push(vm.MakeBool(op.Bool))
	case OpPushNull:
		return nil, m.Push(vm.MakeNull())
	case OpPushString:
		_, err := m.PushString(op.Str)
		return nil, err
	case OpPushArray:
		_, err := m.PushArray(int(op.Int))
		return nil, err
	case OpIntern:
		_, err := m.Intern(op.Str)
		return nil, err
	case OpPop:
		_, err := m.Pop()
		return nil, err
	case OpDup:
		v, err := m.Peek(0)
		if err != nil {
			return nil, err
		}
		return nil, m.Push(v)
	case OpStore:
		return nil, store(m, int(op.Int))
	case OpSetGlobal:
		return nil, setGlobal(m, op.Str)
	case OpGetGlobal:
		return nil, getGlobal(m, op.Str)
	case OpCollect:
		stats, err := m.Collect()
		if err != nil {
			return nil, err
		}
		return &stats, nil
	case OpExpectLive:
		if got := m.LiveObjects(); got != int(op.Int) {
			return nil, fmt.Errorf("expected %d live objects, have %d", op.Int, got)
		}
		return nil, nil
	case OpExpectStack:
		if got := m.Stack().Len(); got != int(op.Int) {
			return nil, fmt.Errorf("expected stack depth %d, have %d", op.Int, got)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown operation %v", op.Kind)
	}
}

// store pops a value and writes it to element idx of the array left on top.
func store(m *vm.VM, idx int) error {
	v, err := m.Pop()
	if err != nil {
		return err
	}
	target, err := m.Peek(0)
	if err != nil {
		return err
	}
	if !target.IsObj() {
		return fmt.Errorf("store target is %s, not an array", target.Kind)
	}
	return m.ArraySet(target.H, idx, v)
}

// setGlobal pops a value and binds it to name.
func setGlobal(m *vm.VM, name string) error {
	// The value stays rooted on the stack while the name is interned.
	v, err := m.Peek(0)
	if err != nil {
		return err
	}
	h, err := m.Intern(name)
	if err != nil {
		return err
	}
	if _, err := m.Pop(); err != nil {
		return err
	}
	_, err = m.SetGlobal(h, v)
	return err
}

// getGlobal pushes the value bound to name.
func getGlobal(m *vm.VM, name string) error {
	h, err := m.Intern(name)
	if err != nil {
		return err
	}
	v, ok, err := m.GetGlobal(h)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("undefined global %q", name)
	}
	return m.Push(v)
}
