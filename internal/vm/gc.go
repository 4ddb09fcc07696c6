package vm

import (
	"fmt"
	"strconv"
	"time"

	"heapcore/internal/observ"
	"heapcore/internal/trace"
)

// GCPhase is the collector state. Collection is explicit and runs to
// completion, so outside Collect the phase is always GCIdle.
type GCPhase uint8

const (
	GCIdle GCPhase = iota
	GCMarking
	GCReconciling
	GCSweeping
)

// String returns the phase name.
func (p GCPhase) String() string {
	switch p {
	case GCIdle:
		return "idle"
	case GCMarking:
		return "mark"
	case GCReconciling:
		return "reconcile"
	case GCSweeping:
		return "sweep"
	default:
		return fmt.Sprintf("GCPhase(%d)", p)
	}
}

// CollectStats describes one collection cycle.
type CollectStats struct {
	Cycle         uint64
	Before        int // live objects when the cycle started
	Collected     int
	Remaining     int
	Roots         int // object references found on the stack and in globals
	InternDropped int // intern entries removed during reconciliation
	Threshold     int // watermark after the cycle
	Mark          time.Duration
	Reconcile     time.Duration
	Sweep         time.Duration
}

// String renders the cycle summary line.
func (s CollectStats) String() string {
	return fmt.Sprintf("Collected %d objects, %d remaining.", s.Collected, s.Remaining)
}

// Phase returns the current collector phase.
func (vm *VM) Phase() GCPhase { return vm.phase }

// Cycles returns the number of completed collections.
func (vm *VM) Cycles() uint64 { return vm.cycles }

// LastCollect returns the stats of the most recent cycle.
func (vm *VM) LastCollect() CollectStats { return vm.lastStats }

// MaxObjects returns the collection watermark. It is informational: nothing
// triggers a collection automatically.
func (vm *VM) MaxObjects() int { return vm.maxObjects }

// ShouldCollect reports whether the live object count has reached the
// watermark.
func (vm *VM) ShouldCollect() bool { return vm.Heap.Live() >= vm.maxObjects }

// Collect runs one full mark-sweep cycle: mark everything reachable from the
// stack and globals, drop intern entries whose strings were not marked, then
// free every unmarked object and clear the marks of survivors.
//
// Weak reconciliation must happen before the sweep: afterwards the intern
// table would hold handles to freed strings.
func (vm *VM) Collect() (stats CollectStats, err error) {
	defer guard(&err)
	defer func() {
		if vm.phase != GCIdle {
			trace.Error(vm.tracer, trace.ScopeCycle, "gc", "aborted during "+vm.phase.String(), vm.session.ID(), nil)
			vm.abortCycle()
		}
	}()

	cycle := trace.Begin(vm.tracer, trace.ScopeCycle, "gc", vm.session.ID())
	timer := observ.NewTimer()
	stats.Before = vm.Heap.Live()

	vm.phase = GCMarking
	span := trace.Begin(vm.tracer, trace.ScopePhase, "mark", cycle.ID())
	idx := timer.Begin("mark")
	stats.Roots = vm.markRoots()
	stats.Mark = timer.End(idx, "")
	span.Attr("roots", strconv.Itoa(stats.Roots)).End(vm.marking.String())

	vm.phase = GCReconciling
	span = trace.Begin(vm.tracer, trace.ScopePhase, "reconcile", cycle.ID())
	idx = timer.Begin("reconcile")
	stats.InternDropped = vm.interned.RemoveUnmarked()
	stats.Reconcile = timer.End(idx, "")
	span.Attr("dropped", strconv.Itoa(stats.InternDropped)).End("")

	vm.phase = GCSweeping
	span = trace.Begin(vm.tracer, trace.ScopePhase, "sweep", cycle.ID())
	idx = timer.Begin("sweep")
	stats.Collected = vm.Heap.sweep()
	stats.Sweep = timer.End(idx, "")
	span.Attr("freed", strconv.Itoa(stats.Collected)).End("")

	vm.phase = GCIdle
	vm.cycles++
	stats.Cycle = vm.cycles
	stats.Remaining = vm.Heap.Live()
	vm.maxObjects = max(stats.Remaining*2, vm.threshold)
	stats.Threshold = vm.maxObjects
	vm.lastStats = stats

	cycle.
		Attr("collected", strconv.Itoa(stats.Collected)).
		Attr("remaining", strconv.Itoa(stats.Remaining)).
		Attr("threshold", strconv.Itoa(stats.Threshold)).
		End(stats.String())

	if vm.onCollect != nil {
		vm.onCollect(stats)
	}
	return stats, nil
}

// abortCycle restores an idle heap after a fault inside a cycle, so a
// failed collection leaves no stale marks behind.
func (vm *VM) abortCycle() {
	vm.Heap.each(func(_ Handle, obj *Object) {
		obj.Marked = false
	})
	vm.gray = vm.gray[:0]
	vm.phase = GCIdle
}

func (vm *VM) markRoots() int {
	roots := 0
	vm.gray = vm.gray[:0]
	for _, v := range vm.stack.Values() {
		if v.IsObj() {
			vm.markObject(v.H)
			roots++
		}
	}
	vm.globals.Range(func(name Handle, v Value) bool {
		vm.markObject(name)
		roots++
		if v.IsObj() {
			vm.markObject(v.H)
			roots++
		}
		return true
	})
	if vm.marking == MarkDeep {
		vm.traceReferences()
	}
	return roots
}

func (vm *VM) markObject(h Handle) {
	obj := vm.Heap.Get(h)
	if obj.Marked {
		return
	}
	obj.Marked = true
	if vm.marking == MarkDeep && obj.Kind == OKArray {
		vm.gray = append(vm.gray, h)
	}
}

// traceReferences drains the gray worklist, marking array elements.
func (vm *VM) traceReferences() {
	for len(vm.gray) > 0 {
		h := vm.gray[len(vm.gray)-1]
		vm.gray = vm.gray[:len(vm.gray)-1]
		for _, v := range vm.Heap.Get(h).Arr {
			if v.IsObj() {
				vm.markObject(v.H)
			}
		}
	}
}

// sweep frees every unmarked object on the live list and clears the mark on
// the rest. It returns the number of objects freed.
func (h *Heap) sweep() int {
	freed := 0
	var prev *Object
	for cur := h.head; cur != NoHandle; {
		obj := h.objs[cur]
		next := obj.next
		if obj.Marked {
			obj.Marked = false
			prev = obj
		} else {
			if prev == nil {
				h.head = next
			} else {
				prev.next = next
			}
			h.free(cur)
			freed++
		}
		cur = next
	}
	return freed
}

// freeAll frees every live object regardless of marks.
func (h *Heap) freeAll() int {
	freed := 0
	for cur := h.head; cur != NoHandle; {
		next := h.objs[cur].next
		h.head = next
		h.free(cur)
		freed++
		cur = next
	}
	return freed
}
