package vm

import (
	"strconv"

	"heapcore/internal/trace"
)

// traceHeapAlloc reports an allocation at object scope.
func (vm *VM) traceHeapAlloc(h Handle, obj *Object) {
	if !vm.tracer.Enabled() || !vm.tracer.Level().ShouldEmit(trace.ScopeObject) {
		return
	}
	trace.Point(vm.tracer, trace.ScopeObject, "alloc", obj.Kind.String()+"#"+strconv.FormatUint(uint64(h), 10), vm.session.ID(), map[string]string{
		"len":  strconv.Itoa(obj.Len()),
		"live": strconv.Itoa(vm.Heap.live),
	})
}

// traceHeapFree reports a free at object scope.
func (vm *VM) traceHeapFree(h Handle, obj *Object) {
	if !vm.tracer.Enabled() || !vm.tracer.Level().ShouldEmit(trace.ScopeObject) {
		return
	}
	trace.Point(vm.tracer, trace.ScopeObject, "free", obj.Kind.String()+"#"+strconv.FormatUint(uint64(h), 10), vm.session.ID(), nil)
}
