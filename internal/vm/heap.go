package vm

import (
	"fmt"
	"math"

	"fortio.org/safecast"
)

// Heap stores every live runtime object for the VM.
// Handles are monotonically increasing and never reused within a run.
// Live objects are additionally threaded into a singly linked list (newest
// first) through Object.next; the collector sweeps that list.
type Heap struct {
	next        Handle
	nextAllocID uint64
	objs        map[Handle]*Object
	head        Handle
	live        int

	// limit caps the number of live objects; 0 means unlimited.
	limit int
	// debug keeps dead slots around so stale handles are reported as
	// use-after-free instead of invalid.
	debug bool

	counters heapCounters

	vm *VM
}

func (h *Heap) initIfNeeded() {
	if h.objs == nil {
		h.objs = make(map[Handle]*Object, 128)
	}
	if h.next == 0 {
		h.next = 1
	}
	if h.nextAllocID == 0 {
		h.nextAllocID = 1
	}
}

func (h *Heap) alloc(kind ObjectKind) (Handle, *Object, *VMError) {
	h.initIfNeeded()
	if h.limit > 0 && h.live >= h.limit {
		return NoHandle, nil, outOfMemory(fmt.Sprintf("heap limit of %d objects reached", h.limit))
	}
	if h.next == math.MaxUint32 {
		return NoHandle, nil, outOfMemory("handle space exhausted")
	}
	handle := h.next
	h.next++
	allocID := h.nextAllocID
	h.nextAllocID++
	obj := &Object{
		Kind:    kind,
		Alive:   true,
		AllocID: allocID,
		next:    h.head,
	}
	h.objs[handle] = obj
	h.head = handle
	h.live++
	h.counters.allocCount++
	return handle, obj, nil
}

func (h *Heap) allocString(b []byte, hash uint32) (Handle, *VMError) {
	if _, err := safecast.Conv[int32](len(b)); err != nil {
		return NoHandle, outOfMemory(fmt.Sprintf("string of %d bytes is too large: %v", len(b), err))
	}
	handle, obj, vmErr := h.alloc(OKString)
	if vmErr != nil {
		return NoHandle, vmErr
	}
	obj.Hash = hash
	obj.str = make([]byte, len(b)+1)
	copy(obj.str, b)
	if h.vm != nil {
		h.vm.traceHeapAlloc(handle, obj)
	}
	return handle, nil
}

func (h *Heap) allocArray(length int) (Handle, *VMError) {
	if length < 0 {
		return NoHandle, outOfMemory(fmt.Sprintf("negative array length %d", length))
	}
	if _, err := safecast.Conv[int32](length); err != nil {
		return NoHandle, outOfMemory(fmt.Sprintf("array of %d elements is too large: %v", length, err))
	}
	handle, obj, vmErr := h.alloc(OKArray)
	if vmErr != nil {
		return NoHandle, vmErr
	}
	obj.Arr = make([]Value, length)
	if h.vm != nil {
		h.vm.traceHeapAlloc(handle, obj)
	}
	return handle, nil
}

// Get returns the live object for handle. Stale and unknown handles panic
// with a *VMError.
func (h *Heap) Get(handle Handle) *Object {
	h.initIfNeeded()
	if handle == 0 {
		h.panic(PanicInvalidHandle, "invalid handle 0")
	}
	obj, ok := h.objs[handle]
	if !ok || obj == nil {
		h.panic(PanicInvalidHandle, fmt.Sprintf("invalid handle %d", handle))
	}
	if !obj.Alive {
		h.panic(PanicUseAfterFree, fmt.Sprintf("use after free: handle %d (alloc=%d)", handle, obj.AllocID))
	}
	return obj
}

// free releases the object behind handle. The object must already be
// unlinked from the live list; only the collector and VM teardown call this.
func (h *Heap) free(handle Handle) {
	h.initIfNeeded()
	if handle == 0 {
		h.panic(PanicInvalidHandle, "invalid handle 0")
	}
	obj, ok := h.objs[handle]
	if !ok || obj == nil {
		h.panic(PanicInvalidHandle, fmt.Sprintf("invalid handle %d", handle))
	}
	if !obj.Alive {
		h.panic(PanicDoubleFree, fmt.Sprintf("double free: handle %d (alloc=%d)", handle, obj.AllocID))
	}

	if h.vm != nil {
		h.vm.traceHeapFree(handle, obj)
	}

	freeObject(obj)
	if !h.debug {
		delete(h.objs, handle)
	}
	h.live--
	h.counters.freeCount++
}

// Live returns the number of live objects.
func (h *Heap) Live() int {
	if h == nil {
		return 0
	}
	return h.live
}

// Head returns the newest live object, or NoHandle for an empty heap.
func (h *Heap) Head() Handle {
	return h.head
}

// Next returns the object linked after handle in the live list.
func (h *Heap) Next(handle Handle) Handle {
	return h.Get(handle).next
}

// each visits live objects newest first.
func (h *Heap) each(fn func(Handle, *Object)) {
	for cur := h.head; cur != NoHandle; {
		obj := h.objs[cur]
		next := obj.next
		fn(cur, obj)
		cur = next
	}
}

func (h *Heap) lookup(handle Handle) (*Object, bool) {
	if h == nil {
		return nil, false
	}
	h.initIfNeeded()
	obj, ok := h.objs[handle]
	return obj, ok && obj != nil
}

func (h *Heap) panic(code PanicCode, msg string) {
	panic(makeError(code, msg))
}
