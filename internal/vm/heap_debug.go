package vm

import (
	"unsafe"

	"fortio.org/safecast"
)

type heapCounters struct {
	allocCount uint64
	freeCount  uint64
}

// HeapStats is a point-in-time view of heap usage.
type HeapStats struct {
	Live           int
	Strings        int
	Arrays         int
	LiveBytes      uint64
	Allocated      uint64 // objects allocated since the VM was created
	Freed          uint64
	InternEntries  int
	InternCapacity int
	Globals        int
	StackDepth     int
	MaxObjects     int
	Cycles         uint64
}

var valueSize = uint64(unsafe.Sizeof(Value{}))

func safeUint64FromInt(n int) uint64 {
	u, err := safecast.Conv[uint64](n)
	if err != nil {
		return 0
	}
	return u
}

// heapObjectBytes approximates the payload size of obj: string bytes
// including the NUL, or array slots.
func heapObjectBytes(obj *Object) uint64 {
	if obj == nil {
		return 0
	}
	switch obj.Kind {
	case OKString:
		return safeUint64FromInt(len(obj.str))
	case OKArray:
		return safeUint64FromInt(len(obj.Arr)) * valueSize
	default:
		return 0
	}
}

// objectRefCount counts the object references held inside obj.
func objectRefCount(obj *Object) int {
	if obj == nil || obj.Kind != OKArray {
		return 0
	}
	count := 0
	for _, v := range obj.Arr {
		if v.IsObj() {
			count++
		}
	}
	return count
}

// Stats returns current heap usage.
func (vm *VM) Stats() HeapStats {
	if vm == nil {
		return HeapStats{}
	}
	stats := HeapStats{
		Live:           vm.Heap.Live(),
		Allocated:      vm.Heap.counters.allocCount,
		Freed:          vm.Heap.counters.freeCount,
		InternEntries:  vm.interned.Count(),
		InternCapacity: vm.interned.Capacity(),
		Globals:        vm.globals.Count(),
		StackDepth:     vm.stack.Len(),
		MaxObjects:     vm.maxObjects,
		Cycles:         vm.cycles,
	}
	vm.Heap.each(func(_ Handle, obj *Object) {
		switch obj.Kind {
		case OKString:
			stats.Strings++
		case OKArray:
			stats.Arrays++
		}
		stats.LiveBytes += heapObjectBytes(obj)
	})
	return stats
}
