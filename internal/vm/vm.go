package vm

import (
	"bytes"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"heapcore/internal/trace"
)

// DefaultThreshold is the lowest value the collection watermark settles at.
const DefaultThreshold = 256

// MarkMode selects how far the collector traces from the roots.
type MarkMode uint8

const (
	// MarkDeep traces transitively through array elements.
	MarkDeep MarkMode = iota
	// MarkShallow marks only objects referenced directly by a root; objects
	// reachable only through an array are collected.
	MarkShallow
)

// String returns the mode name used in configuration files.
func (m MarkMode) String() string {
	switch m {
	case MarkDeep:
		return "deep"
	case MarkShallow:
		return "shallow"
	default:
		return fmt.Sprintf("MarkMode(%d)", m)
	}
}

// ParseMarkMode converts "deep" or "shallow" to a MarkMode.
func ParseMarkMode(s string) (MarkMode, error) {
	switch s {
	case "", "deep":
		return MarkDeep, nil
	case "shallow":
		return MarkShallow, nil
	default:
		return MarkDeep, fmt.Errorf("invalid marking mode %q (expected deep|shallow)", s)
	}
}

// Options configures a VM.
type Options struct {
	StackSize        int  // operand stack capacity (default 1024)
	MaxHeapObjects   int  // live object limit; 0 = unlimited
	Debug            bool // keep dead heap slots to detect stale handles
	NormalizeStrings bool // NFC-normalize string content before interning
	Marking          MarkMode
	InitialThreshold int // collection watermark floor (default 256)

	Tracer    trace.Tracer
	OnCollect func(CollectStats) // called after every cycle
}

// VM is the runtime context: operand stack, heap, intern table and globals.
// A VM is not safe for concurrent use.
type VM struct {
	Heap *Heap

	stack    *Stack
	interned *Table
	globals  *Table

	marking    MarkMode
	normalize  bool
	threshold  int
	maxObjects int
	phase      GCPhase
	gray       []Handle
	cycles     uint64
	lastStats  CollectStats
	onCollect  func(CollectStats)
	tracer     trace.Tracer
	session    *trace.Span
}

// New creates a VM.
func New(opts Options) *VM {
	threshold := opts.InitialThreshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	vm := &VM{
		stack:      NewStack(opts.StackSize),
		marking:    opts.Marking,
		normalize:  opts.NormalizeStrings,
		threshold:  threshold,
		maxObjects: threshold,
		onCollect:  opts.OnCollect,
		tracer:     tracer,
	}
	vm.Heap = &Heap{
		next:        1,
		nextAllocID: 1,
		objs:        make(map[Handle]*Object, 128),
		limit:       opts.MaxHeapObjects,
		debug:       opts.Debug,
		vm:          vm,
	}
	vm.interned = NewTable(vm.Heap)
	vm.globals = NewTable(vm.Heap)
	vm.session = trace.Begin(tracer, trace.ScopeSession, "vm", 0)
	return vm
}

// Push pushes v onto the operand stack.
func (vm *VM) Push(v Value) error {
	return vm.stack.Push(v)
}

// Pop pops the top of the operand stack.
func (vm *VM) Pop() (Value, error) {
	return vm.stack.Pop()
}

// Peek returns the value depth slots below the top of the stack.
func (vm *VM) Peek(depth int) (Value, error) {
	return vm.stack.Peek(depth)
}

// Stack exposes the operand stack.
func (vm *VM) Stack() *Stack {
	return vm.stack
}

// Strings returns the intern table. Its values are always null.
func (vm *VM) Strings() *Table {
	return vm.interned
}

// Globals returns the globals table.
func (vm *VM) Globals() *Table {
	return vm.globals
}

// LiveObjects returns the number of objects on the heap.
func (vm *VM) LiveObjects() int {
	return vm.Heap.Live()
}

// NewString returns the interned string with the given content, allocating
// it if no equal string exists yet.
func (vm *VM) NewString(chars []byte) (h Handle, err error) {
	defer guard(&err)
	if vm.normalize {
		chars = norm.NFC.Bytes(chars)
	}
	hash := HashBytes(chars)
	if existing, ok := vm.interned.FindString(chars, hash); ok {
		return existing, nil
	}

	h, vmErr := vm.Heap.allocString(chars, hash)
	if vmErr != nil {
		return NoHandle, vmErr
	}

	// Keep the new string reachable until the intern table holds it.
	if err := vm.stack.Push(MakeObj(h)); err != nil {
		return NoHandle, err
	}
	vm.interned.Set(h, MakeNull())
	if _, err := vm.stack.Pop(); err != nil {
		return NoHandle, err
	}
	return h, nil
}

// Intern is NewString for Go strings.
func (vm *VM) Intern(s string) (Handle, error) {
	return vm.NewString([]byte(s))
}

// NewArray allocates an array of length null elements.
func (vm *VM) NewArray(length int) (Handle, error) {
	h, vmErr := vm.Heap.allocArray(length)
	if vmErr != nil {
		return NoHandle, vmErr
	}
	return h, nil
}

// PushArray allocates an array and pushes a reference to it.
func (vm *VM) PushArray(length int) (Handle, error) {
	h, err := vm.NewArray(length)
	if err != nil {
		return NoHandle, err
	}
	if err := vm.Push(MakeObj(h)); err != nil {
		return NoHandle, err
	}
	return h, nil
}

// PushString interns s and pushes a reference to it.
func (vm *VM) PushString(s string) (Handle, error) {
	h, err := vm.Intern(s)
	if err != nil {
		return NoHandle, err
	}
	if err := vm.Push(MakeObj(h)); err != nil {
		return NoHandle, err
	}
	return h, nil
}

func (vm *VM) object(h Handle, kind ObjectKind) *Object {
	obj := vm.Heap.Get(h)
	if obj.Kind != kind {
		panic(typeMismatch(h, kind, obj.Kind))
	}
	return obj
}

// Object returns the live object behind h.
func (vm *VM) Object(h Handle) (obj *Object, err error) {
	defer guard(&err)
	return vm.Heap.Get(h), nil
}

// StringBytes returns a copy of the content of string h.
func (vm *VM) StringBytes(h Handle) (b []byte, err error) {
	defer guard(&err)
	return bytes.Clone(vm.object(h, OKString).Bytes()), nil
}

// ArrayLen returns the length of array h.
func (vm *VM) ArrayLen(h Handle) (n int, err error) {
	defer guard(&err)
	return len(vm.object(h, OKArray).Arr), nil
}

// ArrayGet returns element i of array h.
func (vm *VM) ArrayGet(h Handle, i int) (v Value, err error) {
	defer guard(&err)
	arr := vm.object(h, OKArray).Arr
	if i < 0 || i >= len(arr) {
		return Value{}, outOfBounds(i, len(arr))
	}
	return arr[i], nil
}

// ArraySet stores v as element i of array h.
func (vm *VM) ArraySet(h Handle, i int, v Value) (err error) {
	defer guard(&err)
	arr := vm.object(h, OKArray).Arr
	if i < 0 || i >= len(arr) {
		return outOfBounds(i, len(arr))
	}
	arr[i] = v
	return nil
}

// SetGlobal binds the interned string name to v. It reports whether the
// name was new.
func (vm *VM) SetGlobal(name Handle, v Value) (isNew bool, err error) {
	defer guard(&err)
	vm.object(name, OKString)
	return vm.globals.Set(name, v), nil
}

// GetGlobal returns the value bound to name.
func (vm *VM) GetGlobal(name Handle) (v Value, ok bool, err error) {
	defer guard(&err)
	vm.object(name, OKString)
	v, ok = vm.globals.Get(name)
	return v, ok, nil
}

// DeleteGlobal removes the binding for name.
func (vm *VM) DeleteGlobal(name Handle) (deleted bool, err error) {
	defer guard(&err)
	vm.object(name, OKString)
	return vm.globals.Delete(name), nil
}

// Close tears the VM down: every object is freed, the stack and both tables
// are emptied. The VM may be reused afterwards.
func (vm *VM) Close() error {
	freed := vm.Heap.freeAll()
	vm.stack.reset()
	vm.interned.reset()
	vm.globals.reset()
	vm.gray = nil
	vm.maxObjects = vm.threshold
	vm.session.Attr("freed", fmt.Sprint(freed)).End("teardown")
	vm.session = nil
	return nil
}
