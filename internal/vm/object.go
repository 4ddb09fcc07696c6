package vm

import "fmt"

// Handle is a stable, monotonically increasing reference to a heap object.
// Handle(0) is always invalid.
type Handle uint32

// NoHandle is the invalid handle.
const NoHandle Handle = 0

// ObjectKind identifies the kind of heap object.
type ObjectKind uint8

const (
	OKString ObjectKind = iota
	OKArray
)

// String returns the kind name.
func (k ObjectKind) String() string {
	switch k {
	case OKString:
		return "string"
	case OKArray:
		return "array"
	default:
		return fmt.Sprintf("ObjectKind(%d)", k)
	}
}

// Object is a heap object. The header fields are shared by every kind; the
// payload fields are used according to Kind.
type Object struct {
	Kind    ObjectKind
	Marked  bool
	Alive   bool
	AllocID uint64

	// next links the object into the heap's list of live objects.
	next Handle

	// OKString. str holds the content followed by a NUL byte.
	Hash uint32
	str  []byte

	// OKArray. Length is fixed at construction.
	Arr []Value
}

// Bytes returns the string content without the trailing NUL.
func (o *Object) Bytes() []byte {
	if len(o.str) == 0 {
		return nil
	}
	return o.str[:len(o.str)-1]
}

// CString returns the NUL-terminated buffer of a string object.
func (o *Object) CString() []byte {
	return o.str
}

// Len returns the string length in bytes or the array length.
func (o *Object) Len() int {
	switch o.Kind {
	case OKString:
		if len(o.str) == 0 {
			return 0
		}
		return len(o.str) - 1
	case OKArray:
		return len(o.Arr)
	default:
		return 0
	}
}

// freeObject releases the kind payload and marks the header dead.
func freeObject(obj *Object) {
	switch obj.Kind {
	case OKString:
		obj.str = nil
	case OKArray:
		obj.Arr = nil
	default:
	}
	obj.Alive = false
	obj.Marked = false
	obj.next = NoHandle
}
