// Package vm implements the memory core of the runtime: tagged values, a
// handle-based object heap, the string-interning table, the operand stack
// and a mark-and-sweep collector.
package vm

import (
	"fmt"
	"strconv"
)

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	// VKNull represents the null value. It is the zero ValueKind so a zero
	// Value is null.
	VKNull ValueKind = iota
	// VKInt represents a 32-bit signed integer.
	VKInt
	// VKReal represents a 64-bit float.
	VKReal
	// VKBool represents a boolean.
	VKBool
	// VKObj represents a reference to a heap object.
	VKObj
)

// String returns a human-readable name for the value kind.
func (k ValueKind) String() string {
	switch k {
	case VKNull:
		return "null"
	case VKInt:
		return "int"
	case VKReal:
		return "real"
	case VKBool:
		return "bool"
	case VKObj:
		return "obj"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value represents a runtime value. Values are copied freely; a VKObj value
// does not own its object, reachability alone keeps the object alive.
type Value struct {
	Kind ValueKind
	Int  int32   // For VKInt
	Real float64 // For VKReal
	Bool bool    // For VKBool
	H    Handle  // For VKObj
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.Kind == VKNull
}

// IsObj reports whether the value refers to a heap object.
func (v Value) IsObj() bool {
	return v.Kind == VKObj
}

// String returns a human-readable representation of the value.
func (v Value) String() string {
	switch v.Kind {
	case VKNull:
		return "null"
	case VKInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case VKReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case VKBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case VKObj:
		return fmt.Sprintf("obj#%d", v.H)
	default:
		return fmt.Sprintf("<unknown:%d>", v.Kind)
	}
}

// MakeNull creates a null value.
func MakeNull() Value {
	return Value{}
}

// MakeInt creates an integer value.
func MakeInt(n int32) Value {
	return Value{
		Kind: VKInt,
		Int:  n,
	}
}

// MakeReal creates a real value.
func MakeReal(f float64) Value {
	return Value{
		Kind: VKReal,
		Real: f,
	}
}

// MakeBool creates a boolean value.
func MakeBool(b bool) Value {
	return Value{
		Kind: VKBool,
		Bool: b,
	}
}

// MakeObj creates an object reference value.
func MakeObj(h Handle) Value {
	return Value{
		Kind: VKObj,
		H:    h,
	}
}
