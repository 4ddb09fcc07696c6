package vm

import (
	"errors"
	"fmt"
)

// PanicCode identifies the type of VM panic.
type PanicCode int

// Stable panic codes - do not change values.
const (
	PanicOutOfMemory    PanicCode = 2001 // VM2001: allocation failed
	PanicStackOverflow  PanicCode = 2002 // VM2002: push beyond stack capacity
	PanicStackUnderflow PanicCode = 2003 // VM2003: pop from empty stack
	PanicInvalidHandle  PanicCode = 2004 // VM2004: handle was never allocated
	PanicUseAfterFree   PanicCode = 2005 // VM2005: handle refers to a freed object
	PanicDoubleFree     PanicCode = 2006 // VM2006: object freed twice
	PanicOutOfBounds    PanicCode = 2007 // VM2007: array index out of range
	PanicTypeMismatch   PanicCode = 2008 // VM2008: wrong object or value kind
)

// String returns the code as "VM2001" format.
func (c PanicCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// VMError represents a runtime fault in the VM. None of them terminate the
// process; the embedder decides whether to abort, reset or report.
type VMError struct {
	Code    PanicCode
	Message string
}

// Error implements the error interface.
func (p *VMError) Error() string {
	return fmt.Sprintf("panic %s: %s", p.Code, p.Message)
}

// Is matches another *VMError with the same code, so callers can write
// errors.Is(err, &vm.VMError{Code: vm.PanicStackOverflow}).
func (p *VMError) Is(target error) bool {
	var other *VMError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == p.Code
}

// CodeOf returns the panic code carried by err, if any.
func CodeOf(err error) (PanicCode, bool) {
	var vmErr *VMError
	if errors.As(err, &vmErr) {
		return vmErr.Code, true
	}
	return 0, false
}

func makeError(code PanicCode, msg string) *VMError {
	return &VMError{
		Code:    code,
		Message: msg,
	}
}

func outOfMemory(msg string) *VMError {
	return makeError(PanicOutOfMemory, msg)
}

func stackOverflow(capacity int) *VMError {
	return makeError(PanicStackOverflow, fmt.Sprintf("stack overflow (capacity %d)", capacity))
}

func stackUnderflow() *VMError {
	return makeError(PanicStackUnderflow, "pop from empty stack")
}

func outOfBounds(idx, length int) *VMError {
	return makeError(PanicOutOfBounds, fmt.Sprintf("index %d out of range [0:%d]", idx, length))
}

func typeMismatch(h Handle, want, got ObjectKind) *VMError {
	return makeError(PanicTypeMismatch, fmt.Sprintf("handle %d: expected %s, got %s", h, want, got))
}

// guard converts a *VMError panic raised by heap checks into a returned error.
// Any other panic is re-raised.
func guard(errp *error) {
	if r := recover(); r != nil {
		if e, ok := r.(*VMError); ok {
			*errp = e
			return
		}
		panic(r)
	}
}
