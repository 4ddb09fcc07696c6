// Package script drives a VM from a small line-oriented scenario language:
// one operation per line, '#' starts a comment.
//
//	push int 7          push real 1.5       push bool true
//	push null           push string "s"     push array 12
//	intern "s"          pop                 dup
//	store 3             set-global "name"   get-global "name"
//	collect             expect live 3       expect stack 0
package script

import (
	"fmt"
	"strconv"
)

// OpKind identifies a script operation.
type OpKind uint8

const (
	OpPushInt OpKind = iota + 1
	OpPushReal
	OpPushBool
	OpPushNull
	OpPushString
	OpPushArray
	OpIntern
	OpPop
	OpDup
	OpStore
	OpSetGlobal
	OpGetGlobal
	OpCollect
	OpExpectLive
	OpExpectStack
)

// String returns the op keyword.
func (k OpKind) String() string {
	switch k {
	case OpPushInt:
		return "push int"
	case OpPushReal:
		return "push real"
	case OpPushBool:
		return "push bool"
	case OpPushNull:
		return "push null"
	case OpPushString:
		return "push string"
	case OpPushArray:
		return "push array"
	case OpIntern:
		return "intern"
	case OpPop:
		return "pop"
	case OpDup:
		return "dup"
	case OpStore:
		return "store"
	case OpSetGlobal:
		return "set-global"
	case OpGetGlobal:
		return "get-global"
	case OpCollect:
		return "collect"
	case OpExpectLive:
		return "expect live"
	case OpExpectStack:
		return "expect stack"
	default:
		return fmt.Sprintf("OpKind(%d)", k)
	}
}

// Op is one parsed line. Only the operand field matching Kind is set.
type Op struct {
	Kind OpKind
	Line int

	Int  int32   // push int, push array, store, expect
	Real float64 // push real
	Bool bool    // push bool
	Str  string  // push string, intern, set-global, get-global
}

// String renders the op back in script syntax.
func (op Op) String() string {
	switch op.Kind {
	case OpPushInt, OpPushArray, OpStore, OpExpectLive, OpExpectStack:
		return op.Kind.String() + " " + strconv.FormatInt(int64(op.Int), 10)
	case OpPushReal:
		return op.Kind.String() + " " + strconv.FormatFloat(op.Real, 'g', -1, 64)
	case OpPushBool:
		return op.Kind.String() + " " + strconv.FormatBool(op.Bool)
	case OpPushString, OpIntern, OpSetGlobal, OpGetGlobal:
		return op.Kind.String() + " " + strconv.Quote(op.Str)
	default:
		return op.Kind.String()
	}
}

// Script is a parsed scenario.
type Script struct {
	Name string
	Ops  []Op
}

// Lines returns the rendered ops, one per step.
func (s *Script) Lines() []string {
	lines := make([]string, len(s.Ops))
	for i, op := range s.Ops {
		lines[i] = op.String()
	}
	return lines
}
