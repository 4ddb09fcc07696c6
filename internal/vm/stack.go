package vm

// DefaultStackSize is the operand stack capacity used when Options leaves it
// unset.
const DefaultStackSize = 1024

// Stack is a fixed-capacity operand stack. Every value on it is a GC root.
type Stack struct {
	slots []Value
	top   int
}

// NewStack creates a stack holding at most capacity values.
func NewStack(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultStackSize
	}
	return &Stack{slots: make([]Value, capacity)}
}

// Push appends v; it fails with PanicStackOverflow when the stack is full.
func (s *Stack) Push(v Value) error {
	if s.top >= len(s.slots) {
		return stackOverflow(len(s.slots))
	}
	s.slots[s.top] = v
	s.top++
	return nil
}

// Pop removes and returns the top value; it fails with PanicStackUnderflow
// when the stack is empty.
func (s *Stack) Pop() (Value, error) {
	if s.top == 0 {
		return Value{}, stackUnderflow()
	}
	s.top--
	v := s.slots[s.top]
	s.slots[s.top] = Value{}
	return v, nil
}

// Peek returns the value depth slots below the top (0 is the top).
func (s *Stack) Peek(depth int) (Value, error) {
	if depth < 0 || depth >= s.top {
		return Value{}, stackUnderflow()
	}
	return s.slots[s.top-1-depth], nil
}

// Len returns the number of values on the stack.
func (s *Stack) Len() int { return s.top }

// Cap returns the stack capacity.
func (s *Stack) Cap() int { return len(s.slots) }

// Values returns the live portion of the stack, bottom first. The slice
// aliases the stack storage.
func (s *Stack) Values() []Value { return s.slots[:s.top] }

func (s *Stack) reset() {
	clear(s.slots[:s.top])
	s.top = 0
}
