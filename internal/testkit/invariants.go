// Package testkit holds consistency checks shared by the VM tests and the
// fuzz harnesses.
package testkit

import (
	"fmt"

	"heapcore/internal/vm"
)

// CheckHeapInvariants verifies the structural invariants of an idle VM:
//  1. the live list holds exactly LiveObjects() objects, all alive and unmarked
//  2. every object reference on the stack resolves
//  3. intern keys are live NUL-terminated strings with correct hashes, and no
//     two keys share content
//  4. global names are live strings and object values resolve
//  5. both tables respect the load factor, tombstones included
func CheckHeapInvariants(m *vm.VM) (err error) {
	if m == nil {
		return fmt.Errorf("nil vm")
	}
	if m.Phase() != vm.GCIdle {
		return fmt.Errorf("collector not idle: %s", m.Phase())
	}
	// Heap.Next panics on a broken link.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("heap walk: %v", r)
		}
	}()

	// 1) live list
	live := m.LiveObjects()
	seen := 0
	for h := m.Heap.Head(); h != vm.NoHandle; h = m.Heap.Next(h) {
		seen++
		if seen > live {
			return fmt.Errorf("live list longer than live count %d", live)
		}
		obj, err := m.Object(h)
		if err != nil {
			return fmt.Errorf("live list entry %d: %w", h, err)
		}
		if obj.Marked {
			return fmt.Errorf("object %d still marked outside a collection", h)
		}
	}
	if seen != live {
		return fmt.Errorf("live list has %d objects, live count is %d", seen, live)
	}

	// 2) stack references
	for i, v := range m.Stack().Values() {
		if !v.IsObj() {
			continue
		}
		if _, err := m.Object(v.H); err != nil {
			return fmt.Errorf("stack slot %d: %w", i, err)
		}
	}

	// 3) intern table
	var walkErr error
	contents := make(map[string]vm.Handle, m.Strings().Count())
	m.Strings().Range(func(key vm.Handle, value vm.Value) bool {
		walkErr = checkString(m, key)
		if walkErr != nil {
			walkErr = fmt.Errorf("intern key: %w", walkErr)
			return false
		}
		if !value.IsNull() {
			walkErr = fmt.Errorf("intern key %d maps to %s, want null", key, value)
			return false
		}
		b, _ := m.StringBytes(key)
		if prev, dup := contents[string(b)]; dup {
			walkErr = fmt.Errorf("intern keys %d and %d share content %q", prev, key, b)
			return false
		}
		contents[string(b)] = key
		return true
	})
	if walkErr != nil {
		return walkErr
	}

	// 4) globals
	m.Globals().Range(func(name vm.Handle, value vm.Value) bool {
		if walkErr = checkString(m, name); walkErr != nil {
			walkErr = fmt.Errorf("global name: %w", walkErr)
			return false
		}
		if value.IsObj() {
			if _, err := m.Object(value.H); err != nil {
				walkErr = fmt.Errorf("global %d value: %w", name, err)
				return false
			}
		}
		return true
	})
	if walkErr != nil {
		return walkErr
	}

	// 5) load factor
	if err := checkLoad("strings", m.Strings()); err != nil {
		return err
	}
	return checkLoad("globals", m.Globals())
}

// CheckReachable verifies that every object reachable from the stack and the
// globals is live. It holds after every collection in deep marking mode.
func CheckReachable(m *vm.VM) error {
	var work []vm.Handle
	for _, v := range m.Stack().Values() {
		if v.IsObj() {
			work = append(work, v.H)
		}
	}
	m.Globals().Range(func(name vm.Handle, value vm.Value) bool {
		work = append(work, name)
		if value.IsObj() {
			work = append(work, value.H)
		}
		return true
	})

	visited := make(map[vm.Handle]bool)
	for len(work) > 0 {
		h := work[len(work)-1]
		work = work[:len(work)-1]
		if visited[h] {
			continue
		}
		visited[h] = true
		obj, err := m.Object(h)
		if err != nil {
			return fmt.Errorf("reachable object %d: %w", h, err)
		}
		for _, v := range obj.Arr {
			if v.IsObj() {
				work = append(work, v.H)
			}
		}
	}
	return nil
}

func checkString(m *vm.VM, h vm.Handle) error {
	obj, err := m.Object(h)
	if err != nil {
		return err
	}
	if obj.Kind != vm.OKString {
		return fmt.Errorf("handle %d is a %s, not a string", h, obj.Kind)
	}
	cs := obj.CString()
	if len(cs) == 0 || cs[len(cs)-1] != 0 {
		return fmt.Errorf("string %d is not NUL-terminated", h)
	}
	if want := vm.HashBytes(obj.Bytes()); obj.Hash != want {
		return fmt.Errorf("string %d hash %#x, want %#x", h, obj.Hash, want)
	}
	return nil
}

func checkLoad(name string, t *vm.Table) error {
	if t.Count() < 0 || t.Tombstones() < 0 {
		return fmt.Errorf("%s table has negative counters", name)
	}
	if used := t.Count() + t.Tombstones(); used*4 > t.Capacity()*3 {
		return fmt.Errorf("%s table over load factor: %d used of %d buckets", name, used, t.Capacity())
	}
	return nil
}
