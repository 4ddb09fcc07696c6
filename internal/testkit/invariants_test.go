package testkit

import (
	"testing"

	"heapcore/internal/vm"
)

func TestCheckHeapInvariantsHolds(t *testing.T) {
	m := vm.New(vm.Options{Debug: true})
	defer m.Close()

	arr, err := m.PushArray(2)
	if err != nil {
		t.Fatal(err)
	}
	s, err := m.Intern("kept")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ArraySet(arr, 0, vm.MakeObj(s)); err != nil {
		t.Fatal(err)
	}
	for _, word := range []string{"a", "b", "c", "kept"} {
		if _, err := m.Intern(word); err != nil {
			t.Fatal(err)
		}
	}
	name, err := m.Intern("g")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetGlobal(name, vm.MakeInt(1)); err != nil {
		t.Fatal(err)
	}

	if err := CheckHeapInvariants(m); err != nil {
		t.Fatalf("before collect: %v", err)
	}
	if _, err := m.Collect(); err != nil {
		t.Fatal(err)
	}
	if err := CheckHeapInvariants(m); err != nil {
		t.Fatalf("after collect: %v", err)
	}
	if err := CheckReachable(m); err != nil {
		t.Fatalf("reachability: %v", err)
	}
}

func TestCheckReachableDetectsShallowLoss(t *testing.T) {
	m := vm.New(vm.Options{Debug: true, Marking: vm.MarkShallow})
	defer m.Close()

	arr, err := m.PushArray(1)
	if err != nil {
		t.Fatal(err)
	}
	inner, err := m.NewArray(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ArraySet(arr, 0, vm.MakeObj(inner)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Collect(); err != nil {
		t.Fatal(err)
	}
	if err := CheckHeapInvariants(m); err != nil {
		t.Fatalf("heap should stay consistent: %v", err)
	}
	if err := CheckReachable(m); err == nil {
		t.Fatal("expected the freed element to be reported")
	}
}

func TestCheckHeapInvariantsNil(t *testing.T) {
	if err := CheckHeapInvariants(nil); err == nil {
		t.Fatal("expected error for nil vm")
	}
}
