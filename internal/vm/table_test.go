package vm

import (
	"fmt"
	"testing"
)

// newKey allocates a string key with a forced hash so tests can build probe
// collisions deterministically.
func newKey(t *testing.T, h *Heap, s string, hash uint32) Handle {
	t.Helper()
	key, vmErr := h.allocString([]byte(s), hash)
	if vmErr != nil {
		t.Fatalf("allocString(%q): %v", s, vmErr)
	}
	return key
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func TestTableSetGetDelete(t *testing.T) {
	h := &Heap{}
	tbl := NewTable(h)
	k := newKey(t, h, "answer", HashBytes([]byte("answer")))

	if _, ok := tbl.Get(k); ok {
		t.Fatal("empty table must not find anything")
	}
	if tbl.Delete(k) {
		t.Fatal("Delete on empty table must return false")
	}
	if !tbl.Set(k, MakeInt(41)) {
		t.Fatal("first Set must report a new key")
	}
	if tbl.Set(k, MakeInt(42)) {
		t.Fatal("overwriting Set must not report a new key")
	}
	v, ok := tbl.Get(k)
	if !ok || v.Kind != VKInt || v.Int != 42 {
		t.Fatalf("Get = %v, %v; want 42, true", v, ok)
	}
	if tbl.Count() != 1 || tbl.Capacity() != 8 {
		t.Fatalf("count=%d capacity=%d, want 1 and 8", tbl.Count(), tbl.Capacity())
	}
	if !tbl.Delete(k) {
		t.Fatal("Delete of present key must return true")
	}
	if tbl.Delete(k) {
		t.Fatal("second Delete must return false")
	}
	if _, ok := tbl.Get(k); ok {
		t.Fatal("deleted key must not be found")
	}
	if tbl.Count() != 0 || tbl.Tombstones() != 1 {
		t.Fatalf("count=%d tombstones=%d, want 0 and 1", tbl.Count(), tbl.Tombstones())
	}
}

func TestTableLoadFactorInvariant(t *testing.T) {
	h := &Heap{}
	tbl := NewTable(h)
	seen := []int{}
	for i := 0; i < 200; i++ {
		s := fmt.Sprintf("key-%d", i)
		k := newKey(t, h, s, HashBytes([]byte(s)))
		if !tbl.Set(k, MakeInt(int32(i))) {
			t.Fatalf("key %d reported as existing", i)
		}
		capacity := tbl.Capacity()
		if !isPowerOfTwo(capacity) || capacity < 8 {
			t.Fatalf("capacity %d is not a power of two >= 8", capacity)
		}
		if float64(tbl.Count()) > float64(capacity)*tableMaxLoad {
			t.Fatalf("count %d exceeds load factor for capacity %d", tbl.Count(), capacity)
		}
		if len(seen) == 0 || seen[len(seen)-1] != capacity {
			seen = append(seen, capacity)
		}
	}
	want := []int{8, 16, 32, 64, 128, 256, 512}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("capacity sequence = %v, want %v", seen, want)
	}
	if tbl.Count() != 200 {
		t.Fatalf("count = %d, want 200", tbl.Count())
	}
}

func TestTableGrowthKeepsEntries(t *testing.T) {
	h := &Heap{}
	tbl := NewTable(h)
	keys := make([]Handle, 0, 50)
	for i := 0; i < 50; i++ {
		s := fmt.Sprintf("g%d", i)
		k := newKey(t, h, s, HashBytes([]byte(s)))
		keys = append(keys, k)
		tbl.Set(k, MakeInt(int32(i)))
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		if !ok || v.Int != int32(i) {
			t.Fatalf("key %d lost after growth: %v, %v", i, v, ok)
		}
	}
}

func TestTableTombstoneProbeChain(t *testing.T) {
	h := &Heap{}
	tbl := NewTable(h)
	const hash = 3
	k := newKey(t, h, "k", hash)
	after := newKey(t, h, "k2", hash)
	replacement := newKey(t, h, "k1", hash)

	tbl.Set(k, MakeInt(1))
	tbl.Set(after, MakeInt(2))
	if !tbl.Delete(k) {
		t.Fatal("Delete(k) failed")
	}

	// A key placed behind the deleted one must stay reachable.
	if v, ok := tbl.Get(after); !ok || v.Int != 2 {
		t.Fatalf("key behind tombstone lost: %v, %v", v, ok)
	}

	if !tbl.Set(replacement, MakeInt(3)) {
		t.Fatal("insert into tombstone must report a new key")
	}
	if tbl.buckets[hash].key != replacement {
		t.Fatalf("tombstone at home slot was not reused")
	}
	if tbl.Tombstones() != 0 {
		t.Fatalf("tombstones = %d, want 0 after reuse", tbl.Tombstones())
	}
	if _, ok := tbl.Get(k); ok {
		t.Fatal("deleted key found again")
	}
	if v, ok := tbl.Get(replacement); !ok || v.Int != 3 {
		t.Fatalf("replacement not found: %v, %v", v, ok)
	}
	if v, ok := tbl.Get(after); !ok || v.Int != 2 {
		t.Fatalf("key behind reused slot lost: %v, %v", v, ok)
	}
}

func TestTableFindStringSkipsTombstones(t *testing.T) {
	h := &Heap{}
	tbl := NewTable(h)
	first := newKey(t, h, "aa", 5)
	second := newKey(t, h, "bb", 5)
	tbl.Set(first, MakeNull())
	tbl.Set(second, MakeNull())
	tbl.Delete(first)

	got, ok := tbl.FindString([]byte("bb"), 5)
	if !ok || got != second {
		t.Fatalf("FindString past tombstone = %d, %v; want %d", got, ok, second)
	}
	if _, ok := tbl.FindString([]byte("aa"), 5); ok {
		t.Fatal("deleted content still found")
	}
	if _, ok := tbl.FindString([]byte("b"), 5); ok {
		t.Fatal("prefix with the same hash must not match")
	}
	if _, ok := NewTable(h).FindString([]byte("bb"), 5); ok {
		t.Fatal("empty table must report not found")
	}
}

func TestTableTombstoneChurnRehashesInPlace(t *testing.T) {
	h := &Heap{}
	tbl := NewTable(h)
	for i := 0; i < 1000; i++ {
		s := fmt.Sprintf("churn-%d", i)
		k := newKey(t, h, s, HashBytes([]byte(s)))
		tbl.Set(k, MakeNull())
		if !tbl.Delete(k) {
			t.Fatalf("Delete(%s) failed", s)
		}
	}
	if tbl.Capacity() != 8 {
		t.Fatalf("capacity grew to %d under churn", tbl.Capacity())
	}
	if tbl.Count() != 0 {
		t.Fatalf("count = %d, want 0", tbl.Count())
	}
	if float64(tbl.Tombstones()+1) > float64(tbl.Capacity())*tableMaxLoad+1 {
		t.Fatalf("tombstones = %d exceed load limit", tbl.Tombstones())
	}
}

func TestTableRemoveUnmarked(t *testing.T) {
	h := &Heap{}
	tbl := NewTable(h)
	keep := newKey(t, h, "keep", HashBytes([]byte("keep")))
	drop := newKey(t, h, "drop", HashBytes([]byte("drop")))
	tbl.Set(keep, MakeNull())
	tbl.Set(drop, MakeNull())

	h.Get(keep).Marked = true
	if n := tbl.RemoveUnmarked(); n != 1 {
		t.Fatalf("RemoveUnmarked = %d, want 1", n)
	}
	if _, ok := tbl.Get(keep); !ok {
		t.Fatal("marked key removed")
	}
	if _, ok := tbl.Get(drop); ok {
		t.Fatal("unmarked key kept")
	}

	count := 0
	tbl.Range(func(key Handle, _ Value) bool {
		if key != keep {
			t.Errorf("Range yielded unexpected key %d", key)
		}
		count++
		return true
	})
	if count != 1 {
		t.Fatalf("Range visited %d entries, want 1", count)
	}
}
