package vm

import (
	"bytes"
	"hash/fnv"
)

const (
	tableMaxLoad     = 0.75
	tableMinCapacity = 8
)

// HashBytes returns the 32-bit FNV-1a hash used for string keys.
func HashBytes(b []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(b) //nolint:errcheck // hash.Hash never returns an error
	return h.Sum32()
}

func growCapacity(capacity int) int {
	if capacity < tableMinCapacity {
		return tableMinCapacity
	}
	return capacity * 2
}

// bucket is Empty (no key, null value), a Tombstone (no key, non-null
// value) or Occupied (key set).
type bucket struct {
	key   Handle
	value Value
}

func (b *bucket) tombstone() bool { return b.key == NoHandle && !b.value.IsNull() }

// Table is an open-addressing hash map keyed by interned string handles.
//
// Keys are weak: the table never keeps a string alive, and key equality is
// handle identity since equal content always interns to one handle. The VM
// uses one table as the intern set (values are null and carry no meaning)
// and another as a name -> value map for globals.
type Table struct {
	buckets    []bucket
	count      int // occupied buckets
	tombstones int

	heap *Heap
}

// NewTable creates an empty table whose keys live in heap.
func NewTable(heap *Heap) *Table {
	return &Table{heap: heap}
}

// Count returns the number of live entries.
func (t *Table) Count() int { return t.count }

// Capacity returns the number of buckets.
func (t *Table) Capacity() int { return len(t.buckets) }

// Tombstones returns the number of deleted buckets awaiting the next rehash.
func (t *Table) Tombstones() int { return t.tombstones }

func (t *Table) keyHash(key Handle) uint32 {
	return t.heap.Get(key).Hash
}

// findBucket returns the bucket holding key, or the bucket where key should
// be inserted: the first tombstone passed on the probe, else the empty
// bucket that ended it. buckets must not be empty.
func findBucket(buckets []bucket, key Handle, hash uint32) *bucket {
	capacity := uint32(len(buckets))
	index := hash % capacity
	var tombstone *bucket
	for {
		b := &buckets[index]
		if b.key == NoHandle {
			if b.value.IsNull() {
				if tombstone != nil {
					return tombstone
				}
				return b
			}
			if tombstone == nil {
				tombstone = b
			}
		} else if b.key == key {
			return b
		}
		index = (index + 1) % capacity
	}
}

func (t *Table) adjustCapacity(capacity int) {
	buckets := make([]bucket, capacity)
	t.count = 0
	t.tombstones = 0
	for i := range t.buckets {
		src := &t.buckets[i]
		if src.key == NoHandle {
			continue
		}
		dst := findBucket(buckets, src.key, t.keyHash(src.key))
		dst.key = src.key
		dst.value = src.value
		t.count++
	}
	t.buckets = buckets
}

// Set inserts or overwrites key. It reports whether key was not present
// before; reusing a tombstone counts as a new key.
func (t *Table) Set(key Handle, value Value) bool {
	capacity := len(t.buckets)
	if float64(t.count+t.tombstones+1) > float64(capacity)*tableMaxLoad {
		// Tombstones alone can push the load over the limit; rehashing at
		// the same size clears them without growing.
		if float64(t.count+1) > float64(capacity)*tableMaxLoad {
			capacity = growCapacity(capacity)
		}
		t.adjustCapacity(capacity)
	}

	b := findBucket(t.buckets, key, t.keyHash(key))
	isNewKey := b.key == NoHandle
	if isNewKey {
		if b.tombstone() {
			t.tombstones--
		}
		t.count++
	}
	b.key = key
	b.value = value
	return isNewKey
}

// Get returns the value stored for key.
func (t *Table) Get(key Handle) (Value, bool) {
	if t.count == 0 {
		return Value{}, false
	}
	b := findBucket(t.buckets, key, t.keyHash(key))
	if b.key == NoHandle {
		return Value{}, false
	}
	return b.value, true
}

// Delete turns the bucket holding key into a tombstone.
func (t *Table) Delete(key Handle) bool {
	if t.count == 0 {
		return false
	}
	b := findBucket(t.buckets, key, t.keyHash(key))
	if b.key == NoHandle {
		return false
	}
	t.tombstone(b)
	return true
}

func (t *Table) tombstone(b *bucket) {
	b.key = NoHandle
	b.value = MakeBool(true)
	t.count--
	t.tombstones++
}

// FindString looks a string up by content. It is the interning lookup: the
// candidate string object does not exist yet, so keys are compared by hash,
// length and bytes instead of identity.
func (t *Table) FindString(chars []byte, hash uint32) (Handle, bool) {
	if t.count == 0 {
		return NoHandle, false
	}
	capacity := uint32(len(t.buckets))
	index := hash % capacity
	for {
		b := &t.buckets[index]
		if b.key == NoHandle {
			if b.value.IsNull() {
				return NoHandle, false
			}
		} else {
			obj := t.heap.Get(b.key)
			if obj.Hash == hash && obj.Len() == len(chars) && bytes.Equal(obj.Bytes(), chars) {
				return b.key, true
			}
		}
		index = (index + 1) % capacity
	}
}

// RemoveUnmarked deletes every entry whose key object is not marked and
// returns how many were removed. The collector calls it between marking and
// sweeping so no entry outlives its key.
func (t *Table) RemoveUnmarked() int {
	removed := 0
	for i := range t.buckets {
		b := &t.buckets[i]
		if b.key != NoHandle && !t.heap.Get(b.key).Marked {
			t.tombstone(b)
			removed++
		}
	}
	return removed
}

// Range calls fn for each live entry in bucket order until fn returns false.
func (t *Table) Range(fn func(key Handle, value Value) bool) {
	for i := range t.buckets {
		b := &t.buckets[i]
		if b.key == NoHandle {
			continue
		}
		if !fn(b.key, b.value) {
			return
		}
	}
}

// reset drops every bucket.
func (t *Table) reset() {
	t.buckets = nil
	t.count = 0
	t.tombstones = 0
}
