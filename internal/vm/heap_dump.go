package vm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// dumpPreviewWidth bounds the display width of string previews in dumps.
const dumpPreviewWidth = 32

type heapDumpRecord struct {
	handle   Handle
	kind     string
	size     uint64
	refs     int
	length   int
	interned bool
	preview  string
	line     string
}

// HeapDump renders one line per live object, strings first, each kind in
// handle order. An empty heap renders as "".
func (vm *VM) HeapDump() string {
	if vm == nil || vm.Heap == nil {
		return ""
	}
	records := make([]heapDumpRecord, 0, vm.Heap.Live())
	vm.Heap.each(func(h Handle, obj *Object) {
		records = append(records, vm.heapDumpRecord(h, obj))
	})
	if len(records) == 0 {
		return ""
	}

	sort.Slice(records, func(i, j int) bool {
		a := records[i]
		b := records[j]
		if a.kind != b.kind {
			return a.kind > b.kind
		}
		return a.handle < b.handle
	})

	var b strings.Builder
	for _, rec := range records {
		b.WriteString(rec.line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (vm *VM) heapDumpRecord(h Handle, obj *Object) heapDumpRecord {
	rec := heapDumpRecord{
		handle: h,
		kind:   obj.Kind.String(),
		size:   heapObjectBytes(obj),
		refs:   objectRefCount(obj),
		length: obj.Len(),
	}
	if obj.Kind == OKString {
		found, ok := vm.interned.FindString(obj.Bytes(), obj.Hash)
		rec.interned = ok && found == h
		rec.preview = runewidth.Truncate(strconv.Quote(string(obj.Bytes())), dumpPreviewWidth, "…")
	}
	rec.line = rec.formatLine()
	return rec
}

func (rec heapDumpRecord) formatLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "OBJ #%d kind=%s size=%d len=%d refs=%d", rec.handle, rec.kind, rec.size, rec.length, rec.refs)
	if rec.kind == OKString.String() {
		fmt.Fprintf(&b, " interned=%t repr=%s", rec.interned, rec.preview)
	}
	return b.String()
}
