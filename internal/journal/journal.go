// Package journal records collector statistics, one record per cycle, to a
// msgpack stream, a CBOR stream or a SQLite database.
package journal

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"heapcore/internal/vm"
)

// Schema is written with every record; bump it when Record changes.
const Schema uint16 = 1

// Format selects the journal encoding.
type Format uint8

const (
	FormatMsgpack Format = iota
	FormatCBOR
	FormatSQLite
)

// String returns the format name used in flags and configuration.
func (f Format) String() string {
	switch f {
	case FormatMsgpack:
		return "msgpack"
	case FormatCBOR:
		return "cbor"
	case FormatSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("Format(%d)", f)
	}
}

// ParseFormat converts msgpack|cbor|sqlite to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "msgpack", "mp":
		return FormatMsgpack, nil
	case "cbor":
		return FormatCBOR, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	default:
		return FormatMsgpack, fmt.Errorf("invalid journal format: %q (expected: msgpack|cbor|sqlite)", s)
	}
}

// Record is one collection cycle. Object contents are never journaled.
type Record struct {
	Schema         uint16 `msgpack:"schema" cbor:"schema"`
	Worker         int    `msgpack:"worker" cbor:"worker"`
	Cycle          uint64 `msgpack:"cycle" cbor:"cycle"`
	Before         int    `msgpack:"before" cbor:"before"`
	Collected      int    `msgpack:"collected" cbor:"collected"`
	Remaining      int    `msgpack:"remaining" cbor:"remaining"`
	Roots          int    `msgpack:"roots" cbor:"roots"`
	InternDropped  int    `msgpack:"intern_dropped" cbor:"intern_dropped"`
	Threshold      int    `msgpack:"threshold" cbor:"threshold"`
	MarkNanos      int64  `msgpack:"mark_ns" cbor:"mark_ns"`
	ReconcileNanos int64  `msgpack:"reconcile_ns" cbor:"reconcile_ns"`
	SweepNanos     int64  `msgpack:"sweep_ns" cbor:"sweep_ns"`
	UnixNano       int64  `msgpack:"at" cbor:"at"`
}

// FromStats builds a record for a cycle run by worker.
func FromStats(worker int, s vm.CollectStats, at time.Time) Record {
	return Record{
		Schema:         Schema,
		Worker:         worker,
		Cycle:          s.Cycle,
		Before:         s.Before,
		Collected:      s.Collected,
		Remaining:      s.Remaining,
		Roots:          s.Roots,
		InternDropped:  s.InternDropped,
		Threshold:      s.Threshold,
		MarkNanos:      s.Mark.Nanoseconds(),
		ReconcileNanos: s.Reconcile.Nanoseconds(),
		SweepNanos:     s.Sweep.Nanoseconds(),
		UnixNano:       at.UnixNano(),
	}
}

// Time returns the moment the record was taken.
func (r Record) Time() time.Time {
	return time.Unix(0, r.UnixNano)
}

// Summary renders the cycle line printed by the collector.
func (r Record) Summary() string {
	return fmt.Sprintf("Collected %d objects, %d remaining.", r.Collected, r.Remaining)
}

type sink interface {
	write(rec *Record) error
	close() error
}

// Recorder appends records to a journal. It is safe for concurrent use so
// bench workers can share one journal.
type Recorder struct {
	mu     sync.Mutex
	path   string
	format Format
	sink   sink
	count  int
	now    func() time.Time
}

// Open creates (or truncates) the journal at path.
func Open(path string, format Format) (*Recorder, error) {
	var (
		s   sink
		err error
	)
	switch format {
	case FormatMsgpack:
		s, err = newMsgpackSink(path)
	case FormatCBOR:
		s, err = newCBORSink(path)
	case FormatSQLite:
		s, err = newSQLiteSink(path)
	default:
		return nil, fmt.Errorf("unknown journal format: %v", format)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s journal %q: %w", format, path, err)
	}
	return &Recorder{path: path, format: format, sink: s, now: time.Now}, nil
}

// Record appends the stats of one cycle. A nil Recorder discards.
func (r *Recorder) Record(worker int, s vm.CollectStats) error {
	if r == nil {
		return nil
	}
	rec := FromStats(worker, s, r.now())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink == nil {
		return fmt.Errorf("journal %q is closed", r.path)
	}
	if err := r.sink.write(&rec); err != nil {
		return fmt.Errorf("journal %q: %w", r.path, err)
	}
	r.count++
	return nil
}

// Count returns the number of records written.
func (r *Recorder) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Path returns the journal location.
func (r *Recorder) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Format returns the journal encoding.
func (r *Recorder) Format() Format {
	return r.format
}

// Close flushes and closes the journal. Closing twice is a no-op.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink == nil {
		return nil
	}
	err := r.sink.close()
	r.sink = nil
	return err
}

// ReadFile decodes every record of a journal.
func ReadFile(path string, format Format) ([]Record, error) {
	switch format {
	case FormatMsgpack:
		return readMsgpack(path)
	case FormatCBOR:
		return readCBOR(path)
	case FormatSQLite:
		return readSQLite(path)
	default:
		return nil, fmt.Errorf("unknown journal format: %v", format)
	}
}
