package journal

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"heapcore/internal/vm"
)

func sampleStats(cycle uint64) vm.CollectStats {
	return vm.CollectStats{
		Cycle:         cycle,
		Before:        10,
		Collected:     7,
		Remaining:     3,
		Roots:         2,
		InternDropped: 1,
		Threshold:     256,
		Mark:          3 * time.Microsecond,
		Reconcile:     time.Microsecond,
		Sweep:         5 * time.Microsecond,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatMsgpack, false},
		{"msgpack", FormatMsgpack, false},
		{"CBOR", FormatCBOR, false},
		{"sqlite", FormatSQLite, false},
		{"xml", FormatMsgpack, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestJournalFormats(t *testing.T) {
	formats := []struct {
		format Format
		file   string
	}{
		{FormatMsgpack, "cycles.mp"},
		{FormatCBOR, "cycles.cbor"},
		{FormatSQLite, "cycles.db"},
	}
	for _, tc := range formats {
		t.Run(tc.format.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.file)
			rec, err := Open(path, tc.format)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			at := time.Unix(1700000000, 42)
			rec.now = func() time.Time { return at }

			for i := uint64(1); i <= 3; i++ {
				if err := rec.Record(int(i%2), sampleStats(i)); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}
			if rec.Count() != 3 {
				t.Fatalf("Count = %d", rec.Count())
			}
			if err := rec.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := rec.Close(); err != nil {
				t.Fatalf("second Close: %v", err)
			}
			if err := rec.Record(0, sampleStats(4)); err == nil {
				t.Fatal("Record after Close succeeded")
			}

			got, err := ReadFile(path, tc.format)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("read %d records, want 3", len(got))
			}
			for i, r := range got {
				want := FromStats(int(uint64(i+1)%2), sampleStats(uint64(i+1)), at)
				if r != want {
					t.Errorf("record %d = %+v, want %+v", i, r, want)
				}
			}
			if got[0].Summary() != "Collected 7 objects, 3 remaining." {
				t.Fatalf("Summary = %q", got[0].Summary())
			}
			if !got[0].Time().Equal(at) {
				t.Fatalf("Time = %v, want %v", got[0].Time(), at)
			}
		})
	}
}

func TestRecorderConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.mp")
	rec, err := Open(path, FormatMsgpack)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range 25 {
				if err := rec.Record(w, sampleStats(uint64(c+1))); err != nil {
					t.Errorf("worker %d: %v", w, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path, FormatMsgpack)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 100 {
		t.Fatalf("read %d records, want 100", len(got))
	}
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	if err := rec.Record(0, sampleStats(1)); err != nil {
		t.Fatal(err)
	}
	if rec.Count() != 0 || rec.Path() != "" {
		t.Fatal("nil recorder must be empty")
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadFileMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none")
	for _, f := range []Format{FormatMsgpack, FormatCBOR, FormatSQLite} {
		if _, err := ReadFile(missing, f); err == nil {
			t.Errorf("%s: expected error for missing file", f)
		}
	}
}
