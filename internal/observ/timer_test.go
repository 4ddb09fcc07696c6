package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerRecordsPhases(t *testing.T) {
	tm := NewTimer()
	mark := tm.Begin("mark")
	time.Sleep(time.Millisecond)
	if d := tm.End(mark, "3 roots"); d <= 0 {
		t.Fatalf("expected positive duration, got %v", d)
	}
	sweep := tm.Begin("sweep")
	tm.End(sweep, "")

	phases := tm.Phases()
	if len(phases) != 2 || phases[0].Name != "mark" || phases[1].Name != "sweep" {
		t.Fatalf("unexpected phases: %+v", phases)
	}
	if tm.Duration("mark") < time.Millisecond {
		t.Errorf("mark duration = %v, want >= 1ms", tm.Duration("mark"))
	}
	if tm.Duration("missing") != 0 {
		t.Errorf("unknown phase should have zero duration")
	}
}

func TestTimerEndIgnoresBadIndex(t *testing.T) {
	tm := NewTimer()
	if d := tm.End(3, "x"); d != 0 {
		t.Fatalf("End on bad index = %v, want 0", d)
	}
}

func TestTimerSummary(t *testing.T) {
	tm := NewTimer()
	tm.End(tm.Begin("reconcile"), "dropped 2")
	out := tm.Summary()
	for _, want := range []string{"timings:", "reconcile", "// dropped 2", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if r := (&Timer{}).Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Errorf("empty timer report = %+v", r)
	}
}
