package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"heapcore/internal/testkit"
	"heapcore/internal/trace"
	"heapcore/internal/vm"
)

func TestParseAllOps(t *testing.T) {
	src := `
# every operation once
push int -7
push real 1.5
push bool true
push null
push string "a \"quoted\" # value"   # trailing comment
push array 3
intern "x"
pop
dup
store 2
set-global "g"
get-global "g"
collect
expect live 4
expect stack 0
`
	s, err := ParseString("all.hc", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{
		"push int -7",
		"push real 1.5",
		"push bool true",
		"push null",
		`push string "a \"quoted\" # value"`,
		"push array 3",
		`intern "x"`,
		"pop",
		"dup",
		"store 2",
		`set-global "g"`,
		`get-global "g"`,
		"collect",
		"expect live 4",
		"expect stack 0",
	}
	got := s.Lines()
	if len(got) != len(want) {
		t.Fatalf("parsed %d ops, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op %d = %q, want %q", i, got[i], want[i])
		}
	}
	if s.Ops[0].Line != 3 {
		t.Fatalf("first op line = %d, want 3", s.Ops[0].Line)
	}
	if s.Ops[4].Str != `a "quoted" # value` {
		t.Fatalf("string operand = %q", s.Ops[4].Str)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"jump 3", "unknown operation"},
		{"push", "push needs a kind"},
		{"push float 1", "unknown push kind"},
		{"push int", "needs one integer"},
		{"push int 99999999999", "push int"},
		{"push array -1", "negative length"},
		{"push string abc", "quoted string"},
		{`push string "open`, "unterminated"},
		{"pop 1", "takes no operands"},
		{"expect heap 1", "unknown expect subject"},
		{"push bool maybe", "push bool"},
	}
	for _, tt := range tests {
		_, err := ParseString("bad.hc", "\n"+tt.src)
		if err == nil {
			t.Errorf("%q: expected error", tt.src)
			continue
		}
		var perr *ParseError
		if !errors.As(err, &perr) || perr.Line != 2 {
			t.Errorf("%q: error %v is not a ParseError at line 2", tt.src, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: error %q does not mention %q", tt.src, err, tt.want)
		}
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.hc")
	if err := os.WriteFile(path, []byte("push int 1\npop\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != path || len(s.Ops) != 2 {
		t.Fatalf("script = %+v", s)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.hc")); err == nil {
		t.Fatal("missing file must fail")
	}
}

func TestDemoRun(t *testing.T) {
	m := vm.New(vm.Options{})
	defer m.Close()

	res, err := NewRunner(Demo(), nil).Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Cycles) != 1 {
		t.Fatalf("cycles = %d, want 1", len(res.Cycles))
	}
	if got := res.Cycles[0].String(); got != "Collected 3 objects, 0 remaining." {
		t.Fatalf("summary = %q", got)
	}
	if res.Steps != len(Demo().Ops) || res.Live != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunGlobalsAndStore(t *testing.T) {
	src := `
push array 2
push string "leaf"
store 0
set-global "root"
collect
expect live 3
get-global "root"
expect stack 1
`
	s, err := ParseString("globals.hc", src)
	if err != nil {
		t.Fatal(err)
	}
	m := vm.New(vm.Options{})
	defer m.Close()

	if _, err := NewRunner(s, nil).Run(context.Background(), m); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunStepError(t *testing.T) {
	s, err := ParseString("fail.hc", "push int 1\npop\npop\npush int 2\n")
	if err != nil {
		t.Fatal(err)
	}
	m := vm.New(vm.Options{})
	defer m.Close()

	events := make(chan Event, 16)
	res, err := NewRunner(s, events).Run(context.Background(), m)
	close(events)
	if err == nil {
		t.Fatal("expected underflow error")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Op.Line != 3 {
		t.Fatalf("error = %v", err)
	}
	if code, ok := vm.CodeOf(err); !ok || code != vm.PanicStackUnderflow {
		t.Fatalf("code = %v, %v", code, ok)
	}
	if res.Steps != 2 {
		t.Fatalf("steps = %d, want 2", res.Steps)
	}

	var last Event
	count := 0
	for ev := range events {
		last = ev
		count++
	}
	// running+done for two steps, then running+error.
	if count != 6 || last.Status != StatusError || last.Err == nil {
		t.Fatalf("events: count=%d last=%+v", count, last)
	}
}

func TestRunExpectFailure(t *testing.T) {
	s, err := ParseString("expect.hc", "intern \"a\"\nexpect live 2\n")
	if err != nil {
		t.Fatal(err)
	}
	m := vm.New(vm.Options{})
	defer m.Close()

	_, err = NewRunner(s, nil).Run(context.Background(), m)
	if err == nil || !strings.Contains(err.Error(), "expected 2 live objects, have 1") {
		t.Fatalf("error = %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := vm.New(vm.Options{})
	defer m.Close()

	res, err := NewRunner(Demo(), nil).Run(ctx, m)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if res.Steps != 0 {
		t.Fatalf("steps = %d after cancel", res.Steps)
	}
}

func TestRunTracesSteps(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	m := vm.New(vm.Options{})
	defer m.Close()

	if _, err := NewRunner(Demo(), nil).Run(ctx, m); err != nil {
		t.Fatal(err)
	}
	steps := 0
	for _, ev := range ring.Snapshot() {
		if ev.Name == "step" {
			steps++
		}
	}
	if steps != len(Demo().Ops) {
		t.Fatalf("traced %d steps, want %d", steps, len(Demo().Ops))
	}
}

func TestRunTracesFailures(t *testing.T) {
	ring := trace.NewRingTracer(16, trace.LevelError)
	ctx := trace.WithTracer(context.Background(), ring)
	m := vm.New(vm.Options{})
	defer m.Close()

	s, err := ParseString("fail.hc", "push int 1\npop\npop\n")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewRunner(s, nil).Run(ctx, m); err == nil {
		t.Fatal("expected underflow")
	}
	events := ring.Snapshot()
	if len(events) != 1 {
		t.Fatalf("got %d events at error level, want 1: %+v", len(events), events)
	}
	if ev := events[0]; ev.Kind != trace.KindError || ev.Name != "step" || ev.Extra["line"] != "3" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "testdata", "scenarios", "*.hc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no scenarios found")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := ParseFile(path)
			if err != nil {
				t.Fatal(err)
			}
			m := vm.New(vm.Options{Debug: true})
			defer m.Close()
			if _, err := NewRunner(s, nil).Run(context.Background(), m); err != nil {
				t.Fatal(err)
			}
			if err := testkit.CheckHeapInvariants(m); err != nil {
				t.Fatal(err)
			}
		})
	}
}
