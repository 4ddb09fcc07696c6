package fuzztests

import (
	"context"
	"testing"
	"time"

	"heapcore/internal/script"
	"heapcore/internal/testkit"
	"heapcore/internal/vm"
)

// maxFuzzInput keeps rendered lines, where escapes may quadruple a string,
// under the scanner's line limit.
const maxFuzzInput = 4 << 10 // 4 KiB

// maxFuzzArray bounds array lengths so a single op cannot exhaust memory.
const maxFuzzArray = 1 << 12

// runTimeout bounds one scenario run; scripts have no loops, so a run that
// takes longer indicates a hang in the VM.
const runTimeout = 5 * time.Second

func FuzzScriptParse(f *testing.F) {
	addCorpusSeeds(f)
	f.Add([]byte(`push string "unterminated`))
	f.Add([]byte("push int 99999999999"))
	f.Add([]byte("expect\n"))
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		s, err := script.ParseString("fuzz.hc", string(input))
		if err != nil {
			return
		}
		// Rendered ops parse back to the same kinds.
		again, err := script.ParseString("again.hc", joinLines(s.Lines()))
		if err != nil {
			t.Fatalf("re-parse of rendered script failed: %v", err)
		}
		if len(again.Ops) != len(s.Ops) {
			t.Fatalf("re-parse yielded %d ops, want %d", len(again.Ops), len(s.Ops))
		}
		for i := range s.Ops {
			if again.Ops[i].Kind != s.Ops[i].Kind {
				t.Fatalf("op %d: kind %s, want %s", i, again.Ops[i].Kind, s.Ops[i].Kind)
			}
		}
	})
}

func FuzzScriptRun(f *testing.F) {
	addCorpusSeeds(f)
	f.Add([]byte("push array 2\nintern \"k\"\nstore 0\ncollect\nexpect live 2\n"))
	f.Add([]byte("push string \"g\"\nset-global \"g\"\npop\ncollect\n"))
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		s, err := script.ParseString("fuzz.hc", string(input))
		if err != nil {
			return
		}
		for _, op := range s.Ops {
			if op.Kind == script.OpPushArray && op.Int > maxFuzzArray {
				return
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		m := vm.New(vm.Options{StackSize: 64, MaxHeapObjects: 4096, Debug: true})

		// Step failures are expected; only the heap state matters.
		_, _ = script.NewRunner(s, nil).Run(ctx, m) //nolint:errcheck
		if ctx.Err() != nil {
			t.Fatalf("scenario did not finish within %v", runTimeout)
		}
		if err := testkit.CheckHeapInvariants(m); err != nil {
			t.Fatalf("after run: %v", err)
		}
		if _, err := m.Collect(); err != nil {
			t.Fatalf("collect: %v", err)
		}
		if err := testkit.CheckHeapInvariants(m); err != nil {
			t.Fatalf("after collect: %v", err)
		}
		if err := testkit.CheckReachable(m); err != nil {
			t.Fatalf("after collect: %v", err)
		}
		if err := m.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if m.LiveObjects() != 0 {
			t.Fatalf("%d objects survived teardown", m.LiveObjects())
		}
	})
}

func joinLines(lines []string) string {
	out := make([]byte, 0, 16*len(lines))
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\n')
	}
	return string(out)
}
