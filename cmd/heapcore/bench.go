package main

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"fortio.org/safecast"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"heapcore/internal/observ"
	"heapcore/internal/vm"
)

type benchOptions struct {
	workers int
	rounds  int
	objects int
}

type benchTotals struct {
	allocated atomic.Int64
	collected atomic.Int64
	cycles    atomic.Int64
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Stress the collector with concurrent independent VMs",
	Long: `bench runs one VM per worker. Every round allocates strings and arrays,
keeps a quarter of them reachable through a rooted array, interns names that
are never rooted, and collects whenever the heap passes its watermark.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts benchOptions
		var err error
		if opts.workers, err = cmd.Flags().GetInt("workers"); err != nil {
			return fmt.Errorf("failed to get workers flag: %w", err)
		}
		if opts.rounds, err = cmd.Flags().GetInt("rounds"); err != nil {
			return fmt.Errorf("failed to get rounds flag: %w", err)
		}
		if opts.objects, err = cmd.Flags().GetInt("objects"); err != nil {
			return fmt.Errorf("failed to get objects flag: %w", err)
		}
		if opts.workers < 1 || opts.rounds < 1 || opts.objects < 1 {
			return fmt.Errorf("--workers, --rounds and --objects must be positive")
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		var totals benchTotals
		timer := observ.NewTimer()
		idx := timer.Begin("bench")
		g, ctx := errgroup.WithContext(cmd.Context())
		for w := 0; w < opts.workers; w++ {
			worker := w
			g.Go(func() error {
				return benchWorker(ctx, s, worker, opts, &totals)
			})
		}
		err = g.Wait()
		timer.End(idx, fmt.Sprintf("%d workers", opts.workers))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		summaryColor.Fprintf(out, "Allocated %d objects, collected %d in %d cycles.\n",
			totals.allocated.Load(), totals.collected.Load(), totals.cycles.Load())
		if s.timings {
			fmt.Fprint(out, timer.Summary())
		}
		if s.journal != nil {
			dimColor.Fprintln(cmd.ErrOrStderr(), journalSummary(s.journal))
		}
		return s.err()
	},
}

func init() {
	benchCmd.Flags().Int("workers", 4, "number of concurrent VMs")
	benchCmd.Flags().Int("rounds", 100, "allocation rounds per worker")
	benchCmd.Flags().Int("objects", 64, "objects allocated per round")
}

func benchWorker(ctx context.Context, s *session, worker int, opts benchOptions, totals *benchTotals) error {
	m, err := s.newVM(worker)
	if err != nil {
		return err
	}
	defer m.Close()

	keep := opts.objects / 4
	if keep == 0 {
		keep = 1
	}
	for round := 0; round < opts.rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		root, err := m.PushArray(keep)
		if err != nil {
			return fmt.Errorf("worker %d: %w", worker, err)
		}
		totals.allocated.Add(1)
		for i := 0; i < opts.objects; i++ {
			h, err := benchAlloc(m, worker, round, i)
			if err != nil {
				return fmt.Errorf("worker %d round %d: %w", worker, round, err)
			}
			totals.allocated.Add(1)
			if i%4 == 0 && i/4 < keep {
				if err := m.ArraySet(root, i/4, vm.MakeObj(h)); err != nil {
					return fmt.Errorf("worker %d round %d: %w", worker, round, err)
				}
			}
			if m.ShouldCollect() {
				if err := benchCollect(m, totals); err != nil {
					return fmt.Errorf("worker %d round %d: %w", worker, round, err)
				}
			}
		}
		if _, err := m.Pop(); err != nil {
			return fmt.Errorf("worker %d round %d: %w", worker, round, err)
		}
	}
	return benchCollect(m, totals)
}

// benchAlloc allocates a fresh array or a string unique to this slot. Odd
// slots hold a small int so deep marking has something to skip.
func benchAlloc(m *vm.VM, worker, round, i int) (vm.Handle, error) {
	if i%2 == 0 {
		return m.Intern("w" + strconv.Itoa(worker) + "/r" + strconv.Itoa(round) + "/" + strconv.Itoa(i))
	}
	h, err := m.NewArray(2)
	if err != nil {
		return vm.NoHandle, err
	}
	n, err := safecast.Conv[int32](i)
	if err != nil {
		return vm.NoHandle, err
	}
	return h, m.ArraySet(h, 0, vm.MakeInt(n))
}

func benchCollect(m *vm.VM, totals *benchTotals) error {
	stats, err := m.Collect()
	if err != nil {
		return err
	}
	totals.collected.Add(int64(stats.Collected))
	totals.cycles.Add(1)
	return nil
}
