package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"heapcore/internal/observ"
	"heapcore/internal/script"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the reference allocation round trip",
	Long: `demo allocates two unrooted arrays and interns one string twice, then
collects. All three objects are freed and the intern entry is dropped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		m, err := s.newVM(0)
		if err != nil {
			return err
		}
		defer m.Close()

		timer := observ.NewTimer()
		idx := timer.Begin("run")
		res, err := script.NewRunner(script.Demo(), nil).Run(cmd.Context(), m)
		timer.End(idx, fmt.Sprintf("%d steps", res.Steps))

		out := cmd.OutOrStdout()
		printCycleSummaries(out, res.Cycles)
		if err != nil {
			return err
		}
		if s.timings {
			printCycleTimings(out, res.Cycles)
			fmt.Fprint(out, timer.Summary())
		}
		return s.err()
	},
}
