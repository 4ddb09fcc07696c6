package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"heapcore/internal/observ"
	"heapcore/internal/script"
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Run an allocation scenario script",
	Long: `run executes a scenario script against a fresh VM. Each line is one
operation such as push, intern, store, set-global, collect or expect.
Collection summaries are printed as they appear in the script.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useUI, err := useProgressUI(cmd)
		if err != nil {
			return err
		}
		dump, err := cmd.Flags().GetBool("dump")
		if err != nil {
			return fmt.Errorf("failed to get dump flag: %w", err)
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		timer := observ.NewTimer()
		idx := timer.Begin("parse")
		scr, err := script.ParseFile(args[0])
		if err != nil {
			return err
		}
		timer.End(idx, fmt.Sprintf("%d ops", len(scr.Ops)))

		m, err := s.newVM(0)
		if err != nil {
			return err
		}
		defer m.Close()

		idx = timer.Begin("run")
		var res script.Result
		if useUI {
			res, err = runScriptWithUI(cmd.Context(), scr.Name, scr, m)
		} else {
			res, err = script.NewRunner(scr, nil).Run(cmd.Context(), m)
		}
		timer.End(idx, fmt.Sprintf("%d steps, %d cycles", res.Steps, len(res.Cycles)))

		out := cmd.OutOrStdout()
		printCycleSummaries(out, res.Cycles)
		if dump {
			fmt.Fprint(out, m.HeapDump())
		}
		if err != nil {
			return err
		}
		if s.timings {
			printCycleTimings(out, res.Cycles)
			fmt.Fprint(out, timer.Summary())
		}
		if s.journal != nil {
			dimColor.Fprintln(cmd.ErrOrStderr(), journalSummary(s.journal))
		}
		return s.err()
	},
}

func init() {
	runCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	runCmd.Flags().Bool("dump", false, "print the live heap after the script finishes")
}
