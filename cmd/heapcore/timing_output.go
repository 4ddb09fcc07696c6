package main

import (
	"fmt"
	"io"

	"heapcore/internal/observ"
	"heapcore/internal/vm"
)

// printCycleTimings writes one line per collection with its phase durations.
func printCycleTimings(out io.Writer, cycles []vm.CollectStats) {
	for _, c := range cycles {
		fmt.Fprintf(out, "cycle %d: mark %.3f ms, reconcile %.3f ms, sweep %.3f ms (roots %d, interned dropped %d, threshold %d)\n",
			c.Cycle,
			observ.DurationToMillis(c.Mark),
			observ.DurationToMillis(c.Reconcile),
			observ.DurationToMillis(c.Sweep),
			c.Roots, c.InternDropped, c.Threshold)
	}
}

// printCycleSummaries writes the summary line of every collection.
func printCycleSummaries(out io.Writer, cycles []vm.CollectStats) {
	for _, c := range cycles {
		summaryColor.Fprintln(out, c.String())
	}
}
