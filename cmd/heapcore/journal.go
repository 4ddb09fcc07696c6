package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"heapcore/internal/journal"
	"heapcore/internal/observ"
)

var journalCmd = &cobra.Command{
	Use:   "journal FILE",
	Short: "Print the collection records of a journal file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatStr, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		asJSON, err := cmd.Flags().GetBool("json")
		if err != nil {
			return fmt.Errorf("failed to get json flag: %w", err)
		}
		format, err := journalFormatFor(args[0], formatStr)
		if err != nil {
			return err
		}
		records, err := journal.ReadFile(args[0], format)
		if err != nil {
			return err
		}
		log.Debugf("read %d records from %s (%s)", len(records), args[0], format)

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		if len(records) == 0 {
			dimColor.Fprintln(out, "no records")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WORKER\tCYCLE\tBEFORE\tCOLLECTED\tREMAINING\tDROPPED\tTHRESHOLD\tMARK ms\tSWEEP ms\tAT")
		collected := 0
		for _, r := range records {
			collected += r.Collected
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.3f\t%.3f\t%s\n",
				r.Worker, r.Cycle, r.Before, r.Collected, r.Remaining, r.InternDropped, r.Threshold,
				observ.DurationToMillis(time.Duration(r.MarkNanos)),
				observ.DurationToMillis(time.Duration(r.SweepNanos)),
				r.Time().Format(time.RFC3339))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		summaryColor.Fprintf(out, "%d cycles, %d objects collected.\n", len(records), collected)
		return nil
	},
}

func init() {
	journalCmd.Flags().String("format", "", "journal format (msgpack|cbor|sqlite, default: from the file extension)")
	journalCmd.Flags().Bool("json", false, "print records as JSON")
}

// journalFormatFor picks the explicit format if given, otherwise guesses from
// the file extension.
func journalFormatFor(path, explicit string) (journal.Format, error) {
	if strings.TrimSpace(explicit) != "" {
		return journal.ParseFormat(explicit)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return journal.FormatSQLite, nil
	case ".cbor":
		return journal.FormatCBOR, nil
	default:
		return journal.FormatMsgpack, nil
	}
}
