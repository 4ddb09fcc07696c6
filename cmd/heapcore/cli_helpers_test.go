package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"heapcore/internal/journal"
	"heapcore/internal/vm"
)

func TestReadUIMode(t *testing.T) {
	cases := []struct {
		input string
		want  uiMode
		ok    bool
	}{
		{"", uiModeAuto, true},
		{"Auto", uiModeAuto, true},
		{" on ", uiModeOn, true},
		{"off", uiModeOff, true},
		{"sometimes", "", false},
	}
	for _, tc := range cases {
		got, err := readUIMode(tc.input)
		if tc.ok && err != nil {
			t.Fatalf("readUIMode(%q) error: %v", tc.input, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("readUIMode(%q) expected error", tc.input)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("readUIMode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestJournalFormatFor(t *testing.T) {
	cases := []struct {
		path     string
		explicit string
		want     journal.Format
	}{
		{"gc.db", "", journal.FormatSQLite},
		{"gc.SQLITE", "", journal.FormatSQLite},
		{"gc.cbor", "", journal.FormatCBOR},
		{"gc.bin", "", journal.FormatMsgpack},
		{"gc.db", "cbor", journal.FormatCBOR},
	}
	for _, tc := range cases {
		got, err := journalFormatFor(tc.path, tc.explicit)
		if err != nil {
			t.Fatalf("journalFormatFor(%q, %q) error: %v", tc.path, tc.explicit, err)
		}
		if got != tc.want {
			t.Fatalf("journalFormatFor(%q, %q) = %s, want %s", tc.path, tc.explicit, got, tc.want)
		}
	}
	if _, err := journalFormatFor("gc.db", "yaml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPrintCycleSummaries(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	printCycleSummaries(&buf, []vm.CollectStats{
		{Cycle: 1, Collected: 3, Remaining: 0},
		{Cycle: 2, Collected: 1, Remaining: 4},
	})
	want := "Collected 3 objects, 0 remaining.\nCollected 1 objects, 4 remaining.\n"
	if buf.String() != want {
		t.Fatalf("summaries = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	printCycleTimings(&buf, []vm.CollectStats{{Cycle: 7, Roots: 2, Threshold: 256}})
	if !strings.HasPrefix(buf.String(), "cycle 7: mark 0.000 ms") {
		t.Fatalf("timings = %q", buf.String())
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	info := versionInfo{Version: "x", GoVersion: "go1.25.1"}
	if err := renderVersionJSON(&buf, info, true); err != nil {
		t.Fatal(err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Tool != "heapcore" || payload.GitCommit != "unknown" || payload.GoVersion != "go1.25.1" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if strings.Contains(payload.Version, "\x1b[") {
		t.Fatalf("version carries color escapes: %q", payload.Version)
	}
}
