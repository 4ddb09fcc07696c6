// Package fuzztests houses Go fuzz harnesses for the scenario parser and the
// heap. Inputs must never panic the process, and every run must leave the
// heap consistent and empty after teardown.
package fuzztests
