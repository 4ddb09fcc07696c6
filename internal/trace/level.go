package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff   Level = iota // no tracing
	LevelError              // failed operations only
	LevelCycle              // session + collection cycle boundaries
	LevelPhase              // collector phases
	LevelDebug              // everything including object events
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelCycle:
		return "cycle"
	case LevelPhase:
		return "phase"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "cycle":
		return LevelCycle, nil
	case "phase":
		return LevelPhase, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|cycle|phase|debug)", s)
	}
}

// ShouldEmit reports whether spans and points of scope are recorded.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return false // only KindError events, see accepts
	case LevelCycle:
		return scope <= ScopeCycle
	case LevelPhase:
		return scope <= ScopePhase
	case LevelDebug:
		return true
	}
	return false
}

// accepts reports whether a sink at this level stores ev. Heartbeats and
// errors bypass the scope filter.
func (l Level) accepts(ev *Event) bool {
	if ev.Kind == KindHeartbeat || ev.Kind == KindError {
		return l > LevelOff
	}
	return l.ShouldEmit(ev.Scope)
}
