package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"heapcore/internal/config"
	"heapcore/internal/trace"
)

// setupTracing builds the tracer from the [trace] section, with the trace
// flags taking precedence, and attaches it to the command context. It
// returns a cleanup function.
func setupTracing(cmd *cobra.Command, cfg config.Config) (trace.Tracer, func(), error) {
	root := cmd.Root()
	flags := root.PersistentFlags()

	traceCfg, err := cfg.TracerConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trace configuration: %w", err)
	}

	if flags.Changed("trace") {
		traceCfg.OutputPath, err = flags.GetString("trace")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get trace flag: %w", err)
		}
		// An explicit output implies at least cycle-level tracing.
		if traceCfg.Level == trace.LevelOff {
			traceCfg.Level = trace.LevelCycle
		}
	}
	if flags.Changed("trace-level") {
		levelStr, err := flags.GetString("trace-level")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get trace-level flag: %w", err)
		}
		if traceCfg.Level, err = trace.ParseLevel(levelStr); err != nil {
			return nil, nil, fmt.Errorf("invalid trace level: %w", err)
		}
	}
	if flags.Changed("trace-mode") {
		modeStr, err := flags.GetString("trace-mode")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
		}
		if traceCfg.Mode, err = trace.ParseMode(modeStr); err != nil {
			return nil, nil, fmt.Errorf("invalid trace mode: %w", err)
		}
	}
	if flags.Changed("trace-format") {
		formatStr, err := flags.GetString("trace-format")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get trace-format flag: %w", err)
		}
		if traceCfg.Format, err = trace.ParseFormat(formatStr); err != nil {
			return nil, nil, fmt.Errorf("invalid trace format: %w", err)
		}
	}

	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}
	traceCfg.RingSize = ringSize
	traceCfg.Heartbeat = heartbeatInterval

	if traceCfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return trace.Nop, func() {}, nil
	}

	tracer, err := trace.New(traceCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	log.Debugf("tracing at level %s to %q", traceCfg.Level, traceCfg.OutputPath)

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	cleanup := func() {
		heartbeat.Stop()

		// Ring-only tracing keeps events in memory; dump them on exit.
		if ring := ringOf(tracer); ring != nil && traceCfg.Mode == trace.ModeRing {
			format := traceCfg.Format
			if format == trace.FormatAuto {
				format = trace.FormatText
			}
			if err := ring.Dump(cmd.ErrOrStderr(), format); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

func ringOf(t trace.Tracer) *trace.RingTracer {
	switch t := t.(type) {
	case *trace.RingTracer:
		return t
	case *trace.MultiTracer:
		return t.Ring()
	default:
		return nil
	}
}
