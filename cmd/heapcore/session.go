package main

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"heapcore/internal/config"
	"heapcore/internal/journal"
	"heapcore/internal/prof"
	"heapcore/internal/trace"
	"heapcore/internal/vm"
)

// session holds what every VM-driving command shares: configuration, the
// tracer, the statistics journal and the profilers.
type session struct {
	cfg     config.Config
	tracer  trace.Tracer
	journal *journal.Recorder
	timings bool

	mu         sync.Mutex
	journalErr error

	cleanups []func()
}

// openSession loads configuration and starts tracing, journaling and
// profiling as the flags request. The caller must call close.
func openSession(cmd *cobra.Command) (_ *session, err error) {
	flags := cmd.Root().PersistentFlags()
	s := &session{}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	if s.cfg, err = config.Resolve(configPath, wd); err != nil {
		return nil, err
	}
	if s.cfg.Path != "" {
		log.Infof("using configuration %s", s.cfg.Path)
	}

	if s.timings, err = flags.GetBool("timings"); err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}

	profOpts := prof.Options{}
	if profOpts.CPUPath, err = flags.GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if profOpts.MemPath, err = flags.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if profOpts.TracePath, err = flags.GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	profiler, err := prof.Start(profOpts)
	if err != nil {
		return nil, err
	}
	s.cleanups = append(s.cleanups, func() {
		if err := profiler.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	})

	tracer, traceCleanup, err := setupTracing(cmd, s.cfg)
	if err != nil {
		return nil, err
	}
	s.tracer = tracer
	s.cleanups = append(s.cleanups, traceCleanup)

	if err := s.openJournal(cmd); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) openJournal(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	path := s.cfg.Journal.Path
	formatStr := s.cfg.Journal.Format
	if flags.Changed("journal") {
		var err error
		if path, err = flags.GetString("journal"); err != nil {
			return fmt.Errorf("failed to get journal flag: %w", err)
		}
	}
	if flags.Changed("journal-format") {
		var err error
		if formatStr, err = flags.GetString("journal-format"); err != nil {
			return fmt.Errorf("failed to get journal-format flag: %w", err)
		}
	}
	if path == "" {
		return nil
	}
	format, err := journal.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	rec, err := journal.Open(path, format)
	if err != nil {
		return err
	}
	log.Infof("journaling collections to %s (%s)", path, format)
	s.journal = rec
	s.cleanups = append(s.cleanups, func() {
		if err := rec.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "journal: %v\n", err)
		}
	})
	return nil
}

// vmOptions returns the configured VM options for one worker; collections
// are journaled under that worker id.
func (s *session) vmOptions(worker int) (vm.Options, error) {
	opts, err := s.cfg.VMOptions()
	if err != nil {
		return vm.Options{}, err
	}
	opts.Tracer = s.tracer
	opts.OnCollect = func(stats vm.CollectStats) {
		log.Debugf("worker %d: cycle %d: %s", worker, stats.Cycle, stats)
		if err := s.journal.Record(worker, stats); err != nil {
			s.mu.Lock()
			if s.journalErr == nil {
				s.journalErr = err
			}
			s.mu.Unlock()
		}
	}
	return opts, nil
}

// newVM creates a VM for worker.
func (s *session) newVM(worker int) (*vm.VM, error) {
	opts, err := s.vmOptions(worker)
	if err != nil {
		return nil, err
	}
	log.Debugf("worker %d: vm stack=%d limit=%d marking=%s", worker, opts.StackSize, opts.MaxHeapObjects, opts.Marking)
	return vm.New(opts), nil
}

// err returns the first journaling failure.
func (s *session) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journalErr
}

// close runs cleanups in reverse order.
func (s *session) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil
}

func journalSummary(rec *journal.Recorder) string {
	if rec == nil {
		return ""
	}
	return strconv.Itoa(rec.Count()) + " records written to " + rec.Path()
}
