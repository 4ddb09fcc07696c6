package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"heapcore/internal/script"
	"heapcore/internal/ui"
	"heapcore/internal/vm"
)

type runOutcome struct {
	result script.Result
	err    error
}

// runScriptWithUI executes s on m while a progress view renders its events.
func runScriptWithUI(ctx context.Context, title string, s *script.Script, m *vm.VM) (script.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan script.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		res, err := script.NewRunner(s, events).Run(ctx, m)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, s.Lines(), events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		cancel()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
