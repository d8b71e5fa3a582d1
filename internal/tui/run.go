package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rendis/conclave/internal/engine"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

// Options configures Run.
type Options struct {
	Title string
	// Task, when set, is submitted immediately instead of prompting.
	Task   string
	Input  io.Reader
	Output io.Writer
	// AltScreen switches the terminal to the alternate buffer.
	AltScreen bool
}

// Run drives the terminal UI until the user quits and returns the last run
// snapshot.
func Run(ctx context.Context, runner engine.Runner, hub streaming.EventHub, opts Options) (schema.RunState, error) {
	var events <-chan streaming.StreamEvent
	if hub != nil {
		ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{})
		if err != nil {
			return schema.RunState{}, fmt.Errorf("subscribe: %w", err)
		}
		defer cancel()
		events = ch
	}

	if opts.Title == "" {
		opts.Title = "Collaborative AI Team"
	}

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	p := tea.NewProgram(NewModel(ctx, runner, events, opts.Title, opts.Task), progOpts...)
	if _, err := p.Run(); err != nil {
		return runner.Snapshot(), fmt.Errorf("run tui: %w", err)
	}
	return runner.Snapshot(), nil
}
