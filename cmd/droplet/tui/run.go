package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned by Run when the user quits before the job ends.
var ErrCancelled = errors.New("generation cancelled")

// Job performs the generation, reporting through the two callbacks.
type Job func(ctx context.Context, onProgress func(float64), onLog func(string)) error

// Run shows the progress view while job runs and returns job's error.
func Run(ctx context.Context, source string, job Job) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(source, cancel), tea.WithAltScreen())

	result := make(chan error, 1)
	go func() {
		err := job(ctx,
			func(pct float64) { p.Send(ProgressMsg(pct)) },
			func(line string) { p.Send(LogMsg(line)) },
		)
		result <- err
		p.Send(DoneMsg{Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.Cancelled() {
		return ErrCancelled
	}
	return <-result
}
