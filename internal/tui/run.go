package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run drives the UI until the user quits or ctx is cancelled. Session and
// collection changes made outside the UI, such as scheduled refreshes, are
// picked up through their OnChange hooks.
func Run(ctx context.Context, opts Options) error {
	opts.Context = ctx
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))

	// Hooks may fire while Update runs; Send must not block the loop.
	notify := func() { go p.Send(changedMsg{}) }
	opts.Session.OnChange = notify
	opts.Tickets.OnChange = notify

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
