package mailbox

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run executes cmd and every follow-up command until none remain or ctx
// ends. Batched commands run concurrently; their messages are applied
// one at a time through Update on the calling goroutine, which must be
// the controller's owner.
func (c *Controller) Run(ctx context.Context, cmd tea.Cmd) error {
	results := make(chan tea.Msg)
	done := make(chan struct{})
	defer close(done)

	pending := 0
	start := func(cmd tea.Cmd) {
		if cmd == nil {
			return
		}
		pending++
		go func() {
			msg := cmd()
			select {
			case results <- msg:
			case <-done:
			}
		}()
	}

	start(cmd)
	for pending > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-results:
			pending--
			switch msg := msg.(type) {
			case nil:
			case tea.BatchMsg:
				for _, sub := range msg {
					start(sub)
				}
			default:
				start(c.Update(msg))
			}
		}
	}
	return nil
}
