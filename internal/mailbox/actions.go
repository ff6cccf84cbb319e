package mailbox

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
)

// Select opens the message with id. Providers that can fetch by id
// return the full message and mark it read; otherwise the message must
// already be in the listing.
func (c *Controller) Select(id string) tea.Cmd {
	c.selectSeq++
	seq := c.selectSeq

	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		e, err := p.Get(ctx, id)
		return emailLoadedMsg{seq: seq, id: id, email: e, err: err}
	})
}

// Deselect closes the open message and drops any pending selection.
func (c *Controller) Deselect() {
	c.selectSeq++
	c.state.Selected = nil
}

func (c *Controller) applySelection(msg emailLoadedMsg) tea.Cmd {
	if msg.seq != c.selectSeq {
		c.logger.Debug("discarding stale selection", "id", msg.id, "seq", msg.seq)
		return nil
	}

	if errors.Is(msg.err, provider.ErrUnsupported) {
		cached, ok := c.find(msg.id)
		if !ok {
			c.fail(msg.err, "Failed to load email")
			return nil
		}
		c.state.Selected = &cached
		return nil
	}
	if msg.err != nil {
		c.fail(msg.err, "Failed to load email")
		return nil
	}

	e := *msg.email
	c.state.Selected = &e
	c.patch(msg.id, func(m *model.Email) { m.IsRead = true })
	return c.fetchCounts()
}

// SetRead sets the read flag of the message with id.
func (c *Controller) SetRead(id string, read bool) tea.Cmd {
	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		err := p.SetRead(ctx, id, read)
		return flagUpdatedMsg{id: id, flag: flagRead, value: read, err: err}
	})
}

// ToggleRead flips the read flag of the message with id.
func (c *Controller) ToggleRead(id string) tea.Cmd {
	e, ok := c.find(id)
	if !ok {
		return nil
	}
	return c.SetRead(id, !e.IsRead)
}

// ToggleStar flips the star of the message with id. The listing and the
// selection take the value the provider reports.
func (c *Controller) ToggleStar(id string) tea.Cmd {
	e, ok := c.find(id)
	if !ok {
		return nil
	}
	current := e.IsStarred

	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		starred, err := p.SetStarred(ctx, id, current)
		return flagUpdatedMsg{id: id, flag: flagStarred, value: starred, err: err}
	})
}

func (c *Controller) applyFlag(msg flagUpdatedMsg) tea.Cmd {
	if msg.err != nil {
		c.fail(msg.err, "Failed to update")
		return nil
	}

	c.patch(msg.id, func(e *model.Email) {
		switch msg.flag {
		case flagRead:
			e.IsRead = msg.value
		case flagStarred:
			e.IsStarred = msg.value
		}
	})
	return c.fetchCounts()
}

// Trash moves the message with id to the trash.
func (c *Controller) Trash(id string) tea.Cmd {
	return c.remove(id, removeTrash)
}

// Purge deletes the message with id permanently.
func (c *Controller) Purge(id string) tea.Cmd {
	return c.remove(id, removePurge)
}

func (c *Controller) remove(id string, kind removal) tea.Cmd {
	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		var err error
		if kind == removePurge {
			err = p.Purge(ctx, id)
		} else {
			err = p.Trash(ctx, id)
		}
		return removedMsg{id: id, kind: kind, err: err}
	})
}

func (c *Controller) applyRemoval(msg removedMsg) tea.Cmd {
	if msg.err != nil {
		c.fail(msg.err, "Failed to delete")
		return nil
	}

	kept := c.state.Emails[:0:0]
	for _, e := range c.state.Emails {
		if e.ID() != msg.id {
			kept = append(kept, e)
		}
	}
	c.state.Emails = kept
	if c.state.Selected != nil && c.state.Selected.ID() == msg.id {
		c.state.Selected = nil
	}

	if msg.kind == removePurge {
		c.ShowToast("Permanently deleted", model.ToastSuccess)
	} else {
		c.ShowToast("Moved to trash", model.ToastSuccess)
	}
	return c.fetchCounts()
}
