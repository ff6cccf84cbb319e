package mailbox

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/webmail/internal/ai"
	"github.com/nhle/webmail/internal/compose"
	"github.com/nhle/webmail/internal/model"
)

// OpenCompose opens a blank compose surface.
func (c *Controller) OpenCompose() {
	c.openCompose(compose.NewIntent(), nil)
}

// OpenReply opens the compose surface answering the message with id.
func (c *Controller) OpenReply(id string) {
	if e, ok := c.lookup(id); ok {
		c.openCompose(compose.ReplyIntent(e), &e)
	}
}

// OpenReplyAll opens the compose surface answering everyone on the
// message with id.
func (c *Controller) OpenReplyAll(id string) {
	if e, ok := c.lookup(id); ok {
		c.openCompose(compose.ReplyAllIntent(e, c.self), &e)
	}
}

// OpenForward opens the compose surface forwarding the message with id.
func (c *Controller) OpenForward(id string) {
	if e, ok := c.lookup(id); ok {
		c.openCompose(compose.ForwardIntent(e), &e)
	}
}

// CloseCompose discards the compose surface.
func (c *Controller) CloseCompose() {
	c.state.ComposeOpen = false
	c.state.DraftIntent = nil
	c.original = nil
}

func (c *Controller) openCompose(intent model.DraftIntent, original *model.Email) {
	c.state.DraftIntent = &intent
	c.state.ComposeOpen = true
	c.original = original
}

// lookup finds id like find and reports a miss as an error toast.
func (c *Controller) lookup(id string) (model.Email, bool) {
	if c.original != nil && c.original.ID() == id {
		return *c.original, true
	}
	e, ok := c.find(id)
	if !ok {
		c.ShowToast("Email is no longer available", model.ToastError)
	}
	return e, ok
}

// SubmitCompose sends draft according to the open compose surface: a
// new message, a reply, a reply to all, or a forward.
func (c *Controller) SubmitCompose(draft model.Draft) tea.Cmd {
	intent := c.state.DraftIntent
	if intent == nil || intent.Mode == model.ComposeNew || c.original == nil {
		return c.Send(draft)
	}

	id := c.original.ID()
	switch intent.Mode {
	case model.ComposeReply:
		return c.Reply(id, draft.Body)
	case model.ComposeReplyAll:
		return c.ReplyAll(id, draft.Body)
	case model.ComposeForward:
		return c.Forward(id, draft.To, draft.Body)
	}
	return c.Send(draft)
}

// Send delivers a new message.
func (c *Controller) Send(draft model.Draft) tea.Cmd {
	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		return composeDoneMsg{op: opSend, err: p.Send(ctx, draft)}
	})
}

// SaveDraft stores draft in the drafts folder.
func (c *Controller) SaveDraft(draft model.Draft) tea.Cmd {
	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		return composeDoneMsg{op: opSaveDraft, err: p.SaveDraft(ctx, draft)}
	})
}

// Reply answers the sender of the message with id.
func (c *Controller) Reply(id, body string) tea.Cmd {
	return c.reply(id, body, false)
}

// ReplyAll answers every recipient of the message with id.
func (c *Controller) ReplyAll(id, body string) tea.Cmd {
	return c.reply(id, body, true)
}

func (c *Controller) reply(id, body string, all bool) tea.Cmd {
	original, ok := c.lookup(id)
	if !ok {
		return nil
	}

	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		return composeDoneMsg{op: opReply, err: p.Reply(ctx, original, body, all)}
	})
}

// Forward sends the message with id to new recipients.
func (c *Controller) Forward(id string, to []string, body string) tea.Cmd {
	original, ok := c.lookup(id)
	if !ok {
		return nil
	}

	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		return composeDoneMsg{op: opForward, err: p.Forward(ctx, original, to, body)}
	})
}

var composeText = map[composeOp]struct{ ok, failed, folder string }{
	opSend:      {"Email sent!", "Failed to send email", model.FolderSent},
	opSaveDraft: {"Draft saved", "Failed to save draft", model.FolderDrafts},
	opReply:     {"Reply sent!", "Failed to send reply", model.FolderSent},
	opForward:   {"Email forwarded!", "Failed to forward", model.FolderSent},
}

func (c *Controller) applyCompose(msg composeDoneMsg) tea.Cmd {
	text := composeText[msg.op]
	if msg.err != nil {
		c.fail(msg.err, text.failed)
		return nil
	}

	c.CloseCompose()
	c.ShowToast(text.ok, model.ToastSuccess)

	cmds := []tea.Cmd{c.fetchCounts()}
	if c.state.Folder == text.folder && c.state.SearchQuery == "" {
		cmds = append(cmds, c.Refresh())
	}
	return tea.Batch(cmds...)
}

// AssistDraft asks the drafter for body text and appends it to the open
// compose surface.
func (c *Controller) AssistDraft(prompt string) tea.Cmd {
	if c.drafter == nil {
		c.ShowToast("AI drafting is not available", model.ToastError)
		return nil
	}

	d := c.drafter
	return c.command(func(ctx context.Context) tea.Msg {
		text, err := d.Draft(ctx, prompt)
		return draftAssistedMsg{text: text, err: err}
	})
}

func (c *Controller) applyAssist(msg draftAssistedMsg) {
	if msg.err != nil {
		c.fail(msg.err, "AI draft failed")
		return
	}
	if c.state.DraftIntent == nil {
		c.logger.Debug("dropping generated draft, compose closed")
		return
	}
	c.state.DraftIntent.Body = ai.AppendDraft(c.state.DraftIntent.Body, msg.text)
}
