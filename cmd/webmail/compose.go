package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/webmail/internal/compose"
	"github.com/nhle/webmail/internal/mailbox"
	"github.com/nhle/webmail/internal/model"
)

// composeFlags are shared by send, reply and forward.
type composeFlags struct {
	to, cc, bcc string
	subject     string
	body        string
	prompt      string
	draft       bool
}

func (f *composeFlags) register(fs *flag.FlagSet, withHeaders bool) {
	if withHeaders {
		fs.StringVar(&f.to, "to", "", "comma-separated recipients")
		fs.StringVar(&f.cc, "cc", "", "comma-separated carbon copies")
		fs.StringVar(&f.bcc, "bcc", "", "comma-separated blind copies")
		fs.StringVar(&f.subject, "subject", "", "subject line")
		fs.BoolVar(&f.draft, "draft", false, "save as a draft instead of sending")
	}
	fs.StringVar(&f.body, "body", "", "message body; prompts when empty")
	fs.StringVar(&f.prompt, "ai", "", "ask the assistant to write the body from this prompt")
}

// edit fills the fields the flags left empty with an interactive form,
// starting from the open compose surface.
func (f *composeFlags) edit(ctx context.Context, c *mailbox.Controller, withHeaders bool) error {
	if f.prompt != "" {
		if err := step(ctx, c, c.AssistDraft(f.prompt)); err != nil {
			return err
		}
	}
	intent := c.State().DraftIntent
	if intent != nil {
		if f.subject == "" {
			f.subject = intent.Subject
		}
		if f.to == "" {
			f.to = strings.Join(intent.To, ", ")
		}
		if f.body == "" {
			f.body = intent.Body
		}
	}

	var fields []huh.Field
	if withHeaders {
		fields = append(fields,
			huh.NewInput().Title("To").Value(&f.to).Validate(validateRecipients(true)),
			huh.NewInput().Title("Cc").Value(&f.cc).Validate(validateRecipients(false)),
			huh.NewInput().Title("Subject").Value(&f.subject),
		)
	}
	fields = append(fields, huh.NewText().Title("Body").Lines(12).Value(&f.body))
	return huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx)
}

func validateRecipients(required bool) func(string) error {
	return func(s string) error {
		addrs, err := compose.ParseRecipients(s)
		if err != nil {
			return err
		}
		if required && len(addrs) == 0 {
			return fmt.Errorf("at least one recipient is required")
		}
		return nil
	}
}

func (f *composeFlags) draftValue() (model.Draft, error) {
	to, err := compose.ParseRecipients(f.to)
	if err != nil {
		return model.Draft{}, err
	}
	cc, err := compose.ParseRecipients(f.cc)
	if err != nil {
		return model.Draft{}, err
	}
	bcc, err := compose.ParseRecipients(f.bcc)
	if err != nil {
		return model.Draft{}, err
	}
	return model.Draft{To: to, Cc: cc, Bcc: bcc, Subject: f.subject, Body: f.body}, nil
}

// submit sends the draft through the open compose surface and prints
// the outcome.
func (a *app) submit(ctx context.Context, c *mailbox.Controller, f *composeFlags) error {
	draft, err := f.draftValue()
	if err != nil {
		return err
	}
	if f.draft {
		err = step(ctx, c, c.SaveDraft(draft))
	} else {
		if err := compose.ValidateDraft(draft.To, draft.Cc, draft.Bcc); err != nil {
			return err
		}
		err = step(ctx, c, c.SubmitCompose(draft))
	}
	if err != nil {
		return err
	}
	a.printToast(c)
	return nil
}

func runSend(ctx context.Context, a *app, args []string) error {
	var f composeFlags
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	f.register(fs, true)
	_ = fs.Parse(args)

	c, err := a.controller(ctx)
	if err != nil {
		return err
	}
	c.OpenCompose()
	if f.to == "" || f.body == "" {
		if err := f.edit(ctx, c, true); err != nil {
			return err
		}
	} else if f.prompt != "" {
		if err := step(ctx, c, c.AssistDraft(f.prompt)); err != nil {
			return err
		}
		f.body = c.State().DraftIntent.Body
	}
	return a.submit(ctx, c, &f)
}

func runReply(ctx context.Context, a *app, args []string) error {
	var f composeFlags
	var all *bool
	c, id, err := withMessage(ctx, a, "reply", args, func(fs *flag.FlagSet) {
		f.register(fs, false)
		all = fs.Bool("all", false, "reply to every recipient")
	})
	if err != nil {
		return err
	}

	if *all {
		c.OpenReplyAll(id)
	} else {
		c.OpenReply(id)
	}
	if !c.State().ComposeOpen {
		return fmt.Errorf("message %s not found", id)
	}
	if f.body == "" {
		if err := f.edit(ctx, c, false); err != nil {
			return err
		}
	}
	// Recipients come from the original message.
	if err := step(ctx, c, c.SubmitCompose(model.Draft{Subject: f.subject, Body: f.body})); err != nil {
		return err
	}
	a.printToast(c)
	return nil
}

func runForward(ctx context.Context, a *app, args []string) error {
	var f composeFlags
	c, id, err := withMessage(ctx, a, "forward", args, func(fs *flag.FlagSet) {
		f.register(fs, false)
		fs.StringVar(&f.to, "to", "", "comma-separated recipients")
	})
	if err != nil {
		return err
	}

	c.OpenForward(id)
	if !c.State().ComposeOpen {
		return fmt.Errorf("message %s not found", id)
	}
	if f.to == "" || f.body == "" {
		if err := f.edit(ctx, c, true); err != nil {
			return err
		}
	}
	return a.submit(ctx, c, &f)
}
