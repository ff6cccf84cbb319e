package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/webmail/internal/compose"
	"github.com/nhle/webmail/internal/mailbox"
	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/session"
	appsync "github.com/nhle/webmail/internal/sync"
	"github.com/nhle/webmail/internal/theme"
)

// messageOf returns the text shown for a failed call.
func messageOf(err error, fallback string) string {
	if errors.Is(err, session.ErrSessionInvalid) {
		return "Your session has expired. Please sign in again."
	}
	return session.UserMessage(err, fallback)
}

// step runs cmd to completion and turns an error toast into an error.
func step(ctx context.Context, c *mailbox.Controller, cmd tea.Cmd) error {
	if err := c.Run(ctx, cmd); err != nil {
		return err
	}
	if t := c.State().Toast; t != nil && t.Kind == model.ToastError {
		return errors.New(t.Message)
	}
	return nil
}

// open builds a controller, loads the counts and page of folder.
func open(ctx context.Context, a *app, folder string, page int) (*mailbox.Controller, error) {
	c, err := a.controller(ctx, mailbox.WithFolder(folder))
	if err != nil {
		return nil, err
	}
	if err := step(ctx, c, c.Init()); err != nil {
		return nil, err
	}

	// Token-paged listings are only reachable one page at a time.
	for c.State().Pagination.Page < page {
		cmd := c.GoToPage(page)
		if cmd == nil {
			cmd = c.NextPage()
		}
		if cmd == nil {
			break
		}
		if err := step(ctx, c, cmd); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (a *app) printListing(c *mailbox.Controller) {
	s := c.State()
	title := "Mailbox"
	if s.Folder != "" {
		title = strings.ToUpper(s.Folder[:1]) + s.Folder[1:]
	}
	if s.SearchQuery != "" {
		title = fmt.Sprintf("Search: %q", s.SearchQuery)
	}
	fmt.Fprintln(a.out, theme.HeaderStyle.Render(title))

	if len(s.Emails) == 0 {
		fmt.Fprintln(a.out, theme.HelpStyle.Render("No messages"))
	}
	for _, e := range s.Emails {
		fmt.Fprintf(a.out, "%s  %s\n", theme.HelpStyle.Render(e.ID()), theme.EmailRow(e, 80))
	}
	fmt.Fprintln(a.out, theme.PageFooter(s.Pagination, counted(c)))
	if s.CountsAvailable {
		fmt.Fprintln(a.out, theme.HelpStyle.Render(fmt.Sprintf(
			"inbox %d (%d unread) · starred %d · drafts %d · trash %d",
			s.Counts.Inbox, s.Counts.Unread, s.Counts.Starred, s.Counts.Drafts, s.Counts.Trash,
		)))
	}
}

func (a *app) printToast(c *mailbox.Controller) {
	if t := c.State().Toast; t != nil {
		fmt.Fprintln(a.out, theme.ToastStyle(t.Kind).Render(t.Message))
	}
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	folder := fs.String("folder", model.FolderInbox, "folder to list")
	page := fs.Int("page", 1, "page number")
	_ = fs.Parse(args)

	c, err := open(ctx, a, *folder, *page)
	if err != nil {
		return err
	}
	a.printListing(c)
	return nil
}

func runSearch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	filter := fs.String("filter", "", "unread or starred")
	folder := fs.String("folder", model.FolderInbox, "folder searched by providers that scope search")
	_ = fs.Parse(args)

	c, err := open(ctx, a, *folder, 1)
	if err != nil {
		return err
	}
	if err := step(ctx, c, c.Search(strings.Join(fs.Args(), " "), *filter)); err != nil {
		return err
	}
	a.printListing(c)
	return nil
}

// withMessage parses "<id> [flags]" and loads the folder holding it.
func withMessage(
	ctx context.Context,
	a *app,
	name string,
	args []string,
	define func(fs *flag.FlagSet),
) (*mailbox.Controller, string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	folder := fs.String("folder", model.FolderInbox, "folder holding the message")
	if define != nil {
		define(fs)
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return nil, "", fmt.Errorf("usage: webmail %s <id> [flags]", name)
	}
	id := args[0]
	_ = fs.Parse(args[1:])

	c, err := open(ctx, a, *folder, 1)
	if err != nil {
		return nil, "", err
	}
	return c, id, nil
}

func runRead(ctx context.Context, a *app, args []string) error {
	c, id, err := withMessage(ctx, a, "read", args, nil)
	if err != nil {
		return err
	}
	if err := step(ctx, c, c.Select(id)); err != nil {
		return err
	}
	e := c.State().Selected
	if e == nil {
		return fmt.Errorf("message %s not found", id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From:    %s <%s>\n", e.Sender(), e.From)
	fmt.Fprintf(&b, "To:      %s\n", strings.Join(e.To, ", "))
	if len(e.Cc) > 0 {
		fmt.Fprintf(&b, "Cc:      %s\n", strings.Join(e.Cc, ", "))
	}
	fmt.Fprintf(&b, "Date:    %s\n", e.SentAt.Local().Format(time.RFC1123))
	fmt.Fprintf(&b, "Subject: %s\n\n", e.Subject)
	b.WriteString(compose.HTMLToText(e.BodyHTML))

	fmt.Fprintln(a.out, theme.MessagePanelStyle.Render(b.String()))
	return nil
}

func runStar(ctx context.Context, a *app, args []string) error {
	c, id, err := withMessage(ctx, a, "star", args, nil)
	if err != nil {
		return err
	}
	if err := step(ctx, c, c.ToggleStar(id)); err != nil {
		return err
	}
	for _, e := range c.State().Emails {
		if e.ID() == id {
			fmt.Fprintf(a.out, "starred: %t\n", e.IsStarred)
		}
	}
	return nil
}

func runMark(ctx context.Context, a *app, args []string) error {
	var unread *bool
	c, id, err := withMessage(ctx, a, "mark", args, func(fs *flag.FlagSet) {
		unread = fs.Bool("unread", false, "mark unread instead")
	})
	if err != nil {
		return err
	}
	return step(ctx, c, c.SetRead(id, !*unread))
}

func runTrash(ctx context.Context, a *app, args []string) error {
	c, id, err := withMessage(ctx, a, "trash", args, nil)
	if err != nil {
		return err
	}
	if err := step(ctx, c, c.Trash(id)); err != nil {
		return err
	}
	a.printToast(c)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	c, id, err := withMessage(ctx, a, "delete", args, nil)
	if err != nil {
		return err
	}
	if err := step(ctx, c, c.Purge(id)); err != nil {
		return err
	}
	a.printToast(c)
	return nil
}

// runWatch prints the folder listing each time it is loaded, first by
// Init and then by every poll until ctx ends.
func runWatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	folder := fs.String("folder", model.FolderInbox, "folder to watch")
	interval := fs.Duration("interval", a.cfg.Mailbox.PollInterval, "poll interval")
	_ = fs.Parse(args)

	poller := appsync.New(*interval)
	defer poller.Stop()

	var (
		c     *mailbox.Controller
		shown int
	)
	c, err := a.controller(ctx,
		mailbox.WithFolder(*folder),
		mailbox.WithPoller(poller),
		mailbox.OnListing(func(mailbox.State) {
			if shown > 0 {
				fmt.Fprintln(a.out)
			}
			shown++
			a.printListing(c)
		}),
	)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		poller.Stop()
	}()

	// Failed loads are logged by the controller and retried on the
	// next poll.
	return c.Run(ctx, c.Init())
}
