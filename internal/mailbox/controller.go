// Package mailbox holds the canonical mailbox state and routes every
// operation to the provider chosen for the session.
package mailbox

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/webmail/internal/logging"
	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
	"github.com/nhle/webmail/internal/session"
	appsync "github.com/nhle/webmail/internal/sync"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultToastTTL = 3 * time.Second
)

// State is a snapshot of the mailbox as the UI renders it.
type State struct {
	Folder   string
	Emails   []model.Email
	Selected *model.Email

	Counts model.Counts
	// CountsAvailable is false when the provider cannot report counts;
	// Counts must not be shown as authoritative then.
	CountsAvailable bool

	Pagination   model.Pagination
	SearchQuery  string
	SearchFilter string
	Loading      bool

	DraftIntent *model.DraftIntent
	ComposeOpen bool
	Toast       *model.Toast
}

// Drafter generates message body text from a prompt.
type Drafter interface {
	Draft(ctx context.Context, prompt string) (string, error)
}

// Controller owns the mailbox state for one session and one provider.
//
// Operations and Update must be called from a single goroutine, the
// event loop. The tea.Cmd values they return perform I/O and may run on
// any goroutine; their results come back through Update, which applies
// them. A Controller is bound to one provider; relinking an account
// needs a new Controller.
type Controller struct {
	provider provider.Provider
	drafter  Drafter
	poller   *appsync.Poller
	logger   *slog.Logger
	timeout  time.Duration
	toastTTL time.Duration
	now      func() time.Time
	self     string
	folder   string
	onList   func(State)

	state State

	// view is the listing currently shown; tokens[i] fetched page i+1
	// of it under token pagination. pending is the latest listing
	// issued, which equals view once its response is applied.
	view    listRequest
	pending listRequest
	tokens  []string

	listSeq   uint64
	selectSeq uint64

	// original is the message the open compose surface answers.
	original *model.Email
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithToastTTL sets how long a toast stays visible.
func WithToastTTL(d time.Duration) Option {
	return func(c *Controller) { c.toastTTL = d }
}

// WithClock replaces time.Now for toast expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithDrafter enables AssistDraft.
func WithDrafter(d Drafter) Option {
	return func(c *Controller) { c.drafter = d }
}

// WithPoller re-lists the current view whenever p fires.
func WithPoller(p *appsync.Poller) Option {
	return func(c *Controller) { c.poller = p }
}

// WithFolder sets the folder Init lists. The default is the inbox.
func WithFolder(folder string) Option {
	return func(c *Controller) { c.folder = folder }
}

// OnListing calls fn with the new state after each applied listing,
// including background refreshes. fn runs on the owner goroutine.
func OnListing(fn func(State)) Option {
	return func(c *Controller) { c.onList = fn }
}

// WithSelfAddress sets the address excluded from reply-all prefill.
func WithSelfAddress(addr string) Option {
	return func(c *Controller) { c.self = addr }
}

// New creates a Controller over p, showing the inbox unless WithFolder
// says otherwise.
func New(p provider.Provider, opts ...Option) *Controller {
	c := &Controller{
		provider: p,
		timeout:  defaultTimeout,
		toastTTL: defaultToastTTL,
		now:      time.Now,
		folder:   model.FolderInbox,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("provider", string(p.Kind()))

	c.state.Folder = c.folder
	c.state.Pagination = model.Pagination{Page: 1, Pages: 1}
	c.view = listRequest{folder: c.folder, page: 1}
	c.pending = c.view
	return c
}

// Provider returns the provider the controller dispatches to.
func (c *Controller) Provider() provider.Provider {
	return c.provider
}

// Init loads the starting folder and the counts, and starts the poller
// if one is attached. With a poller, Run over Init returns only once the
// poller is stopped or the context ends.
func (c *Controller) Init() tea.Cmd {
	cmds := []tea.Cmd{c.OpenFolder(c.folder), c.fetchCounts()}
	if c.poller != nil {
		cmds = append(cmds, c.poller.Start())
	}
	return tea.Batch(cmds...)
}

// State returns a copy of the current state. An expired toast is
// reported as no toast.
func (c *Controller) State() State {
	s := c.state
	s.Emails = slices.Clone(c.state.Emails)
	if c.state.Selected != nil {
		sel := *c.state.Selected
		s.Selected = &sel
	}
	if c.state.DraftIntent != nil {
		intent := *c.state.DraftIntent
		s.DraftIntent = &intent
	}
	if c.state.Toast != nil {
		if c.state.Toast.Expired(c.now()) {
			s.Toast = nil
		} else {
			toast := *c.state.Toast
			s.Toast = &toast
		}
	}
	return s
}

// ShowToast replaces the visible toast.
func (c *Controller) ShowToast(message string, kind model.ToastKind) {
	c.state.Toast = &model.Toast{
		Message:   message,
		Kind:      kind,
		ExpiresAt: c.now().Add(c.toastTTL),
	}
}

// Update applies the result of a command and returns any follow-up
// command.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case listLoadedMsg:
		return c.applyList(msg)
	case emailLoadedMsg:
		return c.applySelection(msg)
	case countsLoadedMsg:
		c.applyCounts(msg)
	case flagUpdatedMsg:
		return c.applyFlag(msg)
	case removedMsg:
		return c.applyRemoval(msg)
	case composeDoneMsg:
		return c.applyCompose(msg)
	case draftAssistedMsg:
		c.applyAssist(msg)
	case appsync.PollMsg:
		cmds := []tea.Cmd{c.Refresh(), c.fetchCounts()}
		if c.poller != nil {
			cmds = append(cmds, c.poller.Wait())
		}
		return tea.Batch(cmds...)
	}
	return nil
}

// command wraps fn in a tea.Cmd with a per-call timeout.
func (c *Controller) command(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	timeout := c.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	}
}

// fail reports err as an error toast.
func (c *Controller) fail(err error, fallback string) {
	c.logger.Warn(fallback, "error", err)
	c.ShowToast(errorText(err, fallback), model.ToastError)
}

// errorText picks the message shown for err: a session notice, the
// server's message, or fallback.
func errorText(err error, fallback string) string {
	if errors.Is(err, session.ErrSessionInvalid) {
		return "Your session has expired. Please sign in again."
	}
	return session.UserMessage(err, fallback)
}

// find returns the message with id from the listing, or the selection.
func (c *Controller) find(id string) (model.Email, bool) {
	for _, e := range c.state.Emails {
		if e.ID() == id {
			return e, true
		}
	}
	if c.state.Selected != nil && c.state.Selected.ID() == id {
		return *c.state.Selected, true
	}
	return model.Email{}, false
}

// patch applies fn to the listed message and the selection with id, so
// both always agree.
func (c *Controller) patch(id string, fn func(*model.Email)) {
	for i := range c.state.Emails {
		if c.state.Emails[i].ID() == id {
			fn(&c.state.Emails[i])
		}
	}
	if c.state.Selected != nil && c.state.Selected.ID() == id {
		fn(c.state.Selected)
	}
}
