package provider

import (
	"context"
	"errors"
	"net/url"

	"github.com/nhle/webmail/internal/model"
)

// ErrUnsupported is returned by operations a backend cannot perform.
// Callers fall back to cached state rather than treating it as a failure.
var ErrUnsupported = errors.New("operation not supported by this provider")

// Kind identifies the backend behind a Provider.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Cursor selects the page to fetch. Local providers read Page; remote
// providers read Token, where an empty Token means the first page.
type Cursor struct {
	Page  int
	Token string
}

// Page is one page of a folder listing or search.
type Page struct {
	Emails     []model.Email
	Pagination model.Pagination
}

// Provider is the mailbox operation contract shared by the locally owned
// store and the third-party provider proxy.
type Provider interface {
	// Kind returns the backend identifier.
	Kind() Kind

	// ListFolder retrieves one page of a folder.
	ListFolder(ctx context.Context, folder string, cur Cursor) (*Page, error)

	// Search finds messages matching query. Filter narrows the match
	// ("all", "unread", "starred"); backends may ignore it.
	Search(
		ctx context.Context,
		query string,
		filter string,
		cur Cursor,
	) (*Page, error)

	// Get fetches a single message by id.
	Get(ctx context.Context, id string) (*model.Email, error)

	// Send delivers a new message.
	Send(ctx context.Context, draft model.Draft) error

	// SaveDraft stores an unsent message in the drafts folder.
	SaveDraft(ctx context.Context, draft model.Draft) error

	// Reply answers original. With all set, every original recipient
	// except the account itself is included.
	Reply(
		ctx context.Context,
		original model.Email,
		body string,
		all bool,
	) error

	// Forward sends original to new recipients with body prepended.
	Forward(
		ctx context.Context,
		original model.Email,
		to []string,
		body string,
	) error

	// SetRead sets the read flag.
	SetRead(ctx context.Context, id string, read bool) error

	// SetStarred flips the star flag of a message whose current value is
	// current and returns the resulting value.
	SetStarred(ctx context.Context, id string, current bool) (bool, error)

	// Trash moves a message to the trash folder.
	Trash(ctx context.Context, id string) error

	// Purge deletes a message permanently.
	Purge(ctx context.Context, id string) error

	// Counts returns per-folder totals.
	Counts(ctx context.Context) (model.Counts, error)
}

// API is the authenticated request surface adapters call through.
// *session.Client satisfies it.
type API interface {
	Get(ctx context.Context, path string, params url.Values, result interface{}) error
	Post(ctx context.Context, path string, body interface{}, result interface{}) error
	Put(ctx context.Context, path string, body interface{}, result interface{}) error
	Delete(ctx context.Context, path string, result interface{}) error
}
