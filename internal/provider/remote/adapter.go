package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/nhle/webmail/internal/compose"
	"github.com/nhle/webmail/internal/logging"
	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
)

// defaultPageSize is used when no page size is configured.
const defaultPageSize = 20

// Adapter implements provider.Provider against the linked provider proxy.
//
// The proxy only lists and sends. Flag changes, trash and purge are
// applied to the caller's cached state and never reach the provider, so
// they can drift from the provider's view until the listing is fetched
// again.
type Adapter struct {
	api      provider.API
	self     string
	pageSize int
	logger   *slog.Logger
}

// NewAdapter creates a provider proxy adapter. self is the linked
// provider address, excluded from reply-all recipients.
func NewAdapter(
	api provider.API,
	self string,
	pageSize int,
	logger *slog.Logger,
) *Adapter {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return &Adapter{
		api:      api,
		self:     self,
		pageSize: pageSize,
		logger:   logging.OrDiscard(logger),
	}
}

// Kind returns provider.KindRemote.
func (a *Adapter) Kind() provider.Kind {
	return provider.KindRemote
}

// ListFolder retrieves the page of folder addressed by cur.Token.
func (a *Adapter) ListFolder(
	ctx context.Context,
	folder string,
	cur provider.Cursor,
) (*provider.Page, error) {
	params := a.pageParams(cur)
	params.Set("folder", folder)

	var resp ListResponse
	if err := a.api.Get(ctx, "/provider/messages", params, &resp); err != nil {
		return nil, fmt.Errorf("listing provider folder %s: %w", folder, err)
	}
	return toPage(resp, folder, cur), nil
}

// Search runs query at the provider. The unread and starred filters are
// expressed in the provider's query syntax.
func (a *Adapter) Search(
	ctx context.Context,
	query string,
	filter string,
	cur provider.Cursor,
) (*provider.Page, error) {
	params := a.pageParams(cur)
	switch filter {
	case "unread":
		query = strings.TrimSpace(query + " is:unread")
	case "starred":
		query = strings.TrimSpace(query + " is:starred")
	}
	params.Set("q", query)

	var resp ListResponse
	if err := a.api.Get(ctx, "/provider/messages", params, &resp); err != nil {
		return nil, fmt.Errorf("searching provider for %q: %w", query, err)
	}
	return toPage(resp, "", cur), nil
}

// Get is not available; listings already carry full messages.
func (a *Adapter) Get(_ context.Context, _ string) (*model.Email, error) {
	return nil, provider.ErrUnsupported
}

// Send delivers draft through the provider.
func (a *Adapter) Send(ctx context.Context, draft model.Draft) error {
	return a.send(ctx, SendRequest{
		To:      draft.To,
		Cc:      draft.Cc,
		Bcc:     draft.Bcc,
		Subject: draft.Subject,
		Body:    draft.Body,
	})
}

// SaveDraft stores draft in the mail store's drafts folder; the provider
// proxy has no draft endpoint.
func (a *Adapter) SaveDraft(ctx context.Context, draft model.Draft) error {
	if err := a.api.Post(ctx, "/emails/draft", draft, nil); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

// Reply answers original in its provider thread.
func (a *Adapter) Reply(
	ctx context.Context,
	original model.Email,
	body string,
	all bool,
) error {
	to := []string{original.From}
	if all {
		to = compose.ReplyAllRecipients(original, a.self)
	}
	return a.send(ctx, SendRequest{
		To:        to,
		Subject:   compose.PrefixSubject(compose.ReplyPrefix, original.Subject),
		Body:      body,
		InReplyTo: original.MessageID,
		ThreadID:  original.ThreadID,
	})
}

// Forward sends original to new recipients as a new thread.
func (a *Adapter) Forward(
	ctx context.Context,
	original model.Email,
	to []string,
	body string,
) error {
	return a.send(ctx, SendRequest{
		To:      to,
		Subject: compose.PrefixSubject(compose.ForwardPrefix, original.Subject),
		Body:    body,
	})
}

// SetRead is applied locally only.
func (a *Adapter) SetRead(_ context.Context, id string, read bool) error {
	a.logger.Debug("read flag kept local", "id", id, "read", read)
	return nil
}

// SetStarred flips current locally; the provider is not told.
func (a *Adapter) SetStarred(
	_ context.Context,
	id string,
	current bool,
) (bool, error) {
	a.logger.Debug("star flag kept local", "id", id, "starred", !current)
	return !current, nil
}

// Trash is applied locally only.
func (a *Adapter) Trash(_ context.Context, id string) error {
	a.logger.Debug("trash kept local", "id", id)
	return nil
}

// Purge is applied locally only.
func (a *Adapter) Purge(_ context.Context, id string) error {
	a.logger.Debug("purge kept local", "id", id)
	return nil
}

// Counts is not available from the provider.
func (a *Adapter) Counts(_ context.Context) (model.Counts, error) {
	return model.Counts{}, provider.ErrUnsupported
}

func (a *Adapter) send(ctx context.Context, req SendRequest) error {
	if err := a.api.Post(ctx, "/provider/send", req, nil); err != nil {
		return fmt.Errorf("sending through provider: %w", err)
	}
	return nil
}

func (a *Adapter) pageParams(cur provider.Cursor) url.Values {
	params := url.Values{"maxResults": {strconv.Itoa(a.pageSize)}}
	if cur.Token != "" {
		params.Set("pageToken", cur.Token)
	}
	return params
}

func toPage(resp ListResponse, folder string, cur provider.Cursor) *provider.Page {
	page := cur.Page
	if page < 1 {
		page = 1
	}

	emails := make([]model.Email, 0, len(resp.Emails))
	for _, e := range resp.Emails {
		emails = append(emails, e.ToModel(folder))
	}

	p := model.Pagination{
		Page:  page,
		Pages: page,
		Total: len(emails),
	}
	if resp.NextPageToken != nil && *resp.NextPageToken != "" {
		p.HasMore = true
		p.NextToken = *resp.NextPageToken
		p.Pages = page + 1
	}
	return &provider.Page{Emails: emails, Pagination: p}
}

var _ provider.Provider = (*Adapter)(nil)
