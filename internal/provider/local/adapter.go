package local

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
)

// defaultPageSize is used when no page size is configured.
const defaultPageSize = 20

// Adapter implements provider.Provider against the owned mail store.
// Every operation maps to one store endpoint.
type Adapter struct {
	api      provider.API
	pageSize int
}

// NewAdapter creates a mail store adapter.
func NewAdapter(api provider.API, pageSize int) *Adapter {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return &Adapter{api: api, pageSize: pageSize}
}

// Kind returns provider.KindLocal.
func (a *Adapter) Kind() provider.Kind {
	return provider.KindLocal
}

// ListFolder retrieves one page of folder via
// GET /emails/folder/{folder}?page&limit.
func (a *Adapter) ListFolder(
	ctx context.Context,
	folder string,
	cur provider.Cursor,
) (*provider.Page, error) {
	params := a.pageParams(cur)

	var resp ListResponse
	path := "/emails/folder/" + url.PathEscape(folder)
	if err := a.api.Get(ctx, path, params, &resp); err != nil {
		return nil, fmt.Errorf("listing folder %s: %w", folder, err)
	}
	return toPage(resp), nil
}

// Search finds messages via GET /emails/search?q&filter&page&limit.
func (a *Adapter) Search(
	ctx context.Context,
	query string,
	filter string,
	cur provider.Cursor,
) (*provider.Page, error) {
	params := a.pageParams(cur)
	params.Set("q", query)
	if filter != "" {
		params.Set("filter", filter)
	}

	var resp ListResponse
	if err := a.api.Get(ctx, "/emails/search", params, &resp); err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	return toPage(resp), nil
}

// Get fetches one message. The store marks it read.
func (a *Adapter) Get(ctx context.Context, id string) (*model.Email, error) {
	var resp EmailResponse
	if err := a.api.Get(ctx, emailPath(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching email %s: %w", id, err)
	}
	e := resp.Email.ToModel()
	return &e, nil
}

// Send delivers a new message via POST /emails/send.
func (a *Adapter) Send(ctx context.Context, draft model.Draft) error {
	if err := a.api.Post(ctx, "/emails/send", draft, nil); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

// SaveDraft stores draft via POST /emails/draft.
func (a *Adapter) SaveDraft(ctx context.Context, draft model.Draft) error {
	if err := a.api.Post(ctx, "/emails/draft", draft, nil); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

// Reply answers original via POST /emails/{id}/reply. The store derives
// recipients and subject from the original.
func (a *Adapter) Reply(
	ctx context.Context,
	original model.Email,
	body string,
	all bool,
) error {
	req := replyRequest{Body: body, ReplyAll: all}
	if err := a.api.Post(ctx, emailPath(original.LocalID)+"/reply", req, nil); err != nil {
		return fmt.Errorf("replying to %s: %w", original.LocalID, err)
	}
	return nil
}

// Forward sends original to new recipients via POST /emails/{id}/forward.
func (a *Adapter) Forward(
	ctx context.Context,
	original model.Email,
	to []string,
	body string,
) error {
	req := forwardRequest{To: to, Body: body}
	if err := a.api.Post(ctx, emailPath(original.LocalID)+"/forward", req, nil); err != nil {
		return fmt.Errorf("forwarding %s: %w", original.LocalID, err)
	}
	return nil
}

// SetRead sets the read flag via PUT /emails/{id}/read.
func (a *Adapter) SetRead(ctx context.Context, id string, read bool) error {
	if err := a.api.Put(ctx, emailPath(id)+"/read", readRequest{IsRead: read}, nil); err != nil {
		return fmt.Errorf("marking %s read=%t: %w", id, read, err)
	}
	return nil
}

// SetStarred toggles the star via PUT /emails/{id}/star. The returned
// value is the one the store reports, not a prediction from current.
func (a *Adapter) SetStarred(
	ctx context.Context,
	id string,
	_ bool,
) (bool, error) {
	var resp EmailResponse
	if err := a.api.Put(ctx, emailPath(id)+"/star", nil, &resp); err != nil {
		return false, fmt.Errorf("toggling star on %s: %w", id, err)
	}
	return resp.Email.IsStarred, nil
}

// Trash moves a message to the trash via PUT /emails/{id}/trash.
func (a *Adapter) Trash(ctx context.Context, id string) error {
	if err := a.api.Put(ctx, emailPath(id)+"/trash", nil, nil); err != nil {
		return fmt.Errorf("trashing %s: %w", id, err)
	}
	return nil
}

// Purge deletes a message via DELETE /emails/{id}.
func (a *Adapter) Purge(ctx context.Context, id string) error {
	if err := a.api.Delete(ctx, emailPath(id), nil); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	return nil
}

// Counts returns folder totals via GET /emails/counts.
func (a *Adapter) Counts(ctx context.Context) (model.Counts, error) {
	var counts model.Counts
	if err := a.api.Get(ctx, "/emails/counts", nil, &counts); err != nil {
		return model.Counts{}, fmt.Errorf("fetching counts: %w", err)
	}
	return counts, nil
}

func (a *Adapter) pageParams(cur provider.Cursor) url.Values {
	page := cur.Page
	if page < 1 {
		page = 1
	}
	return url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(a.pageSize)},
	}
}

func emailPath(id string) string {
	return "/emails/" + url.PathEscape(id)
}

func toPage(resp ListResponse) *provider.Page {
	emails := make([]model.Email, 0, len(resp.Emails))
	for _, e := range resp.Emails {
		emails = append(emails, e.ToModel())
	}
	return &provider.Page{
		Emails: emails,
		Pagination: model.Pagination{
			Page:    resp.Pagination.Page,
			Pages:   resp.Pagination.Pages,
			Total:   resp.Pagination.Total,
			HasMore: resp.Pagination.HasMore,
		},
	}
}

var _ provider.Provider = (*Adapter)(nil)
