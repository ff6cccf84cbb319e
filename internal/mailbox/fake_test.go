package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
	"github.com/nhle/webmail/internal/session"
)

// fakeProvider is an in-memory provider. As KindLocal it paginates by
// page number and owns flags; as KindRemote it paginates with
// "off:<n>" tokens and keeps flags with the caller.
type fakeProvider struct {
	kind     provider.Kind
	pageSize int

	mu       sync.Mutex
	folders  map[string][]model.Email
	listErr  map[string]error
	sendErr  error
	lists    []provider.Cursor
	searches []string
	sent     []model.Draft
	replies  []string
	forwards []string
}

func newFakeProvider(kind provider.Kind) *fakeProvider {
	return &fakeProvider{
		kind:     kind,
		pageSize: 20,
		folders:  map[string][]model.Email{},
		listErr:  map[string]error{},
	}
}

// fill appends n messages to folder.
func (f *fakeProvider) fill(folder string, n int) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	offset := len(f.folders[folder])
	for i := offset; i < offset+n; i++ {
		e := model.Email{
			Folder:   folder,
			From:     "bob@example.com",
			To:       []string{"me@example.com"},
			Subject:  fmt.Sprintf("%s %d", folder, i),
			BodyHTML: "<p>body</p>",
			SentAt:   base.Add(time.Duration(i) * time.Minute),
			ThreadID: fmt.Sprintf("t-%s-%d", folder, i),
		}
		id := fmt.Sprintf("%s-%d", folder, i)
		if f.kind == provider.KindRemote {
			e.RemoteID = id
		} else {
			e.LocalID = id
		}
		f.folders[folder] = append(f.folders[folder], e)
	}
}

func (f *fakeProvider) Kind() provider.Kind { return f.kind }

func (f *fakeProvider) ListFolder(
	_ context.Context,
	folder string,
	cur provider.Cursor,
) (*provider.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lists = append(f.lists, cur)
	if err := f.listErr[folder]; err != nil {
		return nil, err
	}
	return f.paginate(f.folders[folder], cur), nil
}

func (f *fakeProvider) Search(
	_ context.Context,
	query string,
	_ string,
	cur provider.Cursor,
) (*provider.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.searches = append(f.searches, query)
	var hits []model.Email
	for _, folder := range model.Folders {
		for _, e := range f.folders[folder] {
			if strings.Contains(e.Subject, query) {
				hits = append(hits, e)
			}
		}
	}
	return f.paginate(hits, cur), nil
}

func (f *fakeProvider) paginate(items []model.Email, cur provider.Cursor) *provider.Page {
	page := max(cur.Page, 1)

	start := (page - 1) * f.pageSize
	if f.kind == provider.KindRemote {
		start, _ = strconv.Atoi(strings.TrimPrefix(cur.Token, "off:"))
	}
	start = min(start, len(items))
	end := min(start+f.pageSize, len(items))

	out := append([]model.Email(nil), items[start:end]...)
	if f.kind == provider.KindRemote {
		p := model.Pagination{Page: page, Pages: page, Total: len(out)}
		if end < len(items) {
			p.HasMore = true
			p.NextToken = "off:" + strconv.Itoa(end)
			p.Pages = page + 1
		}
		return &provider.Page{Emails: out, Pagination: p}
	}

	pages := max((len(items)+f.pageSize-1)/f.pageSize, 1)
	return &provider.Page{
		Emails: out,
		Pagination: model.Pagination{
			Page: page, Pages: pages, Total: len(items), HasMore: page < pages,
		},
	}
}

// locate returns a pointer to the stored message with id.
func (f *fakeProvider) locate(id string) *model.Email {
	for folder := range f.folders {
		for i := range f.folders[folder] {
			if f.folders[folder][i].ID() == id {
				return &f.folders[folder][i]
			}
		}
	}
	return nil
}

func (f *fakeProvider) Get(_ context.Context, id string) (*model.Email, error) {
	if f.kind == provider.KindRemote {
		return nil, provider.ErrUnsupported
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	e := f.locate(id)
	if e == nil {
		return nil, &session.HTTPError{Status: 404, Code: session.CodeNotFound, Message: "Email not found"}
	}
	e.IsRead = true
	out := *e
	return &out, nil
}

func (f *fakeProvider) Send(_ context.Context, draft model.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, draft)
	return nil
}

func (f *fakeProvider) SaveDraft(_ context.Context, draft model.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.folders[model.FolderDrafts] = append(f.folders[model.FolderDrafts], model.Email{
		LocalID: "draft-" + strconv.Itoa(len(f.folders[model.FolderDrafts])),
		Folder:  model.FolderDrafts,
		Subject: draft.Subject,
	})
	return nil
}

func (f *fakeProvider) Reply(_ context.Context, original model.Email, body string, all bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.replies = append(f.replies, fmt.Sprintf("%s all=%t %s", original.ID(), all, body))
	return nil
}

func (f *fakeProvider) Forward(_ context.Context, original model.Email, to []string, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.forwards = append(f.forwards, fmt.Sprintf("%s to=%s %s", original.ID(), strings.Join(to, ","), body))
	return nil
}

func (f *fakeProvider) SetRead(_ context.Context, id string, read bool) error {
	if f.kind == provider.KindRemote {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e := f.locate(id); e != nil {
		e.IsRead = read
		return nil
	}
	return errors.New("no such email")
}

func (f *fakeProvider) SetStarred(_ context.Context, id string, current bool) (bool, error) {
	if f.kind == provider.KindRemote {
		return !current, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.locate(id)
	if e == nil {
		return false, errors.New("no such email")
	}
	e.IsStarred = !e.IsStarred
	return e.IsStarred, nil
}

func (f *fakeProvider) Trash(_ context.Context, id string) error { return nil }

func (f *fakeProvider) Purge(_ context.Context, id string) error { return nil }

func (f *fakeProvider) Counts(_ context.Context) (model.Counts, error) {
	if f.kind == provider.KindRemote {
		return model.Counts{}, provider.ErrUnsupported
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var c model.Counts
	c.Inbox = len(f.folders[model.FolderInbox])
	c.Sent = len(f.folders[model.FolderSent])
	c.Drafts = len(f.folders[model.FolderDrafts])
	for _, e := range f.folders[model.FolderInbox] {
		if !e.IsRead {
			c.Unread++
		}
		if e.IsStarred {
			c.Starred++
		}
	}
	return c, nil
}

func (f *fakeProvider) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists)
}
