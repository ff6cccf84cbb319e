package mailbox

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
	"github.com/nhle/webmail/internal/session"
	appsync "github.com/nhle/webmail/internal/sync"
)

// testClock is a settable time source.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestController(t *testing.T, p *fakeProvider, opts ...Option) (*Controller, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithSelfAddress("me@example.com")}, opts...)
	return New(p, opts...), clock
}

// mustRun drives cmd and its follow-ups to completion.
func mustRun(t *testing.T, c *Controller, cmd tea.Cmd) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Run(ctx, cmd); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func ids(emails []model.Email) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		out = append(out, e.ID())
	}
	return out
}

func TestOpenFolder_LocalPagination(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 25)
	c, _ := newTestController(t, p)

	mustRun(t, c, c.Init())

	s := c.State()
	want := model.Pagination{Page: 1, Pages: 2, Total: 25, HasMore: true}
	if s.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", s.Pagination, want)
	}
	if len(s.Emails) != 20 {
		t.Errorf("got %d emails, want 20", len(s.Emails))
	}
	if s.Loading {
		t.Error("loading should be cleared")
	}
	if !s.CountsAvailable || s.Counts.Inbox != 25 {
		t.Errorf("counts = %+v available=%t", s.Counts, s.CountsAvailable)
	}

	mustRun(t, c, c.NextPage())
	s = c.State()
	if s.Pagination.Page != 2 || len(s.Emails) != 5 || s.Pagination.HasMore {
		t.Errorf("page 2: %+v with %d emails", s.Pagination, len(s.Emails))
	}
	if cmd := c.NextPage(); cmd != nil {
		t.Error("NextPage past the end should be a no-op")
	}

	mustRun(t, c, c.PrevPage())
	if got := c.State().Pagination.Page; got != 1 {
		t.Errorf("after PrevPage page = %d", got)
	}
	if cmd := c.PrevPage(); cmd != nil {
		t.Error("PrevPage before the first page should be a no-op")
	}
}

func TestOpenFolder_StaleResponseDiscarded(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 3)
	p.fill(model.FolderSent, 2)
	c, _ := newTestController(t, p)

	inbox := c.OpenFolder(model.FolderInbox)
	sent := c.OpenFolder(model.FolderSent)

	// The sent listing lands first, the inbox listing after it.
	c.Update(sent())
	c.Update(inbox())

	s := c.State()
	if s.Folder != model.FolderSent {
		t.Fatalf("folder = %q, want sent", s.Folder)
	}
	if !reflect.DeepEqual(ids(s.Emails), []string{"sent-0", "sent-1"}) {
		t.Errorf("emails = %v", ids(s.Emails))
	}
	if s.Loading {
		t.Error("loading should be cleared by the latest response")
	}
}

func TestOpenFolder_FailureKeepsState(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 2)
	p.listErr[model.FolderTrash] = errors.New("connection refused")
	c, _ := newTestController(t, p)

	mustRun(t, c, c.OpenFolder(model.FolderInbox))
	mustRun(t, c, c.OpenFolder(model.FolderTrash))

	s := c.State()
	if s.Folder != model.FolderInbox || len(s.Emails) != 2 {
		t.Errorf("prior listing lost: folder=%q emails=%d", s.Folder, len(s.Emails))
	}
	if s.Toast == nil || s.Toast.Kind != model.ToastError || s.Toast.Message != "Failed to load emails" {
		t.Errorf("toast = %+v", s.Toast)
	}
}

func TestToggleStar_UpdatesListAndSelection(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 3)
	c, _ := newTestController(t, p)

	mustRun(t, c, c.OpenFolder(model.FolderInbox))
	mustRun(t, c, c.Select("inbox-1"))
	mustRun(t, c, c.ToggleStar("inbox-1"))

	s := c.State()
	if s.Selected == nil {
		t.Fatal("nothing selected")
	}
	if !s.Selected.IsStarred || !s.Emails[1].IsStarred {
		t.Errorf("star not applied to both: selected=%t list=%t",
			s.Selected.IsStarred, s.Emails[1].IsStarred)
	}

	mustRun(t, c, c.ToggleStar("inbox-1"))
	s = c.State()
	if s.Selected.IsStarred != s.Emails[1].IsStarred || s.Selected.IsStarred {
		t.Errorf("second toggle diverged: selected=%t list=%t",
			s.Selected.IsStarred, s.Emails[1].IsStarred)
	}
}

func TestSelect_LocalMarksRead(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 2)
	c, _ := newTestController(t, p)

	mustRun(t, c, c.Init())
	if got := c.State().Counts.Unread; got != 2 {
		t.Fatalf("unread = %d before select", got)
	}

	mustRun(t, c, c.Select("inbox-0"))
	s := c.State()
	if s.Selected == nil || s.Selected.ID() != "inbox-0" || !s.Selected.IsRead {
		t.Fatalf("selected = %+v", s.Selected)
	}
	if !s.Emails[0].IsRead {
		t.Error("list item should be marked read")
	}
	if s.Counts.Unread != 1 {
		t.Errorf("counts not refreshed: unread = %d", s.Counts.Unread)
	}

	mustRun(t, c, c.ToggleRead("inbox-0"))
	s = c.State()
	if s.Selected.IsRead || s.Emails[0].IsRead {
		t.Error("ToggleRead should clear the flag in both views")
	}
}

func TestSelect_StaleDiscarded(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 2)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderInbox))

	first := c.Select("inbox-0")
	second := c.Select("inbox-1")
	c.Update(second())
	c.Update(first())

	if got := c.State().Selected.ID(); got != "inbox-1" {
		t.Errorf("selected = %q, want inbox-1", got)
	}

	late := c.Select("inbox-0")
	c.Deselect()
	c.Update(late())
	if c.State().Selected != nil {
		t.Error("selection resolved after Deselect")
	}
}

func TestSelect_RemoteRequiresCachedItem(t *testing.T) {
	p := newFakeProvider(provider.KindRemote)
	p.fill(model.FolderInbox, 2)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.Init())

	s := c.State()
	if s.CountsAvailable {
		t.Error("remote counts must be flagged unavailable")
	}
	if s.Toast != nil {
		t.Errorf("unsupported counts must not toast, got %+v", s.Toast)
	}

	mustRun(t, c, c.Select("inbox-1"))
	if sel := c.State().Selected; sel == nil || sel.ID() != "inbox-1" {
		t.Fatalf("selected = %+v", sel)
	}

	mustRun(t, c, c.Select("elsewhere"))
	s = c.State()
	if s.Toast == nil || s.Toast.Kind != model.ToastError {
		t.Errorf("expected error toast for uncached item, got %+v", s.Toast)
	}
	if s.Selected.ID() != "inbox-1" {
		t.Error("failed selection must keep the previous one")
	}
}

func TestRemote_TokenNavigation(t *testing.T) {
	p := newFakeProvider(provider.KindRemote)
	p.pageSize = 2
	p.fill(model.FolderInbox, 5)
	c, _ := newTestController(t, p)

	mustRun(t, c, c.OpenFolder(model.FolderInbox))
	mustRun(t, c, c.NextPage())
	mustRun(t, c, c.NextPage())

	s := c.State()
	if s.Pagination.Page != 3 || s.Pagination.HasMore {
		t.Fatalf("last page = %+v", s.Pagination)
	}
	if !reflect.DeepEqual(ids(s.Emails), []string{"inbox-4"}) {
		t.Errorf("emails = %v", ids(s.Emails))
	}
	if cmd := c.NextPage(); cmd != nil {
		t.Error("no next page without a token")
	}

	mustRun(t, c, c.PrevPage())
	s = c.State()
	if s.Pagination.Page != 2 || !reflect.DeepEqual(ids(s.Emails), []string{"inbox-2", "inbox-3"}) {
		t.Errorf("back to page 2: %+v %v", s.Pagination, ids(s.Emails))
	}
	if last := p.lists[len(p.lists)-1]; last.Token != "off:2" {
		t.Errorf("PrevPage replayed token %q, want off:2", last.Token)
	}

	mustRun(t, c, c.GoToPage(1))
	if got := ids(c.State().Emails); !reflect.DeepEqual(got, []string{"inbox-0", "inbox-1"}) {
		t.Errorf("page 1 = %v", got)
	}
	if cmd := c.GoToPage(3); cmd != nil {
		t.Error("remote pages beyond the next one are unreachable")
	}
}

func TestSearch_EmptyQueryRestoresFolder(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 3)
	p.fill(model.FolderSent, 1)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderInbox))

	mustRun(t, c, c.Search("sent", "all"))
	s := c.State()
	if s.SearchQuery != "sent" || s.SearchFilter != "all" {
		t.Errorf("search state = %q/%q", s.SearchQuery, s.SearchFilter)
	}
	if !reflect.DeepEqual(ids(s.Emails), []string{"sent-0"}) {
		t.Errorf("results = %v", ids(s.Emails))
	}
	if s.Folder != model.FolderInbox {
		t.Errorf("search changed folder to %q", s.Folder)
	}

	before := p.listCalls()
	mustRun(t, c, c.Search("  ", ""))
	s = c.State()
	if p.listCalls() != before+1 {
		t.Error("clearing the search should list the folder again")
	}
	if s.SearchQuery != "" || len(s.Emails) != 3 || s.Folder != model.FolderInbox {
		t.Errorf("restored state: query=%q emails=%d folder=%q", s.SearchQuery, len(s.Emails), s.Folder)
	}
}

func TestTrash_RemovesFromListAndSelection(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 3)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderInbox))
	mustRun(t, c, c.Select("inbox-0"))

	mustRun(t, c, c.Trash("inbox-0"))
	s := c.State()
	if s.Selected != nil {
		t.Error("selection should be cleared")
	}
	if !reflect.DeepEqual(ids(s.Emails), []string{"inbox-1", "inbox-2"}) {
		t.Errorf("emails = %v", ids(s.Emails))
	}
	if s.Toast == nil || s.Toast.Message != "Moved to trash" {
		t.Errorf("toast = %+v", s.Toast)
	}

	mustRun(t, c, c.Purge("inbox-2"))
	if got := c.State().Toast.Message; got != "Permanently deleted" {
		t.Errorf("toast = %q", got)
	}
}

func TestSend_FailureKeepsComposeOpen(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.sendErr = &session.HTTPError{
		Status:  400,
		Code:    session.CodeValidation,
		Message: "Invalid recipient address: nope",
	}
	c, _ := newTestController(t, p)

	c.OpenCompose()
	mustRun(t, c, c.SubmitCompose(model.Draft{To: []string{"nope"}, Subject: "hi"}))

	s := c.State()
	if !s.ComposeOpen || s.DraftIntent == nil {
		t.Error("compose should stay open after failure")
	}
	if s.Toast == nil || s.Toast.Kind != model.ToastError || s.Toast.Message != "Invalid recipient address: nope" {
		t.Errorf("toast = %+v", s.Toast)
	}

	p.sendErr = errors.New("dial tcp: connection refused")
	mustRun(t, c, c.SubmitCompose(model.Draft{To: []string{"a@example.com"}}))
	if got := c.State().Toast.Message; got != "Failed to send email" {
		t.Errorf("generic toast = %q", got)
	}
}

func TestSend_SuccessClosesComposeAndRefreshesSent(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderSent, 1)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderSent))

	c.OpenCompose()
	before := p.listCalls()
	mustRun(t, c, c.SubmitCompose(model.Draft{To: []string{"a@example.com"}, Subject: "hi"}))

	s := c.State()
	if s.ComposeOpen || s.DraftIntent != nil {
		t.Error("compose should close after sending")
	}
	if s.Toast == nil || s.Toast.Message != "Email sent!" || s.Toast.Kind != model.ToastSuccess {
		t.Errorf("toast = %+v", s.Toast)
	}
	if len(p.sent) != 1 {
		t.Errorf("sent %d drafts", len(p.sent))
	}
	if p.listCalls() != before+1 {
		t.Error("sent folder should be listed again")
	}
}

func TestSubmitCompose_RoutesByIntent(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 1)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderInbox))

	c.OpenReplyAll("inbox-0")
	intent := c.State().DraftIntent
	if intent == nil || intent.Mode != model.ComposeReplyAll || intent.Subject != "Re: inbox 0" {
		t.Fatalf("intent = %+v", intent)
	}
	if !reflect.DeepEqual(intent.To, []string{"bob@example.com"}) {
		t.Errorf("reply-all should drop self, got %v", intent.To)
	}
	mustRun(t, c, c.SubmitCompose(model.Draft{Body: "thanks"}))

	c.OpenForward("inbox-0")
	if got := c.State().DraftIntent.Subject; got != "Fwd: inbox 0" {
		t.Errorf("forward subject = %q", got)
	}
	mustRun(t, c, c.SubmitCompose(model.Draft{To: []string{"x@example.com"}, Body: "fyi"}))

	if !reflect.DeepEqual(p.replies, []string{"inbox-0 all=true thanks"}) {
		t.Errorf("replies = %v", p.replies)
	}
	if !reflect.DeepEqual(p.forwards, []string{"inbox-0 to=x@example.com fyi"}) {
		t.Errorf("forwards = %v", p.forwards)
	}
	if got := c.State().Toast.Message; got != "Email forwarded!" {
		t.Errorf("toast = %q", got)
	}

	c.OpenReply("missing")
	if s := c.State(); s.ComposeOpen || s.Toast.Kind != model.ToastError {
		t.Error("replying to an unknown message should toast and stay closed")
	}
}

type stubDrafter struct {
	text string
	err  error
}

func (d stubDrafter) Draft(context.Context, string) (string, error) {
	return d.text, d.err
}

func TestAssistDraft(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	c, _ := newTestController(t, p, WithDrafter(stubDrafter{text: "Generated."}))

	c.OpenCompose()
	c.state.DraftIntent.Body = "Hi,"
	mustRun(t, c, c.AssistDraft("be nice"))
	if got := c.State().DraftIntent.Body; got != "Hi,\n\nGenerated." {
		t.Errorf("body = %q", got)
	}

	bare, _ := newTestController(t, p)
	if cmd := bare.AssistDraft("x"); cmd != nil {
		t.Error("AssistDraft without a drafter should not issue a command")
	}
	if bare.State().Toast == nil {
		t.Error("expected a toast when drafting is unavailable")
	}
}

func TestToast_ExpiresAndReplaces(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	c, clock := newTestController(t, p, WithToastTTL(3*time.Second))

	c.ShowToast("first", model.ToastSuccess)
	c.ShowToast("second", model.ToastError)
	if got := c.State().Toast; got == nil || got.Message != "second" {
		t.Fatalf("toast = %+v", got)
	}

	clock.now = clock.now.Add(2 * time.Second)
	if c.State().Toast == nil {
		t.Error("toast expired early")
	}
	clock.now = clock.now.Add(time.Second)
	if c.State().Toast != nil {
		t.Error("toast should have expired")
	}
}

func TestSessionInvalid_ShowsSessionNotice(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.listErr[model.FolderInbox] = session.ErrSessionInvalid
	c, _ := newTestController(t, p)

	mustRun(t, c, c.OpenFolder(model.FolderInbox))
	if got := c.State().Toast; got == nil || !strings.Contains(got.Message, "sign in again") {
		t.Errorf("toast = %+v", got)
	}
}

func TestPoll_RefreshesQuietly(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 1)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderInbox))

	p.fill(model.FolderInbox, 1)
	mustRun(t, c, c.Update(appsync.PollMsg{At: time.Now()}))
	if got := len(c.State().Emails); got != 2 {
		t.Errorf("poll did not refresh: %d emails", got)
	}

	p.listErr[model.FolderInbox] = errors.New("offline")
	mustRun(t, c, c.Refresh())
	s := c.State()
	if s.Toast != nil {
		t.Errorf("background refresh must not toast, got %+v", s.Toast)
	}
	if len(s.Emails) != 2 {
		t.Error("failed refresh must keep the listing")
	}
}

func TestRefresh_KeepsNewerNavigation(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 3)
	p.fill(model.FolderSent, 2)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderInbox))

	// A poll lands while the sent listing is still in flight.
	open := c.OpenFolder(model.FolderSent)
	poll := c.Update(appsync.PollMsg{At: time.Now()})

	c.Update(open())
	mustRun(t, c, poll)

	s := c.State()
	if s.Folder != model.FolderSent {
		t.Fatalf("folder = %q, want sent", s.Folder)
	}
	if !reflect.DeepEqual(ids(s.Emails), []string{"sent-0", "sent-1"}) {
		t.Errorf("emails = %v", ids(s.Emails))
	}
	if s.Loading {
		t.Error("loading should be cleared")
	}
}

func TestRefresh_ReportsFailureOfSupersededListing(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 3)
	p.listErr[model.FolderTrash] = errors.New("connection refused")
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderInbox))

	_ = c.OpenFolder(model.FolderTrash)
	mustRun(t, c, c.Refresh())

	s := c.State()
	if s.Folder != model.FolderInbox || len(s.Emails) != 3 {
		t.Errorf("prior listing lost: folder=%q emails=%d", s.Folder, len(s.Emails))
	}
	if s.Toast == nil || s.Toast.Message != "Failed to load emails" {
		t.Errorf("toast = %+v", s.Toast)
	}

	// The failed request is no longer the one a refresh repeats.
	before := p.listCalls()
	mustRun(t, c, c.Refresh())
	if got := c.State().Folder; got != model.FolderInbox {
		t.Errorf("refresh after failure listed %q", got)
	}
	if p.listCalls() != before+1 {
		t.Errorf("refresh issued %d listings", p.listCalls()-before)
	}
}

func TestPoller_DrivesRefreshes(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 2)
	p.fill(model.FolderSent, 1)

	poller := appsync.New(0)
	listed := make(chan State, 4)
	c, _ := newTestController(t, p,
		WithFolder(model.FolderSent),
		WithPoller(poller),
		OnListing(func(s State) { listed <- s }),
	)

	next := func() State {
		select {
		case s := <-listed:
			return s
		case <-time.After(2 * time.Second):
			return State{}
		}
	}

	got := make(chan []State, 1)
	go func() {
		var seen []State
		seen = append(seen, next())
		// Each poll is applied and Wait is armed again before the
		// next trigger.
		poller.RefreshNow()
		seen = append(seen, next())
		poller.RefreshNow()
		seen = append(seen, next())
		poller.Stop()
		got <- seen
	}()

	mustRun(t, c, c.Init())

	seen := <-got
	for i, s := range seen {
		if s.Folder != model.FolderSent || len(s.Emails) != 1 {
			t.Errorf("listing %d: folder=%q emails=%d", i, s.Folder, len(s.Emails))
		}
	}
	if calls := p.listCalls(); calls != 3 {
		t.Errorf("listed %d times, want 3", calls)
	}
	if poller.LastPoll().IsZero() {
		t.Error("poller never fired")
	}
}

func TestState_ReturnsCopy(t *testing.T) {
	p := newFakeProvider(provider.KindLocal)
	p.fill(model.FolderInbox, 1)
	c, _ := newTestController(t, p)
	mustRun(t, c, c.OpenFolder(model.FolderInbox))
	mustRun(t, c, c.Select("inbox-0"))

	s := c.State()
	s.Emails[0].Subject = "changed"
	s.Selected.Subject = "changed"

	again := c.State()
	if again.Emails[0].Subject == "changed" || again.Selected.Subject == "changed" {
		t.Error("State must not expose internal storage")
	}
}
