package mailbox

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
)

// OpenFolder lists the first page of folder and clears any search. On
// failure the current listing stays as it was.
func (c *Controller) OpenFolder(folder string) tea.Cmd {
	return c.fetchList(listRequest{folder: folder, page: 1}, false)
}

// Search lists the first page of matches for query. An empty query
// drops the search and lists the current folder again from the server.
func (c *Controller) Search(query, filter string) tea.Cmd {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.OpenFolder(c.state.Folder)
	}
	return c.fetchList(listRequest{
		folder: c.state.Folder,
		query:  query,
		filter: filter,
		page:   1,
	}, false)
}

// Refresh lists the latest requested view again. Failures are only
// reported when a user listing is still loading, since the refresh
// supersedes it.
func (c *Controller) Refresh() tea.Cmd {
	return c.fetchList(c.pending, !c.state.Loading)
}

// NextPage moves forward one page when the current listing has more.
func (c *Controller) NextPage() tea.Cmd {
	p := c.state.Pagination
	if !p.HasMore {
		return nil
	}
	req := c.view
	req.page = p.Page + 1
	req.token = p.NextToken
	return c.fetchList(req, false)
}

// PrevPage moves back one page. Under token pagination the token that
// fetched the previous page is replayed.
func (c *Controller) PrevPage() tea.Cmd {
	return c.GoToPage(c.state.Pagination.Page - 1)
}

// GoToPage jumps to page n. Under token pagination only pages already
// visited and the next page are reachable.
func (c *Controller) GoToPage(n int) tea.Cmd {
	p := c.state.Pagination
	if n < 1 || n == p.Page || n > p.Pages {
		return nil
	}
	if n == p.Page+1 {
		return c.NextPage()
	}

	req := c.view
	req.page = n
	req.token = ""
	if n <= len(c.tokens) {
		req.token = c.tokens[n-1]
	}
	return c.fetchList(req, false)
}

// fetchList issues req under a new sequence number. Only the response
// to the latest issued listing is applied.
func (c *Controller) fetchList(req listRequest, quiet bool) tea.Cmd {
	c.listSeq++
	seq := c.listSeq
	c.pending = req
	if !quiet {
		c.state.Loading = true
	}

	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		cur := provider.Cursor{Page: req.page, Token: req.token}

		var (
			page *provider.Page
			err  error
		)
		if req.searching() {
			page, err = p.Search(ctx, req.query, req.filter, cur)
		} else {
			page, err = p.ListFolder(ctx, req.folder, cur)
		}
		return listLoadedMsg{seq: seq, req: req, page: page, err: err, quiet: quiet}
	})
}

func (c *Controller) applyList(msg listLoadedMsg) tea.Cmd {
	if msg.seq != c.listSeq {
		c.logger.Debug("discarding stale listing",
			"folder", msg.req.folder, "query", msg.req.query, "seq", msg.seq)
		return nil
	}
	c.state.Loading = false

	if msg.err != nil {
		c.pending = c.view
		if msg.quiet {
			c.logger.Warn("background refresh failed", "error", msg.err)
			return nil
		}
		if msg.req.searching() {
			c.fail(msg.err, "Search failed")
		} else {
			c.fail(msg.err, "Failed to load emails")
		}
		return nil
	}

	req := msg.req
	c.state.Emails = msg.page.Emails
	c.state.Pagination = msg.page.Pagination
	c.state.Folder = req.folder
	c.state.SearchQuery = req.query
	c.state.SearchFilter = req.filter
	c.view = req
	c.trackToken(req)
	if c.onList != nil {
		c.onList(c.State())
	}
	return nil
}

// trackToken records the token that fetched req.page so the page can be
// revisited. Offset-paginated listings record empty tokens.
func (c *Controller) trackToken(req listRequest) {
	if req.page <= 1 {
		c.tokens = []string{""}
		return
	}
	for len(c.tokens) < req.page-1 {
		c.tokens = append(c.tokens, "")
	}
	c.tokens = append(c.tokens[:req.page-1], req.token)
}

// fetchCounts refreshes folder counts.
func (c *Controller) fetchCounts() tea.Cmd {
	p := c.provider
	return c.command(func(ctx context.Context) tea.Msg {
		counts, err := p.Counts(ctx)
		return countsLoadedMsg{counts: counts, err: err}
	})
}

func (c *Controller) applyCounts(msg countsLoadedMsg) {
	switch {
	case errors.Is(msg.err, provider.ErrUnsupported):
		c.state.CountsAvailable = false
		c.state.Counts = model.Counts{}
	case msg.err != nil:
		c.logger.Warn("refreshing counts", "error", msg.err)
	default:
		c.state.Counts = msg.counts
		c.state.CountsAvailable = true
	}
}
