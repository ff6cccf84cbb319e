package mailbox

import (
	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
)

// listRequest describes one listing: a folder page, or a search page
// when query is set.
type listRequest struct {
	folder string
	query  string
	filter string
	page   int
	token  string
}

func (r listRequest) searching() bool {
	return r.query != ""
}

// listLoadedMsg carries the result of a folder listing or search.
type listLoadedMsg struct {
	seq   uint64
	req   listRequest
	page  *provider.Page
	err   error
	quiet bool
}

// emailLoadedMsg carries the result of selecting a message.
type emailLoadedMsg struct {
	seq   uint64
	id    string
	email *model.Email
	err   error
}

// countsLoadedMsg carries refreshed folder counts.
type countsLoadedMsg struct {
	counts model.Counts
	err    error
}

type flag int

const (
	flagRead flag = iota
	flagStarred
)

// flagUpdatedMsg reports a read or star change.
type flagUpdatedMsg struct {
	id    string
	flag  flag
	value bool
	err   error
}

type removal int

const (
	removeTrash removal = iota
	removePurge
)

// removedMsg reports a trash or purge.
type removedMsg struct {
	id   string
	kind removal
	err  error
}

type composeOp int

const (
	opSend composeOp = iota
	opSaveDraft
	opReply
	opForward
)

// composeDoneMsg reports the outcome of a send, draft save, reply or
// forward.
type composeDoneMsg struct {
	op  composeOp
	err error
}

// draftAssistedMsg carries generated body text.
type draftAssistedMsg struct {
	text string
	err  error
}
