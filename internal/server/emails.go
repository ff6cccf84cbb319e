package server

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nhle/webmail/internal/compose"
	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider/local"
	"github.com/nhle/webmail/internal/session"
	"github.com/nhle/webmail/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type readRequest struct {
	IsRead bool `json:"isRead"`
}

type replyRequest struct {
	Body     string `json:"body"`
	ReplyAll bool   `json:"replyAll"`
}

type forwardRequest struct {
	To   []string `json:"to"`
	Body string   `json:"body"`
}

func toWire(m store.Message) local.Email {
	return local.Email{
		ID:              m.ID,
		Folder:          m.Folder,
		From:            m.From,
		FromName:        m.FromName,
		To:              nonNil(m.To),
		Cc:              nonNil(m.Cc),
		Bcc:             nonNil(m.Bcc),
		Subject:         m.Subject,
		Body:            m.Body,
		IsRead:          m.IsRead,
		IsStarred:       m.IsStarred,
		SentAt:          m.SentAt,
		ThreadID:        m.ThreadID,
		MessageIDHeader: m.MessageIDHeader,
	}
}

func toModel(m store.Message) model.Email {
	return toWire(m).ToModel()
}

func nonNil(a store.Addresses) []string {
	if a == nil {
		return []string{}
	}
	return a
}

// pageParams reads page and limit, clamping both to sane values.
func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	return page, min(limit, maxPageSize)
}

func listResponse(msgs []store.Message, total, page, limit int) local.ListResponse {
	emails := make([]local.Email, 0, len(msgs))
	for _, m := range msgs {
		emails = append(emails, toWire(m))
	}
	pages := (total + limit - 1) / limit
	return local.ListResponse{
		Emails: emails,
		Pagination: local.Pagination{
			Page:    page,
			Pages:   pages,
			Total:   total,
			HasMore: page < pages,
		},
	}
}

func (s *Server) handleListFolder(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder")
	if !slices.Contains(model.Folders, folder) {
		writeError(w, http.StatusBadRequest, session.CodeValidation, "Unknown folder: "+folder)
		return
	}

	page, limit := pageParams(r)
	msgs, total, err := s.store.ListFolder(r.Context(), userID(r.Context()), folder, limit, (page-1)*limit)
	if err != nil {
		s.writeStoreError(w, err, "folder")
		return
	}
	writeData(w, http.StatusOK, listResponse(msgs, total, page, limit))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := q.Get("filter")
	switch filter {
	case store.FilterAll, store.FilterUnread, store.FilterStarred:
	default:
		writeError(w, http.StatusBadRequest, session.CodeValidation, "Unknown filter: "+filter)
		return
	}

	page, limit := pageParams(r)
	msgs, total, err := s.store.SearchMessages(r.Context(), userID(r.Context()), store.MessageFilter{
		Query:  q.Get("q"),
		Filter: filter,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		s.writeStoreError(w, err, "search")
		return
	}
	writeData(w, http.StatusOK, listResponse(msgs, total, page, limit))
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context(), userID(r.Context()))
	if err != nil {
		s.writeStoreError(w, err, "counts")
		return
	}
	writeData(w, http.StatusOK, counts)
}

// handleGetEmail returns a message and marks it read.
func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, id := userID(ctx), r.PathValue("id")

	msg, err := s.store.GetMessage(ctx, owner, id)
	if err != nil {
		s.writeStoreError(w, err, "Email")
		return
	}
	if !msg.IsRead {
		if err := s.store.SetRead(ctx, owner, id, true); err != nil {
			s.writeStoreError(w, err, "Email")
			return
		}
		msg.IsRead = true
	}
	writeData(w, http.StatusOK, local.EmailResponse{Email: toWire(*msg)})
}

func (s *Server) handleSetRead(w http.ResponseWriter, r *http.Request) {
	var req readRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	if err := s.store.SetRead(ctx, userID(ctx), r.PathValue("id"), req.IsRead); err != nil {
		s.writeStoreError(w, err, "Email")
		return
	}
	s.writeMessage(w, r)
}

func (s *Server) handleToggleStar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := s.store.ToggleStar(ctx, userID(ctx), r.PathValue("id")); err != nil {
		s.writeStoreError(w, err, "Email")
		return
	}
	s.writeMessage(w, r)
}

func (s *Server) handleTrash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.MoveToFolder(ctx, userID(ctx), r.PathValue("id"), model.FolderTrash); err != nil {
		s.writeStoreError(w, err, "Email")
		return
	}
	s.writeMessage(w, r)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.DeleteMessage(ctx, userID(ctx), r.PathValue("id")); err != nil {
		s.writeStoreError(w, err, "Email")
		return
	}
	writeData(w, http.StatusOK, map[string]string{})
}

// writeMessage answers with the current state of the message named in
// the path.
func (s *Server) writeMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msg, err := s.store.GetMessage(ctx, userID(ctx), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err, "Email")
		return
	}
	writeData(w, http.StatusOK, local.EmailResponse{Email: toWire(*msg)})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if !decode(w, r, &draft) {
		return
	}
	if err := compose.ValidateDraft(draft.To, draft.Cc, draft.Bcc); err != nil {
		writeError(w, http.StatusBadRequest, session.CodeValidation, capitalize(err.Error()))
		return
	}

	sent, ok := s.deliver(w, r, outgoing{draft: draft})
	if ok {
		writeData(w, http.StatusCreated, local.EmailResponse{Email: toWire(sent)})
	}
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if !decode(w, r, &draft) {
		return
	}
	ctx := r.Context()
	sender, ok := s.sender(w, r)
	if !ok {
		return
	}

	msgs := []store.Message{{
		OwnerID:  sender.ID,
		Folder:   model.FolderDrafts,
		From:     sender.Email,
		FromName: sender.Name,
		To:       draft.To,
		Cc:       draft.Cc,
		Bcc:      draft.Bcc,
		Subject:  draft.Subject,
		Body:     draft.Body,
		IsRead:   true,
		SentAt:   s.now(),
	}}
	if err := s.store.InsertMessages(ctx, msgs); err != nil {
		s.writeStoreError(w, err, "draft")
		return
	}
	writeData(w, http.StatusCreated, local.EmailResponse{Email: toWire(msgs[0])})
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	sender, ok := s.sender(w, r)
	if !ok {
		return
	}
	orig, err := s.store.GetMessage(ctx, sender.ID, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err, "Email")
		return
	}

	original := toModel(*orig)
	var to []string
	switch {
	case req.ReplyAll:
		to = compose.ReplyAllRecipients(original, sender.Email)
	case strings.EqualFold(orig.From, sender.Email):
		to = orig.To
	default:
		to = []string{orig.From}
	}
	if len(to) == 0 {
		to = []string{orig.From}
	}

	threadID := orig.ThreadID
	if threadID == "" {
		threadID = orig.ID
	}
	sent, ok := s.deliver(w, r, outgoing{
		draft: model.Draft{
			To:      to,
			Subject: compose.PrefixSubject(compose.ReplyPrefix, orig.Subject),
			Body:    req.Body,
		},
		threadID: threadID,
		sender:   sender,
	})
	if ok {
		writeData(w, http.StatusCreated, local.EmailResponse{Email: toWire(sent)})
	}
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	var req forwardRequest
	if !decode(w, r, &req) {
		return
	}
	if err := compose.ValidateDraft(req.To, nil, nil); err != nil {
		writeError(w, http.StatusBadRequest, session.CodeValidation, capitalize(err.Error()))
		return
	}
	ctx := r.Context()
	sender, ok := s.sender(w, r)
	if !ok {
		return
	}
	orig, err := s.store.GetMessage(ctx, sender.ID, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err, "Email")
		return
	}

	sent, ok := s.deliver(w, r, outgoing{
		draft: model.Draft{
			To:      req.To,
			Subject: compose.PrefixSubject(compose.ForwardPrefix, orig.Subject),
			Body:    req.Body,
		},
		sender: sender,
	})
	if ok {
		writeData(w, http.StatusCreated, local.EmailResponse{Email: toWire(sent)})
	}
}

// outgoing is a message about to be delivered.
type outgoing struct {
	draft    model.Draft
	threadID string
	sender   *store.User
}

// deliver stores the sender's copy in sent and an inbox copy for every
// registered recipient. Unknown recipients are skipped. On failure the
// error response has already been written.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, out outgoing) (store.Message, bool) {
	ctx := r.Context()
	sender := out.sender
	if sender == nil {
		var ok bool
		if sender, ok = s.sender(w, r); !ok {
			return store.Message{}, false
		}
	}

	threadID := out.threadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	now := s.now()
	base := store.Message{
		From:            sender.Email,
		FromName:        sender.Name,
		To:              out.draft.To,
		Cc:              out.draft.Cc,
		Subject:         out.draft.Subject,
		Body:            out.draft.Body,
		ThreadID:        threadID,
		MessageIDHeader: messageID(sender.Email),
		SentAt:          now,
	}

	sent := base
	sent.OwnerID = sender.ID
	sent.Folder = model.FolderSent
	sent.Bcc = out.draft.Bcc
	sent.IsRead = true
	msgs := []store.Message{sent}

	recipients, err := s.registered(ctx, sender.ID, out.draft)
	if err != nil {
		s.writeStoreError(w, err, "recipient")
		return store.Message{}, false
	}
	for _, ownerID := range recipients {
		inbox := base
		inbox.OwnerID = ownerID
		inbox.Folder = model.FolderInbox
		msgs = append(msgs, inbox)
	}

	if err := s.store.InsertMessages(ctx, msgs); err != nil {
		s.writeStoreError(w, err, "message")
		return store.Message{}, false
	}

	s.logger.Info("message delivered",
		"from", sender.ID,
		"recipients", len(out.draft.To)+len(out.draft.Cc)+len(out.draft.Bcc),
		"local_deliveries", len(recipients),
	)
	return msgs[0], true
}

// registered resolves the draft's recipients to user IDs, once each.
// The sender is never delivered a second copy.
func (s *Server) registered(ctx context.Context, senderID string, d model.Draft) ([]string, error) {
	seen := map[string]bool{senderID: true}
	var ids []string
	for _, list := range [][]string{d.To, d.Cc, d.Bcc} {
		for _, addr := range list {
			u, err := s.store.GetUserByEmail(ctx, addr)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return nil, err
			}
			if seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// sender loads the authenticated user.
func (s *Server) sender(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	u, err := s.store.GetUserByID(r.Context(), userID(r.Context()))
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusUnauthorized, session.CodeTokenInvalid, "Account no longer exists")
			return nil, false
		}
		s.writeStoreError(w, err, "user")
		return nil, false
	}
	return u, true
}

func messageID(from string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(from, "@"); ok && d != "" {
		domain = d
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
