package local

import (
	"time"

	"github.com/nhle/webmail/internal/model"
)

// Email is a message as returned by the mail store.
type Email struct {
	ID              string    `json:"_id"`
	Folder          string    `json:"folder"`
	From            string    `json:"from"`
	FromName        string    `json:"fromName,omitempty"`
	To              []string  `json:"to"`
	Cc              []string  `json:"cc"`
	Bcc             []string  `json:"bcc"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	IsRead          bool      `json:"isRead"`
	IsStarred       bool      `json:"isStarred"`
	SentAt          time.Time `json:"sentAt"`
	ThreadID        string    `json:"threadId,omitempty"`
	MessageIDHeader string    `json:"messageIdHeader,omitempty"`
}

// ToModel converts the wire representation to the normalized entity.
func (e Email) ToModel() model.Email {
	return model.Email{
		LocalID:   e.ID,
		Folder:    e.Folder,
		From:      e.From,
		FromName:  e.FromName,
		To:        e.To,
		Cc:        e.Cc,
		Bcc:       e.Bcc,
		Subject:   e.Subject,
		BodyHTML:  e.Body,
		IsRead:    e.IsRead,
		IsStarred: e.IsStarred,
		SentAt:    e.SentAt,
		ThreadID:  e.ThreadID,
		MessageID: e.MessageIDHeader,
	}
}

// Pagination is the page position reported with listings.
type Pagination struct {
	Page    int  `json:"page"`
	Pages   int  `json:"pages"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// ListResponse is the payload of folder listings and searches.
type ListResponse struct {
	Emails     []Email    `json:"emails"`
	Pagination Pagination `json:"pagination"`
}

// EmailResponse wraps a single message.
type EmailResponse struct {
	Email Email `json:"email"`
}

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
