package remote

import (
	"time"

	"github.com/nhle/webmail/internal/model"
)

// Email is a message as returned by the provider proxy.
type Email struct {
	ProviderID      string    `json:"gmailId"`
	ThreadID        string    `json:"threadId"`
	MessageIDHeader string    `json:"messageIdHeader"`
	Folder          string    `json:"folder,omitempty"`
	From            string    `json:"from"`
	FromName        string    `json:"fromName,omitempty"`
	To              []string  `json:"to"`
	Cc              []string  `json:"cc"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	IsRead          bool      `json:"isRead"`
	IsStarred       bool      `json:"isStarred"`
	SentAt          time.Time `json:"sentAt"`
}

// ToModel converts the wire representation to the normalized entity.
// folder is used when the proxy did not report one.
func (e Email) ToModel(folder string) model.Email {
	if e.Folder != "" {
		folder = e.Folder
	}
	return model.Email{
		RemoteID:  e.ProviderID,
		Folder:    folder,
		From:      e.From,
		FromName:  e.FromName,
		To:        e.To,
		Cc:        e.Cc,
		Subject:   e.Subject,
		BodyHTML:  e.Body,
		IsRead:    e.IsRead,
		IsStarred: e.IsStarred,
		SentAt:    e.SentAt,
		ThreadID:  e.ThreadID,
		MessageID: e.MessageIDHeader,
	}
}

// ListResponse is the payload of GET /provider/messages. A nil
// NextPageToken means the listing is exhausted.
type ListResponse struct {
	Emails        []Email `json:"emails"`
	NextPageToken *string `json:"nextPageToken"`
}

// SendRequest is the payload of POST /provider/send.
type SendRequest struct {
	To        []string `json:"to"`
	Cc        []string `json:"cc,omitempty"`
	Bcc       []string `json:"bcc,omitempty"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	InReplyTo string   `json:"inReplyTo,omitempty"`
	ThreadID  string   `json:"threadId,omitempty"`
}
