package model

import "time"

// Well-known folder names shared by both adapters.
const (
	FolderInbox   = "inbox"
	FolderSent    = "sent"
	FolderDrafts  = "drafts"
	FolderTrash   = "trash"
	FolderStarred = "starred"
)

// Folders lists the folders in sidebar order.
var Folders = []string{
	FolderInbox, FolderStarred, FolderSent, FolderDrafts, FolderTrash,
}

// Email is the provider-agnostic representation of a message. Exactly
// one of LocalID and RemoteID is set, depending on which adapter
// produced the value.
type Email struct {
	// LocalID identifies the message in the owned mail store.
	LocalID string `json:"localId,omitempty"`

	// RemoteID identifies the message at the linked provider.
	RemoteID string `json:"remoteId,omitempty"`

	Folder   string   `json:"folder"`
	From     string   `json:"from"`
	FromName string   `json:"fromDisplayName,omitempty"`
	To       []string `json:"to"`
	Cc       []string `json:"cc"`
	Bcc      []string `json:"bcc"`
	Subject  string   `json:"subject"`
	BodyHTML string   `json:"bodyHtml"`

	IsRead    bool      `json:"isRead"`
	IsStarred bool      `json:"isStarred"`
	SentAt    time.Time `json:"sentAt"`

	// ThreadID groups replies at the provider.
	ThreadID string `json:"threadId,omitempty"`

	// MessageID is the RFC 5322 Message-ID header, used to correlate
	// replies sent through the provider.
	MessageID string `json:"messageId,omitempty"`
}

// ID returns the authoritative identifier of the message.
func (e Email) ID() string {
	if e.RemoteID != "" {
		return e.RemoteID
	}
	return e.LocalID
}

// Sender returns the display name when known, otherwise the address.
func (e Email) Sender() string {
	if e.FromName != "" {
		return e.FromName
	}
	return e.From
}

// Pagination describes the position of the current page. Local listings
// fill Page, Pages and Total; remote listings only know whether another
// page exists and which token fetches it.
type Pagination struct {
	Page      int    `json:"page"`
	Pages     int    `json:"pages"`
	Total     int    `json:"total"`
	HasMore   bool   `json:"hasMore"`
	NextToken string `json:"nextToken,omitempty"`
}

// Counts holds per-folder aggregate counts.
type Counts struct {
	Inbox   int `json:"inbox"`
	Unread  int `json:"unread"`
	Sent    int `json:"sent"`
	Drafts  int `json:"drafts"`
	Trash   int `json:"trash"`
	Starred int `json:"starred"`
}
