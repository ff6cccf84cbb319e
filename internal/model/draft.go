package model

import "time"

// ComposeMode identifies what the compose surface was opened for.
type ComposeMode string

const (
	ComposeNew      ComposeMode = "new"
	ComposeReply    ComposeMode = "reply"
	ComposeReplyAll ComposeMode = "replyAll"
	ComposeForward  ComposeMode = "forward"
)

// Draft is an outgoing message as entered by the user.
type Draft struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// DraftIntent is the prefill handed to the compose surface. It is never
// persisted.
type DraftIntent struct {
	Mode    ComposeMode
	To      []string
	Subject string
	Body    string

	// InReplyToID is the identifier of the message being answered or
	// forwarded.
	InReplyToID string
	ThreadID    string

	OriginalSender    string
	OriginalTimestamp time.Time
}
