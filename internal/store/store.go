package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/webmail/internal/model"
)

var (
	// ErrNotFound is returned when a user, session or message does not
	// exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned by CreateUser when the address is
	// already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// User is a registered mailbox owner.
type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Account returns the public view of the user.
func (u User) Account() model.Account {
	return model.Account{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Session is a refresh session referenced by the refresh cookie.
type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Addresses is a recipient list stored as a JSON array.
type Addresses []string

// Value implements driver.Valuer.
func (a Addresses) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *Addresses) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Addresses{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scanning addresses: unsupported type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshaling addresses: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*a = out
	return nil
}

// Message is one copy of an email in a single owner's mailbox. Sending
// produces one copy per participant.
type Message struct {
	ID              string    `db:"id"`
	OwnerID         string    `db:"owner_id"`
	Folder          string    `db:"folder"`
	From            string    `db:"from_addr"`
	FromName        string    `db:"from_name"`
	To              Addresses `db:"to_addrs"`
	Cc              Addresses `db:"cc_addrs"`
	Bcc             Addresses `db:"bcc_addrs"`
	Subject         string    `db:"subject"`
	Body            string    `db:"body"`
	IsRead          bool      `db:"is_read"`
	IsStarred       bool      `db:"is_starred"`
	ThreadID        string    `db:"thread_id"`
	MessageIDHeader string    `db:"message_id_header"`
	SentAt          time.Time `db:"sent_at"`
}

// Search filters understood by SearchMessages.
const (
	FilterAll     = ""
	FilterUnread  = "unread"
	FilterStarred = "starred"
)

// MessageFilter controls search and pagination for message queries.
type MessageFilter struct {
	Query  string
	Filter string
	Limit  int
	Offset int
}

// Store defines persistence for users, refresh sessions and mailboxes.
// Message operations are scoped to an owner; a message owned by someone
// else is reported as ErrNotFound.
type Store interface {
	// === Users ===

	CreateUser(ctx context.Context, user User) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// === Refresh sessions ===

	CreateSession(ctx context.Context, userID string, ttl time.Duration) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// === Messages ===

	InsertMessages(ctx context.Context, msgs []Message) error
	GetMessage(ctx context.Context, ownerID, id string) (*Message, error)
	ListFolder(ctx context.Context, ownerID, folder string, limit, offset int) ([]Message, int, error)
	SearchMessages(ctx context.Context, ownerID string, filter MessageFilter) ([]Message, int, error)
	SetRead(ctx context.Context, ownerID, id string, read bool) error
	ToggleStar(ctx context.Context, ownerID, id string) (bool, error)
	MoveToFolder(ctx context.Context, ownerID, id, folder string) error
	DeleteMessage(ctx context.Context, ownerID, id string) error
	Counts(ctx context.Context, ownerID string) (model.Counts, error)

	Close() error
}
