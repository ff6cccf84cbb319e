package testutil

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/webmail/internal/credential"
	"github.com/nhle/webmail/internal/session"
)

// NewCredentials returns a credential store backed by an in-memory
// keyring, holding token when it is non-empty.
func NewCredentials(t *testing.T, token string) *credential.Store {
	t.Helper()

	var items []keyring.Item
	if token != "" {
		items = append(items, keyring.Item{Key: "accessToken", Data: []byte(token)})
	}
	creds, err := credential.NewStore(keyring.NewArrayKeyring(items), "accessToken")
	if err != nil {
		t.Fatalf("creating credential store: %v", err)
	}
	return creds
}

// NewClient returns a session client for baseURL with token stored as
// the current credential.
func NewClient(
	t *testing.T,
	baseURL string,
	token string,
	opts ...session.Option,
) *session.Client {
	t.Helper()
	return session.New(baseURL, NewCredentials(t, token), opts...)
}
