package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/nhle/webmail/internal/server"
	"github.com/nhle/webmail/internal/store"
)

// TestServer is a reference mail server on an in-memory store.
type TestServer struct {
	*httptest.Server
	Store *store.SQLiteStore
}

// BaseURL returns the API root clients should use.
func (ts *TestServer) BaseURL() string {
	return ts.URL + "/api"
}

// NewTestServer starts a reference server with a fixed signing secret.
// It is shut down when the test completes.
func NewTestServer(t *testing.T, cfg server.Config, opts ...server.Option) *TestServer {
	t.Helper()

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	st := NewTestStore(t)
	srv := httptest.NewServer(server.New(st, cfg, opts...).Handler())
	t.Cleanup(srv.Close)

	return &TestServer{Server: srv, Store: st}
}
