package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/99designs/keyring"

	"github.com/nhle/webmail/internal/credential"
)

// fakeAPI accepts exactly one bearer token at a time and rotates it on
// refresh.
type fakeAPI struct {
	mu         sync.Mutex
	valid      string
	next       string
	expiredErr string

	refreshes     atomic.Int32
	refreshDelay  time.Duration
	refreshFails  bool
	alwaysExpired bool
	refreshBearer atomic.Value
	disconnects   atomic.Int32
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		f.refreshBearer.Store(r.Header.Get("Authorization"))
		time.Sleep(f.refreshDelay)

		cookie, err := r.Cookie("refreshToken")
		if err != nil || cookie.Value != "ambient" || f.refreshFails {
			writeTestJSON(w, http.StatusUnauthorized, envelope{Code: CodeRefreshInvalid, Message: "refresh rejected"})
			return
		}

		f.mu.Lock()
		f.valid = f.next
		token := f.valid
		f.mu.Unlock()

		data, _ := json.Marshal(map[string]string{"accessToken": token})
		writeTestJSON(w, http.StatusOK, envelope{Success: true, Data: data})
	})
	mux.HandleFunc("GET /data", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := f.valid
		f.mu.Unlock()

		if f.alwaysExpired || r.Header.Get("Authorization") != "Bearer "+valid {
			code := f.expiredErr
			if code == "" {
				code = CodeTokenExpired
			}
			writeTestJSON(w, http.StatusUnauthorized, envelope{Code: code, Message: "token rejected"})
			return
		}
		data, _ := json.Marshal(map[string]string{"value": "ok", "q": r.URL.Query().Get("q")})
		writeTestJSON(w, http.StatusOK, envelope{Success: true, Data: data})
	})
	mux.HandleFunc("POST /emails/send", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusBadRequest, envelope{Code: CodeValidation, Message: "Invalid recipient address: nope"})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			writeTestJSON(w, http.StatusUnauthorized, envelope{Code: CodeInvalidCredentials, Message: "Invalid email or password"})
			return
		}
		data, _ := json.Marshal(map[string]interface{}{
			"accessToken": "login-token",
			"user":        map[string]interface{}{"id": "u1", "name": "Ann", "email": body["email"]},
		})
		writeTestJSON(w, http.StatusOK, envelope{Success: true, Data: data})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusInternalServerError, envelope{Code: CodeInternal})
	})
	mux.HandleFunc("GET /auth/google", func(w http.ResponseWriter, r *http.Request) {
		data, _ := json.Marshal(map[string]string{"url": "https://accounts.example.com/o/auth?state=xyz"})
		writeTestJSON(w, http.StatusOK, envelope{Success: true, Data: data})
	})
	mux.HandleFunc("POST /auth/google/disconnect", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := f.valid
		f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			writeTestJSON(w, http.StatusUnauthorized, envelope{Code: CodeTokenInvalid, Message: "token rejected"})
			return
		}
		f.disconnects.Add(1)
		writeTestJSON(w, http.StatusOK, envelope{Success: true})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusNotFound, envelope{Code: CodeNotFound, Message: "user not found"})
	})
	return mux
}

func writeTestJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestClient builds a Client against srv whose stored credential is
// token and whose cookie jar already holds the ambient refresh cookie.
func newTestClient(t *testing.T, srv *httptest.Server, token string, opts ...Option) *Client {
	t.Helper()

	var items []keyring.Item
	if token != "" {
		items = append(items, keyring.Item{Key: "accessToken", Data: []byte(token)})
	}
	creds, err := credential.NewStore(keyring.NewArrayKeyring(items), "accessToken")
	if err != nil {
		t.Fatalf("creating credential store: %v", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("creating cookie jar: %v", err)
	}
	u, _ := url.Parse(srv.URL)
	jar.SetCookies(u, []*http.Cookie{{Name: "refreshToken", Value: "ambient", Path: "/"}})

	opts = append([]Option{WithHTTPClient(&http.Client{Jar: jar})}, opts...)
	return New(srv.URL, creds, opts...)
}

func TestRequest_AttachesBearer(t *testing.T) {
	api := &fakeAPI{valid: "good"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "good")

	var out map[string]string
	err := c.Get(context.Background(), "/data", url.Values{"q": {"hello"}}, &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out["value"] != "ok" || out["q"] != "hello" {
		t.Errorf("unexpected payload %v", out)
	}
	if api.refreshes.Load() != 0 {
		t.Errorf("valid token must not refresh, got %d refreshes", api.refreshes.Load())
	}
}

func TestRequest_ConcurrentExpiryRefreshesOnce(t *testing.T) {
	api := &fakeAPI{valid: "", next: "fresh", refreshDelay: 50 * time.Millisecond}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "stale")

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out map[string]string
			if err := c.Get(context.Background(), "/data", nil, &out); err != nil {
				errs <- err
				return
			}
			if out["value"] != "ok" {
				errs <- errors.New("unexpected payload")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("request failed: %v", err)
	}
	if got := api.refreshes.Load(); got != 1 {
		t.Errorf("expected exactly one refresh, got %d", got)
	}
	if got := c.Credentials().Token(); got != "fresh" {
		t.Errorf("credential = %q, want fresh", got)
	}
}

func TestRequest_ExpiryAfterRefreshIsFatal(t *testing.T) {
	api := &fakeAPI{next: "fresh", alwaysExpired: true}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	var invalidated atomic.Int32
	c := newTestClient(t, srv, "stale", WithSessionInvalidHandler(func(error) {
		invalidated.Add(1)
	}))

	err := c.Get(context.Background(), "/data", nil, nil)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if got := api.refreshes.Load(); got != 1 {
		t.Errorf("expected a single refresh, got %d", got)
	}
	if c.Credentials().Authenticated() {
		t.Error("credential should be cleared")
	}
	if invalidated.Load() != 1 {
		t.Errorf("invalid handler called %d times", invalidated.Load())
	}
}

func TestRequest_RefreshFailureEndsSession(t *testing.T) {
	api := &fakeAPI{refreshFails: true}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	var invalidated atomic.Int32
	c := newTestClient(t, srv, "stale", WithSessionInvalidHandler(func(error) {
		invalidated.Add(1)
	}))

	err := c.Get(context.Background(), "/data", nil, nil)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}

	if got := api.refreshes.Load(); got != 1 {
		t.Errorf("expected one refresh attempt, got %d", got)
	}
	if c.Credentials().Token() != "" {
		t.Error("credential should be cleared after refresh failure")
	}
	if invalidated.Load() != 1 {
		t.Errorf("invalid handler called %d times, want 1", invalidated.Load())
	}
}

func TestRequest_RefreshUsesAmbientCredentialOnly(t *testing.T) {
	api := &fakeAPI{next: "fresh"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "stale")
	if err := c.Get(context.Background(), "/data", nil, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if bearer, _ := api.refreshBearer.Load().(string); bearer != "" {
		t.Errorf("refresh must not carry a bearer header, got %q", bearer)
	}
}

func TestRequest_OtherUnauthorizedDoesNotRefresh(t *testing.T) {
	api := &fakeAPI{valid: "good", expiredErr: CodeTokenInvalid}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "revoked")

	err := c.Get(context.Background(), "/data", nil, nil)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if api.refreshes.Load() != 0 {
		t.Errorf("TOKEN_INVALID must not refresh, got %d", api.refreshes.Load())
	}
	if c.Credentials().Authenticated() {
		t.Error("credential should be cleared")
	}
}

func TestRequest_ValidationErrorCarriesMessage(t *testing.T) {
	api := &fakeAPI{valid: "good"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "good")

	err := c.Post(context.Background(), "/emails/send", map[string]string{"to": "nope"}, nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusBadRequest || httpErr.Code != CodeValidation {
		t.Errorf("unexpected error %+v", httpErr)
	}
	if got := UserMessage(err, "generic"); got != "Invalid recipient address: nope" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(errors.New("dial tcp: refused"), "generic"); got != "generic" {
		t.Errorf("UserMessage fallback = %q", got)
	}
	if !c.Credentials().Authenticated() {
		t.Error("validation errors must not touch the session")
	}
}

func TestLogin_StoresCredential(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "")
	acct, err := c.Login(context.Background(), "ann@test", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if acct.ID != "u1" || acct.Email != "ann@test" {
		t.Errorf("unexpected account %+v", acct)
	}
	if c.Credentials().Token() != "login-token" {
		t.Errorf("credential = %q", c.Credentials().Token())
	}
}

func TestLogin_BadPasswordDoesNotRefresh(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "leftover")
	_, err := c.Login(context.Background(), "ann@test", "wrong")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != CodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
	if api.refreshes.Load() != 0 {
		t.Errorf("bad credentials must not refresh")
	}
}

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	api := &fakeAPI{valid: "good"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "good")
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.Credentials().Authenticated() {
		t.Error("credential should be cleared after logout")
	}
}

func TestMe_FailureClearsCredential(t *testing.T) {
	api := &fakeAPI{valid: "good"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "good")
	if _, err := c.Me(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.Credentials().Authenticated() {
		t.Error("credential should be cleared")
	}

	if _, err := c.Me(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestAdoptToken(t *testing.T) {
	api := &fakeAPI{valid: "from-callback"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "")
	if err := c.AdoptToken(""); err == nil {
		t.Error("empty token should be rejected")
	}
	if c.Credentials().Authenticated() {
		t.Fatal("rejected token must not be stored")
	}

	if err := c.AdoptToken("from-callback"); err != nil {
		t.Fatalf("AdoptToken: %v", err)
	}
	var out struct {
		Value string `json:"value"`
	}
	if err := c.Get(context.Background(), "/data", nil, &out); err != nil {
		t.Fatalf("Get with adopted token: %v", err)
	}
	if out.Value != "ok" {
		t.Errorf("value = %q", out.Value)
	}
	if api.refreshes.Load() != 0 {
		t.Error("adopted token should be used as is")
	}
}

func TestProviderLinking(t *testing.T) {
	api := &fakeAPI{valid: "good"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "good")
	ctx := context.Background()

	u, err := c.ProviderAuthURL(ctx)
	if err != nil {
		t.Fatalf("ProviderAuthURL: %v", err)
	}
	if u != "https://accounts.example.com/o/auth?state=xyz" {
		t.Errorf("url = %q", u)
	}

	if err := c.DisconnectProvider(ctx); err != nil {
		t.Fatalf("DisconnectProvider: %v", err)
	}
	if api.disconnects.Load() != 1 {
		t.Errorf("disconnect calls = %d", api.disconnects.Load())
	}

	stale := newTestClient(t, srv, "revoked")
	if err := stale.DisconnectProvider(ctx); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("rejected credential: got %v, want ErrSessionInvalid", err)
	}
	if api.disconnects.Load() != 1 {
		t.Error("rejected disconnect must not count")
	}
}
