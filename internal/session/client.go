package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/webmail/internal/credential"
	"github.com/nhle/webmail/internal/logging"
)

// refreshKey is the single-flight key shared by every refresh.
const refreshKey = "refresh"

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client is the authenticated request layer. It attaches the stored
// access token as a bearer header and, when the API reports that the
// token expired, performs one refresh shared by all concurrent callers
// before replaying each affected request once.
//
// The refresh exchange authenticates with the ambient cookie set at
// login, never with the bearer header. A Client is safe for concurrent
// use.
type Client struct {
	baseURL     string
	refreshPath string
	httpClient  *http.Client
	creds       *credential.Store
	logger      *slog.Logger

	refreshGroup singleflight.Group
	onInvalid    func(error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is
// added when the client has none, since refresh depends on it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSessionInvalidHandler registers fn to be called whenever the
// session is torn down (failed refresh, rejected credential).
func WithSessionInvalidHandler(fn func(error)) Option {
	return func(c *Client) { c.onInvalid = fn }
}

// WithRefreshPath overrides the refresh endpoint path.
func WithRefreshPath(path string) Option {
	return func(c *Client) { c.refreshPath = path }
}

// New creates a Client for the API rooted at baseURL
// (e.g., https://mail.example.com/api).
func New(baseURL string, creds *credential.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		refreshPath: "/auth/refresh",
		creds:       creds,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}
	c.logger = logging.OrDiscard(c.logger)

	return c
}

// Credentials returns the credential store backing the client.
func (c *Client) Credentials() *credential.Store {
	return c.creds
}

// Get performs an HTTP GET request and unmarshals the response data.
func (c *Client) Get(
	ctx context.Context,
	path string,
	params url.Values,
	result interface{},
) error {
	return c.Request(ctx, http.MethodGet, path, nil, params, result)
}

// Post performs an HTTP POST request with a JSON body.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.Request(ctx, http.MethodPost, path, body, nil, result)
}

// Put performs an HTTP PUT request with a JSON body.
func (c *Client) Put(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.Request(ctx, http.MethodPut, path, body, nil, result)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.Request(ctx, http.MethodDelete, path, nil, nil, result)
}

// Request sends one API call. An expired-credential response triggers
// refresh arbitration and a single replay with the new token; a second
// expiry is fatal. Any other 401 on an authenticated call clears the
// session without attempting a refresh.
func (c *Client) Request(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	params url.Values,
	result interface{},
) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	token := c.creds.Token()
	err := c.send(ctx, method, path, payload, params, token, result)
	if err == nil || token == "" || !IsUnauthorized(err) {
		return err
	}

	if !IsTokenExpired(err) {
		c.invalidate(err)
		return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}

	fresh, err := c.refresh(ctx, token)
	if err != nil {
		return err
	}

	err = c.send(ctx, method, path, payload, params, fresh, result)
	if IsUnauthorized(err) {
		c.invalidate(err)
		return fmt.Errorf("%w: rejected after refresh: %w", ErrSessionInvalid, err)
	}
	return err
}

// refresh returns a usable token for a request that was rejected while
// carrying stale. Concurrent callers share one exchange; callers whose
// stale token was already replaced reuse the current one.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	ch := c.refreshGroup.DoChan(refreshKey, func() (interface{}, error) {
		if current := c.creds.Token(); current != stale {
			if current == "" {
				return "", ErrSessionInvalid
			}
			return current, nil
		}
		// Followers wait on this exchange; it must not die with the
		// leader's caller.
		return c.exchangeRefresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// exchangeRefresh calls the refresh endpoint and stores the new token.
func (c *Client) exchangeRefresh(ctx context.Context) (string, error) {
	c.logger.Debug("refreshing access token")

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	err := c.send(ctx, http.MethodPost, c.refreshPath, nil, nil, "", &out)
	if err == nil && out.AccessToken == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		c.invalidate(err)
		return "", fmt.Errorf("%w: refreshing access token: %w", ErrSessionInvalid, err)
	}

	if err := c.creds.Set(out.AccessToken); err != nil {
		c.logger.Warn("persisting refreshed credential", "error", err)
	}
	return out.AccessToken, nil
}

// invalidate clears the stored credential and notifies the handler.
func (c *Client) invalidate(cause error) {
	c.logger.Warn("session invalidated", "error", cause)
	if err := c.creds.Clear(); err != nil {
		c.logger.Warn("clearing credential", "error", err)
	}
	if c.onInvalid != nil {
		c.onInvalid(cause)
	}
}

// send performs a single HTTP exchange with the given bearer token
// (none when token is empty) and decodes the response envelope.
func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	payload []byte,
	params url.Values,
	token string,
	result interface{},
) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{
			Status: resp.StatusCode,
			Method: method,
			Path:   path,
		}
		var env envelope
		if json.Unmarshal(respBody, &env) == nil {
			httpErr.Code = env.Code
			httpErr.Message = env.Message
		}
		return httpErr
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w", method, path, err,
		)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf(
			"unmarshaling data from %s %s: %w", method, path, err,
		)
	}

	return nil
}
