package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/webmail/internal/model"
)

// authResponse is returned by login and signup.
type authResponse struct {
	AccessToken string        `json:"accessToken"`
	User        model.Account `json:"user"`
}

// Login exchanges an email and password for a session.
func (c *Client) Login(
	ctx context.Context, email, password string,
) (*model.Account, error) {
	body := map[string]string{"email": email, "password": password}
	return c.startSession(ctx, "/auth/login", body)
}

// Signup creates an account and starts a session for it.
func (c *Client) Signup(
	ctx context.Context, name, email, password string,
) (*model.Account, error) {
	body := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}
	return c.startSession(ctx, "/auth/signup", body)
}

// startSession posts credentials without a bearer header, so a stale
// stored token never turns a bad password into a refresh attempt.
func (c *Client) startSession(
	ctx context.Context, path string, body interface{},
) (*model.Account, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	var out authResponse
	if err := c.send(ctx, http.MethodPost, path, payload, nil, "", &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s returned no access token", path)
	}
	if err := c.creds.Set(out.AccessToken); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// AdoptToken stores a credential obtained out of band, such as the
// token handed back by a social login callback.
func (c *Client) AdoptToken(token string) error {
	if token == "" {
		return errors.New("empty access token")
	}
	return c.creds.Set(token)
}

// Logout ends the session on the server and always clears the local
// credential, even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.Post(ctx, "/auth/logout", nil, nil); err != nil {
		c.logger.Debug("logout request failed", "error", err)
	}
	return c.creds.Clear()
}

// Me returns the signed-in account. A failure clears the stored
// credential so the caller falls back to the unauthenticated state.
func (c *Client) Me(ctx context.Context) (*model.Account, error) {
	if !c.creds.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	var out struct {
		User model.Account `json:"user"`
	}
	if err := c.Get(ctx, "/auth/me", nil, &out); err != nil {
		if clearErr := c.creds.Clear(); clearErr != nil {
			c.logger.Warn("clearing credential", "error", clearErr)
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}
	return &out.User, nil
}

// ProviderAuthURL returns the URL that starts linking a third-party
// mail provider to the account.
func (c *Client) ProviderAuthURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.Get(ctx, "/auth/google", nil, &out); err != nil {
		return "", fmt.Errorf("starting provider link: %w", err)
	}
	return out.URL, nil
}

// DisconnectProvider unlinks the third-party provider. Mailbox state
// built for the linked account must be discarded afterwards.
func (c *Client) DisconnectProvider(ctx context.Context) error {
	if err := c.Post(ctx, "/auth/google/disconnect", nil, nil); err != nil {
		return fmt.Errorf("disconnecting provider: %w", err)
	}
	return nil
}
