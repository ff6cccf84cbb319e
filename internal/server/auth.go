package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/session"
	"github.com/nhle/webmail/internal/store"
)

const (
	refreshCookie     = "refreshToken"
	minPasswordLength = 6
)

type ctxKey struct{}

// userID returns the authenticated user stored on the request context.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// authenticated requires a valid bearer token. An expired token answers
// TOKEN_EXPIRED so the client refreshes; anything else is TOKEN_INVALID.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, session.CodeTokenInvalid, "Authentication required")
			return
		}

		id, err := s.tokens.verify(raw)
		if errors.Is(err, errTokenExpired) {
			writeError(w, http.StatusUnauthorized, session.CodeTokenExpired, "Access token expired")
			return
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, session.CodeTokenInvalid, "Invalid access token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string        `json:"accessToken"`
	User        model.Account `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, session.CodeValidation, "Name is required")
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		writeError(w, http.StatusBadRequest, session.CodeValidation, "A valid email address is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, session.CodeValidation, "Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeError(w, http.StatusInternalServerError, session.CodeInternal, "Something went wrong")
		return
	}

	user, err := s.store.CreateUser(r.Context(), store.User{
		Name:         req.Name,
		Email:        strings.ToLower(addr.Address),
		PasswordHash: string(hash),
	})
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, session.CodeConflict, "Email already registered")
		return
	}
	if err != nil {
		s.writeStoreError(w, err, "user")
		return
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	s.startSession(w, r, user, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeStoreError(w, err, "user")
		return
	}
	if user == nil ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, session.CodeInvalidCredentials, "Invalid email or password")
		return
	}

	s.startSession(w, r, user, http.StatusOK)
}

// startSession creates a refresh session, sets its cookie and answers
// with a fresh access token.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user *store.User, status int) {
	sess, err := s.store.CreateSession(r.Context(), user.ID, s.cfg.RefreshTTL)
	if err != nil {
		s.writeStoreError(w, err, "session")
		return
	}
	token, err := s.tokens.issue(user.ID)
	if err != nil {
		s.logger.Error("issuing access token", "error", err)
		writeError(w, http.StatusInternalServerError, session.CodeInternal, "Something went wrong")
		return
	}

	s.setRefreshCookie(w, sess.ID, sess.ExpiresAt)
	writeData(w, status, authResponse{AccessToken: token, User: user.Account()})
}

// handleRefresh rotates the refresh session named by the cookie and
// issues a new access token. No bearer token is consulted.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, session.CodeRefreshInvalid, "Refresh token missing")
		return
	}

	ctx := r.Context()
	sess, err := s.store.GetSession(ctx, cookie.Value)
	if err != nil || !sess.ExpiresAt.After(s.now()) {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("loading refresh session", "error", err)
		}
		s.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, session.CodeRefreshInvalid, "Refresh token invalid or expired")
		return
	}

	if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
		s.writeStoreError(w, err, "session")
		return
	}
	next, err := s.store.CreateSession(ctx, sess.UserID, s.cfg.RefreshTTL)
	if err != nil {
		s.writeStoreError(w, err, "session")
		return
	}
	token, err := s.tokens.issue(sess.UserID)
	if err != nil {
		s.logger.Error("issuing access token", "error", err)
		writeError(w, http.StatusInternalServerError, session.CodeInternal, "Something went wrong")
		return
	}

	s.setRefreshCookie(w, next.ID, next.ExpiresAt)
	writeData(w, http.StatusOK, map[string]string{"accessToken": token})
}

// handleLogout ends the refresh session, if any. It succeeds without a
// valid access token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookie); err == nil && cookie.Value != "" {
		if err := s.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			s.logger.Warn("deleting refresh session", "error", err)
		}
	}
	s.clearRefreshCookie(w)
	writeData(w, http.StatusOK, map[string]string{})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUserByID(r.Context(), userID(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, session.CodeTokenInvalid, "Account no longer exists")
		return
	}
	if err != nil {
		s.writeStoreError(w, err, "user")
		return
	}
	writeData(w, http.StatusOK, map[string]model.Account{"user": user.Account()})
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
