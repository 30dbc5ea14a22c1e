// Package auth implements the OAuth-gated session layer: the GitHub login
// flow, org/team authorization, and session records persisted in the object
// store.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/workbox-dev/workbox/internal/objstore"
)

const (
	// SessionCookie carries the auth session token.
	SessionCookie = "workbox_auth_session"
	// StateCookie carries the OAuth state nonce between login and callback.
	StateCookie = "workbox_oauth_state"
	// NextCookie carries the post-login redirect target.
	NextCookie = "workbox_oauth_next"

	// SessionTTL is the fixed lifetime of an auth session.
	SessionTTL = 7 * 24 * time.Hour
	// TransactionTTL is the lifetime of the OAuth state/next cookies.
	TransactionTTL = 10 * time.Minute

	sessionKeyPrefix = "auth/sessions"

	// maxReasonLength caps user-facing failure reasons on the login page.
	maxReasonLength = 220
)

// User is the authenticated GitHub identity attached to a session.
type User struct {
	ID     int64  `json:"id"`
	Login  string `json:"login"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Email  string `json:"email,omitempty"`
	Org    string `json:"org"`
	Team   string `json:"team,omitempty"`
}

// Session is the persisted authenticated-session record. ExpiresAt is epoch
// milliseconds, matching the wire format of the stored JSON.
type Session struct {
	SessionID string `json:"sessionId"`
	ExpiresAt int64  `json:"expiresAt"`
	User      User   `json:"user"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.UnixMilli()
}

func sessionKey(token string) string {
	return fmt.Sprintf("%s/%s.json", sessionKeyPrefix, token)
}

// NewToken generates a random opaque token for sessions and OAuth state.
func NewToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TruncateReason caps a user-facing failure reason.
func TruncateReason(reason string) string {
	if len(reason) > maxReasonLength {
		return reason[:maxReasonLength]
	}
	return reason
}

// LoadSession reads and validates a session record. Expired records are
// lazily deleted. Returns nil without error when no valid session exists.
func (a *Authority) LoadSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	data, err := a.store.Get(ctx, sessionKey(token))
	if err != nil {
		if err == objstore.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, nil
	}

	if session.ExpiresAt == 0 || session.Expired(time.Now()) {
		_ = a.store.Delete(ctx, sessionKey(token))
		return nil, nil
	}

	return &session, nil
}

// CreateSession mints a token, persists the record with the fixed TTL, and
// returns both.
func (a *Authority) CreateSession(ctx context.Context, user User) (string, *Session, error) {
	token, err := NewToken()
	if err != nil {
		return "", nil, err
	}

	session := &Session{
		SessionID: token,
		ExpiresAt: time.Now().Add(SessionTTL).UnixMilli(),
		User:      user,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return "", nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := a.store.Put(ctx, sessionKey(token), data); err != nil {
		return "", nil, fmt.Errorf("save session: %w", err)
	}

	return token, session, nil
}

// DeleteSession removes a session record. Absent records are not an error.
func (a *Authority) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.store.Delete(ctx, sessionKey(token))
}
