package handler

import (
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/workbox-dev/workbox/internal/auth"
	"github.com/workbox-dev/workbox/internal/middleware"
)

//go:embed login.html
var loginHTML string

var loginTemplate = template.Must(template.New("login").Parse(loginHTML))

type loginPageData struct {
	Reason string
	Next   string
	Org    string
	Team   string
}

// LoginPage renders the login page. An already-authenticated visitor is sent
// straight to the app root.
// GET /login?next=...&reason=...
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	token := auth.CookieValue(r, auth.SessionCookie)
	if token != "" {
		if session, err := h.authority.LoadSession(r.Context(), token); err == nil && session != nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}

	data := loginPageData{
		Reason: auth.TruncateReason(r.URL.Query().Get("reason")),
		Next:   auth.SanitizeNextPath(r.URL.Query().Get("next")),
		Org:    h.authority.AllowedOrg(),
		Team:   h.authority.AllowedTeam(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginTemplate.Execute(w, data); err != nil {
		h.log.Error("render login page failed", "error", err)
	}
}

// callbackURL derives the absolute OAuth redirect URI from the incoming
// request so one deployment works behind any hostname.
func callbackURL(r *http.Request) string {
	scheme := "http"
	if auth.RequestIsSecure(r) {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/auth/callback", scheme, r.Host)
}

// AuthLogin starts the OAuth transaction: mints the state nonce, stows state
// and next-path in short-lived cookies, and redirects to GitHub.
// GET /auth/login?next=...
func (h *Handler) AuthLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.NewToken()
	if err != nil {
		h.log.Error("generate oauth state failed", "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to start login")
		return
	}

	authorizeURL, err := h.authority.AuthCodeURL(callbackURL(r), state)
	if err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			h.Fail(w, http.StatusInternalServerError, "GitHub OAuth is not configured")
			return
		}
		h.log.Error("build authorize url failed", "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to start login")
		return
	}

	next := auth.SanitizeNextPath(r.URL.Query().Get("next"))
	auth.SetTransactionCookies(w, r, state, next)
	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// loginRedirect sends the browser back to the login page with a reason.
func loginRedirect(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/login?reason="+url.QueryEscape(auth.TruncateReason(reason)), http.StatusFound)
}

// AuthCallback completes the OAuth transaction: validates the state nonce
// against the cookie, exchanges the code, runs the org/team gate, and on
// success mints the session and redirects to the stowed next path. Every
// outcome clears the transaction cookies.
// GET /auth/callback?code=...&state=...
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	auth.ClearTransactionCookies(w, r)

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		loginRedirect(w, r, "Missing code or state")
		return
	}

	cookieState := auth.CookieValue(r, auth.StateCookie)
	if cookieState == "" || cookieState != state {
		loginRedirect(w, r, "Invalid state. Please try again.")
		return
	}

	accessToken, err := h.authority.Exchange(r.Context(), callbackURL(r), code)
	if err != nil {
		h.log.Error("oauth exchange failed", "error", err)
		loginRedirect(w, r, err.Error())
		return
	}

	user, err := h.authority.AuthorizeUser(r.Context(), accessToken)
	if err != nil {
		var denied *auth.NotAuthorizedError
		if errors.As(err, &denied) {
			loginRedirect(w, r, denied.Reason)
			return
		}
		// Hard upstream failures carry their own message to the login page,
		// truncated like every other reason.
		h.log.Error("authorize user failed", "error", err)
		loginRedirect(w, r, err.Error())
		return
	}

	token, _, err := h.authority.CreateSession(r.Context(), *user)
	if err != nil {
		h.log.Error("create session failed", "error", err)
		loginRedirect(w, r, err.Error())
		return
	}

	auth.SetSessionCookie(w, r, token)
	next := auth.SanitizeNextPath(auth.CookieValue(r, auth.NextCookie))
	h.log.Info("user logged in", "login", user.Login)
	http.Redirect(w, r, next, http.StatusFound)
}

// AuthLogout deletes the session record, clears every auth cookie, and
// returns to the login page.
// GET /auth/logout
func (h *Handler) AuthLogout(w http.ResponseWriter, r *http.Request) {
	token := auth.CookieValue(r, auth.SessionCookie)
	if token != "" {
		if err := h.authority.DeleteSession(r.Context(), token); err != nil {
			h.log.Warn("delete session record failed", "error", err)
		}
	}

	auth.ClearSessionCookie(w, r)
	auth.ClearTransactionCookies(w, r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// AuthMe reports the caller's identity. Dev-bypassed requests have no
// session and report a null user; the envelope still succeeds so the UI can
// render.
// GET /api/auth/me
func (h *Handler) AuthMe(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"success":      true,
		"backendReady": h.authority.Configured(),
		"user":         nil,
	}
	if session := middleware.GetSession(r.Context()); session != nil {
		resp["user"] = session.User
	}
	h.JSON(w, http.StatusOK, resp)
}
