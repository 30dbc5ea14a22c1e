package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/workbox-dev/workbox/internal/auth"
	"github.com/workbox-dev/workbox/internal/config"
	"github.com/workbox-dev/workbox/internal/logger"
	"github.com/workbox-dev/workbox/internal/objstore"
)

func newAuthStack(t *testing.T) (*auth.Authority, http.Handler) {
	t.Helper()

	authority := auth.NewAuthority(&config.Config{}, objstore.NewMemory(), logger.NewNop())
	handler := Auth(authority, &config.Config{}, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}),
	)
	return authority, handler
}

func TestClassifyRoute(t *testing.T) {
	tests := []struct {
		path string
		want RouteClass
	}{
		{"/ws", RouteSocket},
		{"/ws/terminal", RouteSocket},
		{"/api/files", RouteAPI},
		{"/", RoutePage},
		{"/editor", RoutePage},
		{"/wsomething", RoutePage},
	}
	for _, tt := range tests {
		if got := ClassifyRoute(tt.path); got != tt.want {
			t.Errorf("ClassifyRoute(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestUnauthorizedSocketIsBare401(t *testing.T) {
	_, handler := newAuthStack(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?session=a", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("socket 401 carries Location %q", loc)
	}
}

func TestUnauthorizedAPIIsJSON(t *testing.T) {
	_, handler := newAuthStack(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %q, want success:false envelope", rec.Body.String())
	}
}

func TestUnauthorizedPageRedirectsWithNext(t *testing.T) {
	_, handler := newAuthStack(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/editor?session=a", nil))

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/login?next=") || !strings.Contains(loc, "%2Feditor") {
		t.Errorf("Location = %q", loc)
	}
}

func TestInvalidTokenClearsCookie(t *testing.T) {
	_, handler := newAuthStack(t)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "stale"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	cleared := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == auth.SessionCookie && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("stale session cookie not cleared")
	}
}

func TestMissingCookieDoesNotClearCookie(t *testing.T) {
	_, handler := newAuthStack(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == auth.SessionCookie {
			t.Error("Set-Cookie emitted with no token present")
		}
	}
}

func TestValidSessionPassesAndAttaches(t *testing.T) {
	authority := auth.NewAuthority(&config.Config{}, objstore.NewMemory(), logger.NewNop())

	token, _, err := authority.CreateSession(context.Background(), auth.User{Login: "octo"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var seen *auth.Session
	inner := Auth(authority, &config.Config{}, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetSession(r.Context())
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	inner.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.User.Login != "octo" {
		t.Errorf("context session = %+v", seen)
	}
}

func TestPublicPathsBypass(t *testing.T) {
	_, handler := newAuthStack(t)

	for _, path := range []string{"/login", "/auth/login", "/auth/callback", "/healthz", "/assets/app.js"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("public path %s blocked with %d", path, rec.Code)
		}
	}
}

func TestDevBypassOnlyForLocalhost(t *testing.T) {
	authority := auth.NewAuthority(&config.Config{}, objstore.NewMemory(), logger.NewNop())
	handler := Auth(authority, &config.Config{DevAuthBypass: true}, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Host = "localhost:8080"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("localhost bypass failed: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Host = "workbox.example.com"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("non-local host bypassed auth: %d", rec.Code)
	}
}
