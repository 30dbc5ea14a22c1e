package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/workbox-dev/workbox/internal/config"
	"github.com/workbox-dev/workbox/internal/logger"
	"github.com/workbox-dev/workbox/internal/objstore"
)

func newTestAuthority(t *testing.T, cfg *config.Config, api http.Handler) (*Authority, *objstore.Memory) {
	t.Helper()

	store := objstore.NewMemory()
	opts := []Option{}
	if api != nil {
		srv := httptest.NewServer(api)
		t.Cleanup(srv.Close)
		opts = append(opts, WithAPIBase(srv.URL))
	}

	return NewAuthority(cfg, store, logger.NewNop(), opts...), store
}

func TestSanitizeNextPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/editor?session=a", "/editor?session=a"},
		{"relative", "/"},
		{"//evil.example.com", "/"},
		{"https://evil.example.com", "/"},
	}
	for _, tt := range tests {
		if got := SanitizeNextPath(tt.in); got != tt.want {
			t.Errorf("SanitizeNextPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAuthCodeURLRequiresConfig(t *testing.T) {
	a, _ := newTestAuthority(t, &config.Config{}, nil)
	if _, err := a.AuthCodeURL("http://localhost/auth/callback", "state1"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}

	a, _ = newTestAuthority(t, &config.Config{GitHubClientID: "id", GitHubAllowedOrg: "acme"}, nil)
	url, err := a.AuthCodeURL("http://localhost/auth/callback", "state1")
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}
	if url == "" {
		t.Error("empty authorize URL")
	}
}

func TestSessionLifecycle(t *testing.T) {
	a, store := newTestAuthority(t, &config.Config{}, nil)
	ctx := context.Background()

	token, session, err := a.CreateSession(ctx, User{ID: 7, Login: "octo", Org: "acme"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.SessionID != token {
		t.Errorf("session id %q != token %q", session.SessionID, token)
	}

	loaded, err := a.LoadSession(ctx, token)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if loaded == nil || loaded.User.Login != "octo" {
		t.Fatalf("loaded = %+v", loaded)
	}

	if err := a.DeleteSession(ctx, token); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if loaded, _ := a.LoadSession(ctx, token); loaded != nil {
		t.Error("session survived deletion")
	}
	if store.Len() != 0 {
		t.Errorf("store has %d leftover objects", store.Len())
	}
}

func TestLoadSessionLazilyDeletesExpired(t *testing.T) {
	a, store := newTestAuthority(t, &config.Config{}, nil)
	ctx := context.Background()

	expired := &Session{
		SessionID: "tok",
		ExpiresAt: time.Now().Add(-time.Minute).UnixMilli(),
		User:      User{Login: "octo"},
	}
	data, _ := json.Marshal(expired)
	if err := store.Put(ctx, sessionKey("tok"), data); err != nil {
		t.Fatal(err)
	}

	loaded, err := a.LoadSession(ctx, "tok")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if loaded != nil {
		t.Errorf("expired session loaded: %+v", loaded)
	}
	if store.Len() != 0 {
		t.Error("expired record not lazily deleted")
	}
}

func TestLoadSessionMissingToken(t *testing.T) {
	a, _ := newTestAuthority(t, &config.Config{}, nil)
	if loaded, err := a.LoadSession(context.Background(), ""); err != nil || loaded != nil {
		t.Errorf("empty token: %+v, %v", loaded, err)
	}
	if loaded, err := a.LoadSession(context.Background(), "nope"); err != nil || loaded != nil {
		t.Errorf("unknown token: %+v, %v", loaded, err)
	}
}

func githubAPIStub(orgStatus int, orgState string, teams []githubTeam, teamStatus int, teamState string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(githubUser{ID: 1, Login: "octo", Name: "Octo Cat", AvatarURL: "https://a", Email: "octo@acme.dev"})
	})
	mux.HandleFunc("/user/memberships/orgs/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(orgStatus)
		if orgStatus == http.StatusOK {
			_ = json.NewEncoder(w).Encode(githubMembership{State: orgState})
		}
	})
	mux.HandleFunc("/orgs/", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(teams)
	})
	mux.HandleFunc("/teams/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(teamStatus)
		if teamStatus == http.StatusOK {
			_ = json.NewEncoder(w).Encode(githubMembership{State: teamState})
		}
	})
	return mux
}

func TestAuthorizeUserOrgMember(t *testing.T) {
	cfg := &config.Config{GitHubClientID: "id", GitHubAllowedOrg: "acme"}
	a, _ := newTestAuthority(t, cfg, githubAPIStub(http.StatusOK, "active", nil, 0, ""))

	user, err := a.AuthorizeUser(context.Background(), "tok")
	if err != nil {
		t.Fatalf("AuthorizeUser: %v", err)
	}
	if user.Login != "octo" || user.Org != "acme" {
		t.Errorf("user = %+v", user)
	}
}

func TestAuthorizeUserNotInOrg(t *testing.T) {
	cfg := &config.Config{GitHubClientID: "id", GitHubAllowedOrg: "acme"}
	a, _ := newTestAuthority(t, cfg, githubAPIStub(http.StatusNotFound, "", nil, 0, ""))

	_, err := a.AuthorizeUser(context.Background(), "tok")
	var notAuthorized *NotAuthorizedError
	if !errors.As(err, &notAuthorized) {
		t.Fatalf("err = %v, want NotAuthorizedError", err)
	}
}

func TestAuthorizeUserPendingOrgMembership(t *testing.T) {
	cfg := &config.Config{GitHubClientID: "id", GitHubAllowedOrg: "acme"}
	a, _ := newTestAuthority(t, cfg, githubAPIStub(http.StatusOK, "pending", nil, 0, ""))

	var notAuthorized *NotAuthorizedError
	if _, err := a.AuthorizeUser(context.Background(), "tok"); !errors.As(err, &notAuthorized) {
		t.Fatalf("pending membership not rejected: %v", err)
	}
}

func TestAuthorizeUserOrgCheckHardFailure(t *testing.T) {
	cfg := &config.Config{GitHubClientID: "id", GitHubAllowedOrg: "acme"}
	a, _ := newTestAuthority(t, cfg, githubAPIStub(http.StatusBadGateway, "", nil, 0, ""))

	_, err := a.AuthorizeUser(context.Background(), "tok")
	var notAuthorized *NotAuthorizedError
	if err == nil || errors.As(err, &notAuthorized) {
		t.Fatalf("502 should be a hard failure, got %v", err)
	}
}

func TestAuthorizeUserTeamChecks(t *testing.T) {
	teams := []githubTeam{{ID: 42, Name: "Platform", Slug: "platform"}}

	tests := []struct {
		name           string
		team           string
		teams          []githubTeam
		teamStatus     int
		teamState      string
		wantAuthorized bool
		wantHard       bool
	}{
		{"member by slug", "platform", teams, http.StatusOK, "active", true, false},
		{"member by name", "Platform", teams, http.StatusOK, "active", true, false},
		{"not on team", "platform", teams, http.StatusNotFound, "", false, false},
		{"team missing from org", "ghost", teams, http.StatusOK, "active", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{GitHubClientID: "id", GitHubAllowedOrg: "acme", GitHubAllowedTeam: tt.team}
			a, _ := newTestAuthority(t, cfg, githubAPIStub(http.StatusOK, "active", tt.teams, tt.teamStatus, tt.teamState))

			user, err := a.AuthorizeUser(context.Background(), "tok")
			switch {
			case tt.wantAuthorized:
				if err != nil {
					t.Fatalf("AuthorizeUser: %v", err)
				}
				if user.Team != tt.team {
					t.Errorf("user.Team = %q", user.Team)
				}
			case tt.wantHard:
				var notAuthorized *NotAuthorizedError
				if err == nil || errors.As(err, &notAuthorized) {
					t.Fatalf("want hard failure, got %v", err)
				}
			default:
				var notAuthorized *NotAuthorizedError
				if !errors.As(err, &notAuthorized) {
					t.Fatalf("want NotAuthorizedError, got %v", err)
				}
			}
		})
	}
}

func TestTruncateReason(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += fmt.Sprintf("segment-%02d ", i)
	}
	if got := TruncateReason(long); len(got) != 220 {
		t.Errorf("len = %d, want 220", len(got))
	}
	if got := TruncateReason("short"); got != "short" {
		t.Errorf("short reason modified: %q", got)
	}
}
