package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"

	"github.com/workbox-dev/workbox/internal/config"
	"github.com/workbox-dev/workbox/internal/logger"
	"github.com/workbox-dev/workbox/internal/objstore"
)

// ErrNotConfigured indicates missing OAuth deployment configuration. This is
// an operator error, never retried automatically.
var ErrNotConfigured = errors.New("missing GitHub OAuth configuration")

// NotAuthorizedError is returned when a valid GitHub identity fails the
// org or team membership check. The message names the missing membership.
type NotAuthorizedError struct {
	Reason string
}

func (e *NotAuthorizedError) Error() string {
	return e.Reason
}

// Authority owns every authentication and authorization decision: the OAuth
// transaction, membership checks, and session record lifecycle. It never
// lets an error escape to the edge undecided; handlers translate its
// results into responses.
type Authority struct {
	cfg   *config.Config
	store objstore.Store
	log   *logger.Logger

	// apiBase points at the GitHub REST API; tests override it.
	apiBase string
	// endpoint is the OAuth2 authorize/token endpoint; tests override it.
	endpoint oauth2.Endpoint
}

// Option configures the Authority.
type Option func(*Authority)

// WithAPIBase overrides the GitHub API base URL (used by tests).
func WithAPIBase(base string) Option {
	return func(a *Authority) {
		a.apiBase = strings.TrimSuffix(base, "/")
	}
}

// WithEndpoint overrides the OAuth2 endpoint (used by tests).
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(a *Authority) {
		a.endpoint = endpoint
	}
}

// NewAuthority creates the session authority.
func NewAuthority(cfg *config.Config, store objstore.Store, log *logger.Logger, opts ...Option) *Authority {
	a := &Authority{
		cfg:      cfg,
		store:    store,
		log:      log,
		apiBase:  "https://api.github.com",
		endpoint: oauthgithub.Endpoint,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configured reports whether the login flow can run at all.
func (a *Authority) Configured() bool {
	return strings.TrimSpace(a.cfg.GitHubClientID) != "" && strings.TrimSpace(a.cfg.GitHubAllowedOrg) != ""
}

// AllowedOrg returns the configured organization gate.
func (a *Authority) AllowedOrg() string {
	return strings.TrimSpace(a.cfg.GitHubAllowedOrg)
}

// AllowedTeam returns the configured team gate, empty when org-wide access
// is enough.
func (a *Authority) AllowedTeam() string {
	return strings.TrimSpace(a.cfg.GitHubAllowedTeam)
}

func (a *Authority) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     strings.TrimSpace(a.cfg.GitHubClientID),
		ClientSecret: strings.TrimSpace(a.cfg.GitHubClientSecret),
		Scopes:       []string{"read:user", "read:org", "read:team"},
		Endpoint:     a.endpoint,
		RedirectURL:  redirectURL,
	}
}

// AuthCodeURL builds the upstream authorize URL for the login redirect.
// Fails with ErrNotConfigured when the client id or allowed org is missing.
func (a *Authority) AuthCodeURL(redirectURL, state string) (string, error) {
	if !a.Configured() {
		return "", ErrNotConfigured
	}
	return a.oauthConfig(redirectURL).AuthCodeURL(state), nil
}

// Exchange trades the callback code for an access token.
func (a *Authority) Exchange(ctx context.Context, redirectURL, code string) (string, error) {
	if strings.TrimSpace(a.cfg.GitHubClientID) == "" || strings.TrimSpace(a.cfg.GitHubClientSecret) == "" {
		return "", ErrNotConfigured
	}

	token, err := a.oauthConfig(redirectURL).Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	return token.AccessToken, nil
}

// AuthorizeUser fetches the GitHub identity behind the access token and
// verifies org (and, when configured, team) membership. Failing a
// membership check yields a NotAuthorizedError naming the requirement;
// upstream API failures propagate as plain errors.
func (a *Authority) AuthorizeUser(ctx context.Context, accessToken string) (*User, error) {
	org := a.AllowedOrg()
	if org == "" {
		return nil, ErrNotConfigured
	}

	ghUser, err := a.fetchGitHubUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	member, err := a.checkOrgMembership(ctx, accessToken, org)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, &NotAuthorizedError{Reason: fmt.Sprintf("Current account is not in org %s", org)}
	}

	team := a.AllowedTeam()
	if team != "" {
		onTeam, err := a.checkTeamMembership(ctx, accessToken, org, team, ghUser.Login)
		if err != nil {
			return nil, err
		}
		if !onTeam {
			return nil, &NotAuthorizedError{Reason: fmt.Sprintf("Current account is not in team %s", team)}
		}
	}

	name := ghUser.Name
	if name == "" {
		name = ghUser.Login
	}

	return &User{
		ID:     ghUser.ID,
		Login:  ghUser.Login,
		Name:   name,
		Avatar: ghUser.AvatarURL,
		Email:  ghUser.Email,
		Org:    org,
		Team:   team,
	}, nil
}

// SanitizeNextPath restricts a post-login redirect target to same-origin
// absolute paths. Protocol-relative "//" forms would be open redirects, so
// anything that is not a single-slash path collapses to "/".
func SanitizeNextPath(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "/"
	}
	return raw
}
