package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubMembership struct {
	State string `json:"state"`
}

type githubTeam struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (a *Authority) apiClient(ctx context.Context, accessToken string) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
}

func (a *Authority) apiGet(ctx context.Context, accessToken, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	return a.apiClient(ctx, accessToken).Do(req)
}

func (a *Authority) fetchGitHubUser(ctx context.Context, accessToken string) (*githubUser, error) {
	resp, err := a.apiGet(ctx, accessToken, "/user")
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("fetch user: %s: %s", resp.Status, body)
	}

	var user githubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// checkOrgMembership reports whether the token's user is an active member
// of the org. A 404 means "not a member", not an error; any other
// non-success status is a hard failure.
func (a *Authority) checkOrgMembership(ctx context.Context, accessToken, org string) (bool, error) {
	resp, err := a.apiGet(ctx, accessToken, "/user/memberships/orgs/"+org)
	if err != nil {
		return false, fmt.Errorf("check org membership: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("check org membership: %s", resp.Status)
	}

	var membership githubMembership
	if err := json.NewDecoder(resp.Body).Decode(&membership); err != nil {
		return false, fmt.Errorf("decode org membership: %w", err)
	}
	return membership.State == "active", nil
}

// checkTeamMembership resolves the configured team by name or slug among
// the org's teams, then checks the user's membership on it. A team missing
// from the org is a configuration-level hard failure, distinct from the
// user simply not being on it.
func (a *Authority) checkTeamMembership(ctx context.Context, accessToken, org, team, login string) (bool, error) {
	resp, err := a.apiGet(ctx, accessToken, "/orgs/"+org+"/teams?per_page=100")
	if err != nil {
		return false, fmt.Errorf("list org teams: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("list org teams: %s", resp.Status)
	}

	var teams []githubTeam
	if err := json.NewDecoder(resp.Body).Decode(&teams); err != nil {
		return false, fmt.Errorf("decode org teams: %w", err)
	}

	var target *githubTeam
	for i := range teams {
		if teams[i].Name == team || teams[i].Slug == team {
			target = &teams[i]
			break
		}
	}
	if target == nil {
		return false, fmt.Errorf("configured team %q was not found in org %s", team, org)
	}

	memberResp, err := a.apiGet(ctx, accessToken, fmt.Sprintf("/teams/%d/memberships/%s", target.ID, login))
	if err != nil {
		return false, fmt.Errorf("check team membership: %w", err)
	}
	defer memberResp.Body.Close()

	if memberResp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if memberResp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("check team membership: %s", memberResp.Status)
	}

	var membership githubMembership
	if err := json.NewDecoder(memberResp.Body).Decode(&membership); err != nil {
		return false, fmt.Errorf("decode team membership: %w", err)
	}
	return membership.State == "active", nil
}
