// Package github talks to GitHub's OAuth and REST APIs: building the
// authorization URL, exchanging codes for tokens, and reading the profile
// and verified email of the authorized user.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	kd "github.com/kumori-disk/kumori-disk"
)

// OAuthScopes requested during authorization. user:email is what lets us
// read the verified primary address.
var OAuthScopes = []string{"read:user", "user:email"}

// Profile is the subset of the GitHub user we care about.
type Profile struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type email struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Client is the GitHub OAuth provider client.
type Client struct {
	ClientID     string
	ClientSecret string

	// APIBaseURL and AuthBaseURL default to GitHub's public endpoints.
	// Overridable for testing against an httptest server.
	APIBaseURL  string
	AuthBaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// NewClient creates a client against the public GitHub API.
func NewClient(clientID, clientSecret string) *Client {
	return &Client{ClientID: clientID, ClientSecret: clientSecret}
}

func (c *Client) apiBaseURL() string {
	if c.APIBaseURL != "" {
		return strings.TrimSuffix(c.APIBaseURL, "/")
	}
	return "https://api.github.com"
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) oauthConfig(redirectURI string) *oauth2.Config {
	cfg := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       OAuthScopes,
		Endpoint:     githuboauth.Endpoint,
	}
	if c.AuthBaseURL != "" {
		base := strings.TrimSuffix(c.AuthBaseURL, "/")
		cfg.Endpoint = oauth2.Endpoint{
			AuthURL:  base + "/login/oauth/authorize",
			TokenURL: base + "/login/oauth/access_token",
		}
	}
	return cfg
}

// AuthorizeURL builds the authorization URL for the given redirect URI.
// No state parameter is attached; callers wanting CSRF protection have to
// add one themselves.
func (c *Client) AuthorizeURL(redirectURI string) string {
	cfg := c.oauthConfig(redirectURI)

	query := url.Values{}
	query.Set("client_id", c.ClientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("scope", strings.Join(OAuthScopes, " "))

	return cfg.Endpoint.AuthURL + "?" + query.Encode()
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	cfg := c.oauthConfig("")
	if c.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: code exchange failed: %v", kd.ErrProviderAuthFailure, err)
	}
	return token.AccessToken, nil
}

// FetchProfile returns the authenticated user's GitHub profile.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var profile Profile
	if err := c.getJSON(ctx, "/user", accessToken, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FetchVerifiedEmail returns the user's primary verified email address.
// Without one this authorization has no resolvable identity, which is a
// provider failure.
func (c *Client) FetchVerifiedEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []email
	if err := c.getJSON(ctx, "/user/emails", accessToken, &emails); err != nil {
		return "", err
	}
	for _, record := range emails {
		if record.Primary && record.Verified {
			return record.Email, nil
		}
	}
	return "", fmt.Errorf("%w: no verified primary email", kd.ErrProviderAuthFailure)
}

func (c *Client) getJSON(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL()+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: github unreachable: %v", kd.ErrProviderAuthFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read github response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: github returned %d", kd.ErrProviderAuthFailure, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse github response: %w", err)
	}
	return nil
}
