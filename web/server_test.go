package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/auth"
	"github.com/kumori-disk/kumori-disk/cache"
	"github.com/kumori-disk/kumori-disk/cryptox"
	"github.com/kumori-disk/kumori-disk/github"
	"github.com/kumori-disk/kumori-disk/jwt"
	"github.com/kumori-disk/kumori-disk/web"
)

// memUsers is an in-memory kd.UserStore for handler tests.
type memUsers struct {
	mu     sync.Mutex
	users  map[string]*kd.User
	nextID int
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*kd.User)}
}

func (s *memUsers) Create(ctx context.Context, data kd.CreateUser) (*kd.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user := &kd.User{
		ID:                 fmt.Sprintf("user-%d", s.nextID),
		Email:              data.Email,
		Username:           data.Username,
		PasswordHash:       data.PasswordHash,
		ConfirmationStatus: data.ConfirmationStatus,
		DiskSpaceBytes:     data.DiskSpaceBytes,
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *memUsers) FindByEmail(ctx context.Context, email string) (*kd.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memUsers) FindByID(ctx context.Context, id string) (*kd.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *memUsers) ExistsByID(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *memUsers) UpdateConfirmationStatus(ctx context.Context, id string, status kd.ConfirmationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return false, nil
	}
	user.ConfirmationStatus = status
	return true, nil
}

func (s *memUsers) SubtractDiskSpace(ctx context.Context, id string, bytes int64) (bool, error) {
	return false, nil
}

// memLinks is an in-memory kd.ProviderLinkStore.
type memLinks struct {
	mu    sync.Mutex
	links []*kd.ProviderLink
}

func (s *memLinks) FindByUserAndProvider(ctx context.Context, userID string, provider kd.Provider) (*kd.ProviderLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.links {
		if link.UserID == userID {
			copied := *link
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memLinks) Create(ctx context.Context, link *kd.ProviderLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *link
	s.links = append(s.links, &copied)
	return nil
}

func (s *memLinks) FindProviderByName(ctx context.Context, name kd.Provider) (*kd.ProviderDescriptor, error) {
	return &kd.ProviderDescriptor{ID: "provider-github", Name: name}, nil
}

type stubGithubClient struct{}

func (stubGithubClient) AuthorizeURL(redirectURI string) string {
	return "https://github.test/authorize?redirect_uri=" + redirectURI
}

func (stubGithubClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	return "gh-token", nil
}

func (stubGithubClient) FetchProfile(ctx context.Context, accessToken string) (*github.Profile, error) {
	return &github.Profile{ID: 4242, Login: "octocat"}, nil
}

func (stubGithubClient) FetchVerifiedEmail(ctx context.Context, accessToken string) (string, error) {
	return "octocat@example.com", nil
}

type nullMailer struct{}

func (nullMailer) Send(ctx context.Context, mail kd.SendMail) error { return nil }

type serverFixture struct {
	server *httptest.Server
	client *http.Client
	users  *memUsers
	issuer *jwt.Issuer
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	users := newMemUsers()
	hasher := &cryptox.BcryptHasher{Cost: 4}
	issuer := jwt.NewIssuer("test-secret", "kumori-disk")

	local := auth.NewLocal(auth.LocalConfig{
		Users:         users,
		Confirmations: kd.NewConfirmationStore(cache.NewMemoryCache()),
		Hasher:        hasher,
		Tokens:        issuer,
		Mailer:        nullMailer{},
		AppProtocol:   "http",
		AppDomain:     "localhost:4000",
	})
	githubAuth := auth.NewGithub(auth.GithubConfig{
		Users:       users,
		Links:       &memLinks{},
		Client:      stubGithubClient{},
		Tokens:      issuer,
		Hasher:      hasher,
		Mailer:      nullMailer{},
		AppProtocol: "http",
		AppDomain:   "localhost:4000",
	})

	server := httptest.NewServer(web.NewServer(web.ServerConfig{
		Local:  local,
		Github: githubAuth,
		Users:  users,
	}).Handler())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &serverFixture{
		server: server,
		client: &http.Client{Jar: jar},
		users:  users,
		issuer: issuer,
	}
}

func (f *serverFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := f.client.Post(f.server.URL+path, "application/json", bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func (f *serverFixture) signUp(t *testing.T, email string) {
	t.Helper()
	resp := f.postJSON(t, "/auth/sign-up", map[string]string{
		"email":    email,
		"username": "tester",
		"password": "password123",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sign-up returned %d", resp.StatusCode)
	}
}

func (f *serverFixture) confirm(t *testing.T, email string) {
	t.Helper()
	user, err := f.users.FindByEmail(context.Background(), email)
	if err != nil || user == nil {
		t.Fatalf("user %q missing: %v", email, err)
	}
	if _, err := f.users.UpdateConfirmationStatus(context.Background(), user.ID, kd.ConfirmationConfirmed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
}

func TestSignUpEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp := f.postJSON(t, "/auth/sign-up", map[string]string{
		"email":    "new@example.com",
		"username": "tester",
		"password": "password123",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var user kd.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("email = %q", user.Email)
	}
	if user.PasswordHash != "" {
		t.Error("password hash must never be serialized")
	}
}

func TestErrorStatusMapping(t *testing.T) {
	f := newServerFixture(t)
	f.signUp(t, "taken@example.com")

	tests := []struct {
		name   string
		path   string
		body   map[string]string
		status int
	}{
		{
			name:   "duplicate email conflicts",
			path:   "/auth/sign-up",
			body:   map[string]string{"email": "taken@example.com", "username": "x", "password": "y"},
			status: http.StatusConflict,
		},
		{
			name:   "unknown user not found",
			path:   "/auth/sign-in",
			body:   map[string]string{"email": "ghost@example.com", "password": "password123"},
			status: http.StatusNotFound,
		},
		{
			name:   "unconfirmed forbidden",
			path:   "/auth/sign-in",
			body:   map[string]string{"email": "taken@example.com", "password": "password123"},
			status: http.StatusForbidden,
		},
		{
			name:   "invalid hash conflicts",
			path:   "/auth/confirm-email",
			body:   map[string]string{"hash": "bogus"},
			status: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.postJSON(t, tt.path, tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestSignInReturnsTokenPair(t *testing.T) {
	f := newServerFixture(t)
	f.signUp(t, "user@example.com")
	f.confirm(t, "user@example.com")

	resp := f.postJSON(t, "/auth/sign-in", map[string]string{
		"email":    "user@example.com",
		"password": "password123",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		User   kd.User       `json:"user"`
		Tokens *kd.TokenPair `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Tokens == nil || body.Tokens.AccessToken == "" || body.Tokens.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if body.User.PasswordHash != "" {
		t.Error("password hash must never be serialized")
	}

	subject, err := f.issuer.Verify(body.Tokens.AccessToken, kd.TokenKindAccess)
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if subject != body.User.ID {
		t.Errorf("access subject = %q, want %q", subject, body.User.ID)
	}
}

func TestWrongPasswordUnauthorized(t *testing.T) {
	f := newServerFixture(t)
	f.signUp(t, "user@example.com")
	f.confirm(t, "user@example.com")

	resp := f.postJSON(t, "/auth/sign-in", map[string]string{
		"email":    "user@example.com",
		"password": "wrong",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestSessionFlow(t *testing.T) {
	f := newServerFixture(t)
	f.signUp(t, "user@example.com")
	f.confirm(t, "user@example.com")

	// Not signed in yet.
	resp, err := f.client.Get(f.server.URL + "/users/me")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", resp.StatusCode)
	}

	// Sign in; the cookie jar keeps the session.
	resp = f.postJSON(t, "/auth/sign-in", map[string]string{
		"email":    "user@example.com",
		"password": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign-in status = %d", resp.StatusCode)
	}

	resp, err = f.client.Get(f.server.URL + "/users/me")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	var user kd.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d", resp.StatusCode)
	}
	if user.Email != "user@example.com" {
		t.Errorf("email = %q", user.Email)
	}

	// Sign out ends the session.
	resp = f.postJSON(t, "/auth/sign-out", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign-out status = %d", resp.StatusCode)
	}

	resp, err = f.client.Get(f.server.URL + "/users/me")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("post-signout status = %d", resp.StatusCode)
	}
}

func TestGithubCallback(t *testing.T) {
	f := newServerFixture(t)

	resp, err := f.client.Get(f.server.URL + "/auth/github?code=auth-code")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var pair kd.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("expected a full token pair")
	}
}

func TestGithubCallbackMissingCode(t *testing.T) {
	f := newServerFixture(t)

	resp, err := f.client.Get(f.server.URL + "/auth/github")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestGithubAuthorizeURLEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, err := f.client.Get(f.server.URL + "/auth/github/url")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["url"] == "" {
		t.Error("expected an authorize url")
	}
}
