package github_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/github"
)

func TestAuthorizeURL(t *testing.T) {
	client := github.NewClient("client-id", "client-secret")

	raw := client.AuthorizeURL("http://localhost:4000/auth/github")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("authorize url does not parse: %v", err)
	}

	if parsed.Host != "github.com" {
		t.Errorf("unexpected host %q", parsed.Host)
	}
	query := parsed.Query()
	if got := query.Get("client_id"); got != "client-id" {
		t.Errorf("client_id = %q", got)
	}
	if got := query.Get("redirect_uri"); got != "http://localhost:4000/auth/github" {
		t.Errorf("redirect_uri = %q", got)
	}
	if got := query.Get("scope"); got != "read:user user:email" {
		t.Errorf("scope = %q", got)
	}
}

func TestExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/oauth/access_token" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("form does not parse: %v", err)
		}
		if got := r.Form.Get("code"); got != "auth-code" {
			t.Errorf("code = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer"}`))
	}))
	defer server.Close()

	client := github.NewClient("client-id", "client-secret")
	client.AuthBaseURL = server.URL
	client.HTTPClient = server.Client()

	token, err := client.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode failed: %v", err)
	}
	if token != "gh-token" {
		t.Errorf("expected gh-token, got %q", token)
	}
}

func TestFetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gh-token" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":4242,"login":"octocat","name":"The Octocat"}`))
	}))
	defer server.Close()

	client := github.NewClient("client-id", "client-secret")
	client.APIBaseURL = server.URL

	profile, err := client.FetchProfile(context.Background(), "gh-token")
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if profile.ID != 4242 {
		t.Errorf("id = %d", profile.ID)
	}
	if profile.Login != "octocat" {
		t.Errorf("login = %q", profile.Login)
	}
}

func TestFetchVerifiedEmail(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "picks primary verified",
			body: `[
				{"email":"old@example.com","primary":false,"verified":true},
				{"email":"main@example.com","primary":true,"verified":true}
			]`,
			want: "main@example.com",
		},
		{
			name:    "primary but unverified",
			body:    `[{"email":"main@example.com","primary":true,"verified":false}]`,
			wantErr: true,
		},
		{
			name:    "verified but secondary",
			body:    `[{"email":"old@example.com","primary":false,"verified":true}]`,
			wantErr: true,
		},
		{
			name:    "no emails",
			body:    `[]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/user/emails" {
					t.Errorf("unexpected path %q", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := github.NewClient("client-id", "client-secret")
			client.APIBaseURL = server.URL

			email, err := client.FetchVerifiedEmail(context.Background(), "gh-token")
			if tt.wantErr {
				if !errors.Is(err, kd.ErrProviderAuthFailure) {
					t.Errorf("expected ErrProviderAuthFailure, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchVerifiedEmail failed: %v", err)
			}
			if email != tt.want {
				t.Errorf("email = %q, want %q", email, tt.want)
			}
		})
	}
}

func TestAPIErrorIsProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer server.Close()

	client := github.NewClient("client-id", "client-secret")
	client.APIBaseURL = server.URL

	_, err := client.FetchProfile(context.Background(), "expired-token")
	if !errors.Is(err, kd.ErrProviderAuthFailure) {
		t.Errorf("expected ErrProviderAuthFailure, got %v", err)
	}
}

func TestExchangeFailureIsProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := github.NewClient("client-id", "client-secret")
	client.AuthBaseURL = server.URL
	client.HTTPClient = server.Client()

	_, err := client.ExchangeCode(context.Background(), "bad-code")
	if !errors.Is(err, kd.ErrProviderAuthFailure) {
		t.Errorf("expected ErrProviderAuthFailure, got %v", err)
	}
}

func TestUnreachableAPIIsProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := github.NewClient("client-id", "client-secret")
	client.APIBaseURL = server.URL

	_, err := client.FetchProfile(context.Background(), "gh-token")
	if !errors.Is(err, kd.ErrProviderAuthFailure) {
		t.Errorf("expected ErrProviderAuthFailure, got %v", err)
	}
}
