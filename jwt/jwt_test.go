package jwt_test

import (
	"testing"
	"time"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/jwt"
)

func TestIssuePairRoundTrip(t *testing.T) {
	issuer := jwt.NewIssuer("test-secret", "kumori-disk")

	pair, err := issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be set")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	subject, err := issuer.Verify(pair.AccessToken, kd.TokenKindAccess)
	if err != nil {
		t.Fatalf("Verify access failed: %v", err)
	}
	if subject != "user-1" {
		t.Errorf("expected user-1, got %q", subject)
	}

	subject, err = issuer.Verify(pair.RefreshToken, kd.TokenKindRefresh)
	if err != nil {
		t.Fatalf("Verify refresh failed: %v", err)
	}
	if subject != "user-1" {
		t.Errorf("expected user-1, got %q", subject)
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	issuer := jwt.NewIssuer("test-secret", "kumori-disk")

	pair, err := issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	if _, err := issuer.Verify(pair.AccessToken, kd.TokenKindRefresh); err == nil {
		t.Error("access token must not verify as refresh")
	}
	if _, err := issuer.Verify(pair.RefreshToken, kd.TokenKindAccess); err == nil {
		t.Error("refresh token must not verify as access")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := jwt.NewIssuer("test-secret", "kumori-disk")
	other := jwt.NewIssuer("other-secret", "kumori-disk")

	token, err := issuer.Issue("user-1", kd.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := other.Verify(token, kd.TokenKindAccess); err == nil {
		t.Error("token signed with another secret must not verify")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	issuer := jwt.NewIssuer("test-secret", "kumori-disk")
	other := jwt.NewIssuer("test-secret", "someone-else")

	token, err := issuer.Issue("user-1", kd.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := other.Verify(token, kd.TokenKindAccess); err == nil {
		t.Error("token from another issuer must not verify")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := jwt.NewIssuer("test-secret", "kumori-disk")
	issuer.AccessTokenExpiry = -time.Minute

	token, err := issuer.Issue("user-1", kd.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := issuer.Verify(token, kd.TokenKindAccess); err == nil {
		t.Error("expired token must not verify")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := jwt.NewIssuer("test-secret", "kumori-disk")

	if _, err := issuer.Verify("not-a-token", kd.TokenKindAccess); err == nil {
		t.Error("garbage must not verify")
	}
}
