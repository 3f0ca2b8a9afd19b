// Package jwt issues and verifies the signed access/refresh token pairs.
// Tokens are stateless HS256 JWTs carrying the user id as subject and their
// kind as a claim, so an access token can never pass as a refresh token.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	kd "github.com/kumori-disk/kumori-disk"
)

// Default token lifetimes.
const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Issuer implements kd.TokenIssuer with HMAC-signed JWTs.
type Issuer struct {
	SecretKey string
	JWTIssuer string

	// Expiries default to the package constants when zero.
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// NewIssuer creates an issuer with default expiries.
func NewIssuer(secretKey, jwtIssuer string) *Issuer {
	return &Issuer{SecretKey: secretKey, JWTIssuer: jwtIssuer}
}

func (i *Issuer) expiry(kind kd.TokenKind) time.Duration {
	if kind == kd.TokenKindRefresh {
		if i.RefreshTokenExpiry > 0 {
			return i.RefreshTokenExpiry
		}
		return DefaultRefreshTokenExpiry
	}
	if i.AccessTokenExpiry > 0 {
		return i.AccessTokenExpiry
	}
	return DefaultAccessTokenExpiry
}

// Issue signs a token of the given kind for the subject user id.
func (i *Issuer) Issue(subject string, kind kd.TokenKind) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"type": string(kind),
		"iat":  now.Unix(),
		"exp":  now.Add(i.expiry(kind)).Unix(),
	}
	if i.JWTIssuer != "" {
		claims["iss"] = i.JWTIssuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssuePair signs an access/refresh pair for the subject user id.
func (i *Issuer) IssuePair(subject string) (*kd.TokenPair, error) {
	accessToken, err := i.Issue(subject, kd.TokenKindAccess)
	if err != nil {
		return nil, err
	}
	refreshToken, err := i.Issue(subject, kd.TokenKindRefresh)
	if err != nil {
		return nil, err
	}
	return &kd.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Verify checks signature, expiry and kind, returning the subject user id.
func (i *Issuer) Verify(tokenString string, kind kd.TokenKind) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(i.SecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}

	if tokenType, ok := claims["type"].(string); !ok || tokenType != string(kind) {
		return "", fmt.Errorf("invalid token type")
	}

	if i.JWTIssuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != i.JWTIssuer {
			return "", fmt.Errorf("invalid issuer")
		}
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", fmt.Errorf("missing subject")
	}
	return subject, nil
}
