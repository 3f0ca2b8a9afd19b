package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	kd "github.com/kumori-disk/kumori-disk"
)

// Environment selects which PayPal API the client talks to.
type Environment string

const (
	EnvironmentMain    Environment = "main"
	EnvironmentSandbox Environment = "sandbox"
)

const (
	paypalAccessTokenCacheKey = "paypal:access_token"

	// tokenRefreshMargin is shaved off the provider-reported expiry so a
	// cached token never outlives its real lifetime.
	tokenRefreshMargin = 60 * time.Second
)

var ErrBadPayPalAuthResponse = errors.New("unexpected paypal auth response")

// PayPalConfig carries provider credentials.
type PayPalConfig struct {
	Environment  Environment
	ClientID     string
	ClientSecret string

	// Cache holds the bearer token between requests so every API call does
	// not re-authenticate.
	Cache kd.TokenCache

	// HTTPClient defaults to http.DefaultClient. BaseURL overrides the
	// environment-derived endpoint for tests.
	HTTPClient *http.Client
	BaseURL    string
}

// PayPalClient is the payment provider client.
type PayPalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	cache        kd.TokenCache
	httpClient   *http.Client
}

// NewPayPalClient validates the environment and builds a client.
func NewPayPalClient(cfg PayPalConfig) (*PayPalClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Environment {
		case EnvironmentMain:
			baseURL = "https://api-m.paypal.com"
		case EnvironmentSandbox:
			baseURL = "https://api-m.sandbox.paypal.com"
		default:
			return nil, fmt.Errorf("unknown paypal environment %q", cfg.Environment)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &PayPalClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		cache:        cfg.Cache,
		httpClient:   httpClient,
	}, nil
}

// AccessToken returns a valid bearer token, reusing the cached one while it
// lives and re-authenticating when it does not.
func (c *PayPalClient) AccessToken(ctx context.Context) (string, error) {
	token, err := c.cache.Get(ctx, paypalAccessTokenCacheKey)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}
	return c.obtainAndCacheAccessToken(ctx)
}

func (c *PayPalClient) obtainAndCacheAccessToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en_US")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", c.basicAuthorization())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to authenticate with paypal: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read paypal auth response: %w", err)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse paypal auth response: %w", err)
	}
	if payload.AccessToken == "" || payload.ExpiresIn <= 0 {
		return "", ErrBadPayPalAuthResponse
	}

	ttl := time.Duration(payload.ExpiresIn)*time.Second - tokenRefreshMargin
	if ttl <= 0 {
		ttl = time.Duration(payload.ExpiresIn) * time.Second
	}
	if err := c.cache.Set(ctx, paypalAccessTokenCacheKey, payload.AccessToken, ttl); err != nil {
		return "", fmt.Errorf("failed to cache paypal access token: %w", err)
	}

	return payload.AccessToken, nil
}

// CreateOrder opens a capture order for the given plan and returns the
// provider order id.
func (c *PayPalClient) CreateOrder(ctx context.Context, plan *Plan) (string, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	order := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]any{
					"currency_code": string(plan.Currency),
					"value":         fmt.Sprintf("%d.00", plan.Charge),
				},
			},
		},
	}
	encoded, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("failed to encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/checkout/orders", strings.NewReader(string(encoded)))
	if err != nil {
		return "", fmt.Errorf("failed to create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create paypal order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read paypal order response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal order creation returned %d", resp.StatusCode)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse paypal order response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("paypal order response missing id")
	}
	return payload.ID, nil
}

func (c *PayPalClient) basicAuthorization() string {
	credentials := c.clientID + ":" + c.clientSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}
