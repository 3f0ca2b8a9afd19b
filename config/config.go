// Package config loads configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is everything the server needs, loaded from the environment.
type Config struct {
	// AppProtocol and AppDomain form the externally visible base URL used
	// in confirmation links and OAuth redirect URIs.
	AppProtocol string `env:"APP_PROTOCOL" envDefault:"http"`
	AppDomain   string `env:"APP_DOMAIN" envDefault:"localhost:4000"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":4000"`

	DatabaseHost     string `env:"DATABASE_HOST" envDefault:"localhost"`
	DatabasePort     int    `env:"DATABASE_PORT" envDefault:"5432"`
	DatabaseUsername string `env:"DATABASE_USERNAME,required"`
	DatabasePassword string `env:"DATABASE_PASSWORD,required"`
	DatabaseName     string `env:"DATABASE_NAME,required"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string `env:"JWT_SECRET,required"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"kumori-disk"`

	SessionSecure bool `env:"SESSION_SECURE" envDefault:"false"`

	GithubClientID     string `env:"GITHUB_OAUTH_CLIENT_ID"`
	GithubClientSecret string `env:"GITHUB_OAUTH_CLIENT_SECRET"`
	GithubAPIBaseURL   string `env:"GITHUB_API_BASE_URL"`
	GithubAuthBaseURL  string `env:"GITHUB_AUTH_BASE_URL"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket          string `env:"BUCKET_NAME"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3BaseEndpoint    string `env:"S3_BASE_ENDPOINT"`

	PayPalEnv          string `env:"PAYPAL_ENV" envDefault:"sandbox"`
	PayPalClientID     string `env:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// DatabaseDSN builds the postgres connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUsername, c.DatabasePassword, c.DatabaseName)
}

// MailConfigured reports whether an SMTP relay is set up; without one the
// server logs outbound mail instead of sending it.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != ""
}
