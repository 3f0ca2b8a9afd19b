package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/github"
	"github.com/kumori-disk/kumori-disk/mail"
	"github.com/kumori-disk/kumori-disk/tx"
)

// GithubClient is the slice of the provider client the auth flows need.
type GithubClient interface {
	AuthorizeURL(redirectURI string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*github.Profile, error)
	FetchVerifiedEmail(ctx context.Context, accessToken string) (string, error)
}

// GithubConfig wires the GitHub authorization flow.
type GithubConfig struct {
	Users  kd.UserStore
	Links  kd.ProviderLinkStore
	Client GithubClient
	Tokens kd.TokenIssuer
	Hasher kd.PasswordHasher
	Mailer kd.Mailer
	Tx     tx.Coordinator
	Logger *slog.Logger

	// AppProtocol and AppDomain form the OAuth redirect URI.
	AppProtocol string
	AppDomain   string
}

// Github handles sign-in and account creation through GitHub OAuth.
type Github struct {
	users  kd.UserStore
	links  kd.ProviderLinkStore
	client GithubClient
	tokens kd.TokenIssuer
	hasher kd.PasswordHasher
	mailer kd.Mailer
	tx     tx.Coordinator
	logger *slog.Logger

	appProtocol string
	appDomain   string
}

// NewGithub creates the GitHub auth service.
func NewGithub(cfg GithubConfig) *Github {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	coordinator := cfg.Tx
	if coordinator == nil {
		coordinator = tx.Nop{}
	}
	return &Github{
		users:       cfg.Users,
		links:       cfg.Links,
		client:      cfg.Client,
		tokens:      cfg.Tokens,
		hasher:      cfg.Hasher,
		mailer:      cfg.Mailer,
		tx:          coordinator,
		logger:      logger,
		appProtocol: cfg.AppProtocol,
		appDomain:   cfg.AppDomain,
	}
}

// AuthorizeURL returns the GitHub authorization URL the frontend redirects to.
func (s *Github) AuthorizeURL() string {
	redirectURI := fmt.Sprintf("%s://%s/auth/github", s.appProtocol, s.appDomain)
	return s.client.AuthorizeURL(redirectURI)
}

// Authorize completes the OAuth round trip for an authorization code. It
// resolves the GitHub identity, signs the user up or in, and returns a token
// pair. All writes happen in one unit of work; any failure leaves no partial
// account behind.
func (s *Github) Authorize(ctx context.Context, code string) (*kd.TokenPair, error) {
	var pair *kd.TokenPair

	err := tx.InTransaction(ctx, s.tx, func(ctx context.Context) error {
		accessToken, err := s.client.ExchangeCode(ctx, code)
		if err != nil {
			return err
		}

		profile, err := s.client.FetchProfile(ctx, accessToken)
		if err != nil {
			return err
		}
		email, err := s.client.FetchVerifiedEmail(ctx, accessToken)
		if err != nil {
			return err
		}

		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}

		if user == nil {
			pair, err = s.signUp(ctx, email, profile)
			return err
		}

		link, err := s.links.FindByUserAndProvider(ctx, user.ID, kd.ProviderGithub)
		if err != nil {
			return err
		}

		pair, err = s.signIn(user.ID, profile.ID, link)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// signUp creates a confirmed account for a GitHub identity. The account gets
// a generated password, mailed to the user so they can also sign in locally.
func (s *Github) signUp(ctx context.Context, email string, profile *github.Profile) (*kd.TokenPair, error) {
	password := s.hasher.RandomToken()
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash generated password: %w", err)
	}

	// The provider already verified this address, so the account starts
	// confirmed.
	user, err := s.users.Create(ctx, kd.CreateUser{
		Email:              email,
		Username:           profile.Login,
		PasswordHash:       hashed,
		ConfirmationStatus: kd.ConfirmationConfirmed,
		DiskSpaceBytes:     kd.DefaultDiskSpaceBytes,
	})
	if err != nil {
		return nil, err
	}

	descriptor, err := s.links.FindProviderByName(ctx, kd.ProviderGithub)
	if err != nil {
		return nil, err
	}
	if descriptor == nil {
		return nil, fmt.Errorf("provider %q is not registered", kd.ProviderGithub)
	}

	err = s.links.Create(ctx, &kd.ProviderLink{
		UserID:         user.ID,
		ProviderID:     descriptor.ID,
		ProviderUserID: strconv.FormatInt(profile.ID, 10),
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.Send(ctx, mail.GeneratedPasswordMail(user.Email, password)); err != nil {
		s.logger.WarnContext(ctx, "generated password mail not delivered", "email", user.Email, "error", err)
	}

	return s.tokens.IssuePair(user.ID)
}

// signIn admits a GitHub identity into an existing account, provided the
// account is linked to exactly this GitHub user.
func (s *Github) signIn(userID string, candidateGithubID int64, link *kd.ProviderLink) (*kd.TokenPair, error) {
	if link == nil {
		return nil, kd.ErrGithubIDNotLinked
	}

	if link.ProviderUserID != strconv.FormatInt(candidateGithubID, 10) {
		return nil, kd.ErrGithubIDsDoNotMatch
	}

	return s.tokens.IssuePair(userID)
}
