// Package auth implements the sign-up, sign-in and email-confirmation
// workflows, both local and provider-backed.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/mail"
)

// LocalConfig wires the local credential flows.
type LocalConfig struct {
	Users         kd.UserStore
	Confirmations *kd.ConfirmationStore
	Hasher        kd.PasswordHasher
	Tokens        kd.TokenIssuer
	Mailer        kd.Mailer
	Logger        *slog.Logger

	// AppProtocol and AppDomain form the confirmation link sent to new users.
	AppProtocol string
	AppDomain   string
}

// Local handles email/password accounts.
type Local struct {
	users         kd.UserStore
	confirmations *kd.ConfirmationStore
	hasher        kd.PasswordHasher
	tokens        kd.TokenIssuer
	mailer        kd.Mailer
	logger        *slog.Logger

	appProtocol string
	appDomain   string
}

// NewLocal creates the local auth service.
func NewLocal(cfg LocalConfig) *Local {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		users:         cfg.Users,
		confirmations: cfg.Confirmations,
		hasher:        cfg.Hasher,
		tokens:        cfg.Tokens,
		mailer:        cfg.Mailer,
		logger:        logger,
		appProtocol:   cfg.AppProtocol,
		appDomain:     cfg.AppDomain,
	}
}

// SignUpRequest carries the fields of a local registration.
type SignUpRequest struct {
	Email    string
	Username string
	Password string
}

// SignUp registers a new unconfirmed account and emails a confirmation link.
// A failure to issue the confirmation token surfaces; mail delivery is best
// effort and never unwinds the account.
func (s *Local) SignUp(ctx context.Context, req SignUpRequest) (*kd.User, error) {
	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, kd.ErrMailInUse
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, kd.CreateUser{
		Email:              req.Email,
		Username:           req.Username,
		PasswordHash:       hashed,
		ConfirmationStatus: kd.ConfirmationPending,
		DiskSpaceBytes:     kd.DefaultDiskSpaceBytes,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.confirmations.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sendConfirmationMail(ctx, user, token.Hash); err != nil {
		s.logger.WarnContext(ctx, "confirmation mail not delivered", "email", user.Email, "error", err)
	}

	return user, nil
}

// SignIn validates credentials and returns the account with a signed token
// pair keyed on its id. The caller owns establishing the session.
func (s *Local) SignIn(ctx context.Context, email, password string) (*kd.User, *kd.TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, kd.ErrUserNotFound
	}

	if !user.Confirmed() {
		return nil, nil, kd.ErrEmailNotConfirmed
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, nil, kd.ErrPasswordMismatch
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// ConfirmEmail consumes a confirmation hash and marks the account confirmed.
// The hash is spent on first use, valid or not; retrying with the same hash
// always fails.
func (s *Local) ConfirmEmail(ctx context.Context, hash string) (bool, error) {
	token, err := s.confirmations.Consume(ctx, hash)
	if err != nil {
		return false, err
	}

	user, err := s.users.FindByID(ctx, token.UserID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, kd.ErrUserNotFound
	}

	if user.Confirmed() {
		return false, kd.ErrEmailAlreadyConfirmed
	}

	return s.users.UpdateConfirmationStatus(ctx, user.ID, kd.ConfirmationConfirmed)
}

// ResendConfirmationEmail issues a fresh hash for a still-pending account.
// Earlier hashes stay valid until their TTL runs out. As on sign-up, the
// account keeps its new hash even when the relay refuses the mail.
func (s *Local) ResendConfirmationEmail(ctx context.Context, email string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, kd.ErrUserNotFound
	}

	if user.Confirmed() {
		return false, kd.ErrEmailAlreadyConfirmed
	}

	token, err := s.confirmations.Issue(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if err := s.sendConfirmationMail(ctx, user, token.Hash); err != nil {
		s.logger.WarnContext(ctx, "confirmation mail not delivered", "email", user.Email, "error", err)
	}
	return true, nil
}

func (s *Local) sendConfirmationMail(ctx context.Context, user *kd.User, hash string) error {
	link := mail.ConfirmationLink(s.appProtocol, s.appDomain, hash)
	return s.mailer.Send(ctx, mail.ConfirmationMail(user.Email, link))
}
