package kumoridisk

import (
	"context"
	"time"
)

// ConfirmationStatus tracks whether a user has proven control of their email.
// The only legal transition is Pending -> Confirmed.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
)

// Default disk quota granted to every new account (10 GiB).
const DefaultDiskSpaceBytes int64 = 10 * 1024 * 1024 * 1024

// User is a unified account, regardless of how it was created (local
// sign-up or an OAuth provider).
type User struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	Username           string             `json:"username"`
	PasswordHash       string             `json:"-"`
	ConfirmationStatus ConfirmationStatus `json:"confirmation_status"`
	DiskSpaceBytes     int64              `json:"disk_space_bytes"`
	PlanID             string             `json:"plan_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Confirmed reports whether the user may sign in with local credentials.
func (u *User) Confirmed() bool {
	return u.ConfirmationStatus == ConfirmationConfirmed
}

// CreateUser carries everything needed to persist a new account.
// Password must already be hashed by the caller.
type CreateUser struct {
	Email              string
	Username           string
	PasswordHash       string
	ConfirmationStatus ConfirmationStatus
	DiskSpaceBytes     int64
}

// UserStore manages user accounts. Implementations must honor the ambient
// transaction handle carried in ctx (see the tx package) so that writes made
// inside a unit-of-work roll back together.
type UserStore interface {
	// Create persists a new user and returns it with its generated id.
	Create(ctx context.Context, data CreateUser) (*User, error)

	// FindByEmail returns the user with the given email, or nil if absent.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID returns the user with the given id, or nil if absent.
	FindByID(ctx context.Context, id string) (*User, error)

	// ExistsByID reports whether a user with the given id exists.
	ExistsByID(ctx context.Context, id string) (bool, error)

	// UpdateConfirmationStatus sets the confirmation status. Returns false
	// if no row was updated.
	UpdateConfirmationStatus(ctx context.Context, id string, status ConfirmationStatus) (bool, error)

	// SubtractDiskSpace decrements the user's remaining quota.
	SubtractDiskSpace(ctx context.Context, id string, bytes int64) (bool, error)
}

// Provider identifies an external identity provider. A closed set: adding a
// provider means adding a constant here, not registering one dynamically.
type Provider string

const (
	ProviderGithub Provider = "github"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	return p == ProviderGithub
}

// ProviderDescriptor is the stored record for a provider.
type ProviderDescriptor struct {
	ID   string   `json:"id"`
	Name Provider `json:"name"`
}

// ProviderLink binds a local user to an external provider's user id.
// At most one link exists per (user, provider) pair; links are never mutated.
type ProviderLink struct {
	UserID         string    `json:"user_id"`
	ProviderID     string    `json:"provider_id"`
	ProviderUserID string    `json:"provider_user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProviderLinkStore manages provider-link records. Implementations must
// honor the ambient transaction handle in ctx.
type ProviderLinkStore interface {
	// FindByUserAndProvider returns the link for (userId, provider), or nil
	// if the user has never authenticated with that provider.
	FindByUserAndProvider(ctx context.Context, userID string, provider Provider) (*ProviderLink, error)

	// Create persists a new link.
	Create(ctx context.Context, link *ProviderLink) error

	// FindProviderByName resolves a provider name to its stored descriptor.
	FindProviderByName(ctx context.Context, name Provider) (*ProviderDescriptor, error)
}

// TokenCache is a TTL key-value store. Besides confirmation tokens it also
// caches third-party access tokens (e.g. the PayPal API token).
type TokenCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or ("", nil) when the key is missing
	// or expired.
	Get(ctx context.Context, key string) (string, error)

	Delete(ctx context.Context, key string) error
}

// PasswordHasher is the credential capability: one-way hashing with a
// constant-time compare, plus generation of unguessable secrets.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Compare(secret, digest string) bool
	RandomToken() string
}

// SendMail is a single outbound message.
type SendMail struct {
	To      string
	Subject string
	Text    string
}

// Mailer delivers outbound mail. Delivery is fire and forget for the auth
// workflows: a failed send is logged and never rolls back or fails the
// account state it was announcing.
type Mailer interface {
	Send(ctx context.Context, mail SendMail) error
}
