package kumoridisk

import "errors"

// Error codes for the recoverable auth failures. The transport layer maps
// these to protocol responses; nothing in the core retries them.
const (
	ErrCodeMailInUse               = "mail_in_use"
	ErrCodeUserNotFound            = "user_not_found"
	ErrCodeEmailNotConfirmed       = "email_not_confirmed"
	ErrCodePasswordMismatch        = "password_mismatch"
	ErrCodeInvalidConfirmationHash = "invalid_confirmation_hash"
	ErrCodeEmailAlreadyConfirmed   = "email_already_confirmed"
	ErrCodeGithubIDNotLinked       = "github_id_not_linked"
	ErrCodeGithubIDsDoNotMatch     = "github_ids_do_not_match"
	ErrCodeProviderAuthFailure     = "provider_auth_failure"
)

// AuthError is a typed, recoverable authentication failure. Field names the
// offending input when there is one.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// Is makes two AuthErrors equal when their codes match, so the predefined
// errors below work with errors.Is regardless of wrapping.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewAuthError creates a typed auth error.
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

var (
	ErrMailInUse               = NewAuthError(ErrCodeMailInUse, "Email is already registered", "email")
	ErrUserNotFound            = NewAuthError(ErrCodeUserNotFound, "User not found", "")
	ErrEmailNotConfirmed       = NewAuthError(ErrCodeEmailNotConfirmed, "Email address is not confirmed", "email")
	ErrPasswordMismatch        = NewAuthError(ErrCodePasswordMismatch, "Passwords do not match", "password")
	ErrInvalidConfirmationHash = NewAuthError(ErrCodeInvalidConfirmationHash, "Invalid or expired confirmation hash", "hash")
	ErrEmailAlreadyConfirmed   = NewAuthError(ErrCodeEmailAlreadyConfirmed, "Email address is already confirmed", "email")
	ErrGithubIDNotLinked       = NewAuthError(ErrCodeGithubIDNotLinked, "No GitHub account is linked to this user", "")
	ErrGithubIDsDoNotMatch     = NewAuthError(ErrCodeGithubIDsDoNotMatch, "GitHub account does not match the linked one", "")
	ErrProviderAuthFailure     = NewAuthError(ErrCodeProviderAuthFailure, "Provider authentication failed", "")
)

// AsAuthError unwraps err into an AuthError if it carries one.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}
