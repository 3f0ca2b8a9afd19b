// Package web is the HTTP transport: routing, sessions, and the mapping
// from domain errors to status codes.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/auth"
	"github.com/kumori-disk/kumori-disk/file"
	"github.com/kumori-disk/kumori-disk/payment"
)

// sessionUserKey is where the signed-in user id lives in the session.
const sessionUserKey = "user_id"

// ServerConfig wires the HTTP layer.
type ServerConfig struct {
	Local  *auth.Local
	Github *auth.Github
	Users  kd.UserStore
	Files  *file.Service
	Plans  payment.PlanStore
	PayPal *payment.PayPalClient

	Sessions *scs.SessionManager
	Logger   *slog.Logger
}

// Server handles the HTTP API.
type Server struct {
	local    *auth.Local
	github   *auth.Github
	users    kd.UserStore
	files    *file.Service
	plans    payment.PlanStore
	paypal   *payment.PayPalClient
	sessions *scs.SessionManager
	logger   *slog.Logger
}

// NewServer creates the server and its routes.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSessionManager(false)
	}
	return &Server{
		local:    cfg.Local,
		github:   cfg.Github,
		users:    cfg.Users,
		files:    cfg.Files,
		plans:    cfg.Plans,
		paypal:   cfg.PayPal,
		sessions: sessions,
		logger:   logger,
	}
}

// NewSessionManager creates the cookie-session manager.
func NewSessionManager(secure bool) *scs.SessionManager {
	manager := scs.New()
	manager.Lifetime = 24 * time.Hour
	manager.Cookie.HttpOnly = true
	manager.Cookie.Secure = secure
	manager.Cookie.SameSite = http.SameSiteLaxMode
	return manager
}

// Handler returns the root handler with session management applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/auth/sign-up", s.handleSignUp).Methods(http.MethodPost)
	router.HandleFunc("/auth/sign-in", s.handleSignIn).Methods(http.MethodPost)
	router.HandleFunc("/auth/sign-out", s.requireSession(s.handleSignOut)).Methods(http.MethodPost)
	router.HandleFunc("/auth/confirm-email", s.handleConfirmEmail).Methods(http.MethodPost)
	router.HandleFunc("/auth/resend-confirmation-email", s.handleResendConfirmationEmail).Methods(http.MethodPost)

	router.HandleFunc("/auth/github/url", s.handleGithubAuthorizeURL).Methods(http.MethodGet)
	router.HandleFunc("/auth/github", s.handleGithubCallback).Methods(http.MethodGet)

	router.HandleFunc("/users/me", s.requireSession(s.handleCurrentUser)).Methods(http.MethodGet)

	router.HandleFunc("/files", s.requireSession(s.handleUploadFile)).Methods(http.MethodPost)
	router.HandleFunc("/files/share", s.requireSession(s.handleShareAccess)).Methods(http.MethodPost)
	router.HandleFunc("/files/revoke", s.requireSession(s.handleRevokeAccess)).Methods(http.MethodPost)
	router.HandleFunc("/files/{id}/download", s.requireSession(s.handleDownloadFile)).Methods(http.MethodGet)
	router.HandleFunc("/files/{id}/link", s.requireSession(s.handleDownloadLink)).Methods(http.MethodGet)
	router.HandleFunc("/files/{id}/name", s.requireSession(s.handleRenameFile)).Methods(http.MethodPatch)
	router.HandleFunc("/files/{id}", s.requireSession(s.handleDeleteFile)).Methods(http.MethodDelete)

	router.HandleFunc("/plans", s.handleListPlans).Methods(http.MethodGet)
	router.HandleFunc("/plans/{id}/order", s.requireSession(s.handleCreateOrder)).Methods(http.MethodPost)

	return s.sessions.LoadAndSave(router)
}

// requireSession rejects requests without a signed-in session and passes the
// user id along in the context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := s.sessions.GetString(r.Context(), sessionUserKey)
		if userID == "" {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Not signed in"})
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), userID)))
	}
}

type userIDKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the signed-in user id placed in ctx by the session guard.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response not encoded", "error", err)
	}
}

// writeError maps domain errors to status codes. Anything unrecognized is a
// generic bad request so internals never leak.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if authErr, ok := kd.AsAuthError(err); ok {
		s.writeJSON(w, statusForAuthError(authErr), errorResponse{
			Message: authErr.Message,
			Code:    authErr.Code,
			Field:   authErr.Field,
		})
		return
	}

	switch {
	case errors.Is(err, file.ErrFileNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.Is(err, file.ErrInsufficientDiskSpace):
		s.writeJSON(w, http.StatusForbidden, errorResponse{Message: err.Error()})
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Bad request"})
	}
}

func statusForAuthError(err *kd.AuthError) int {
	switch err.Code {
	case kd.ErrCodeMailInUse, kd.ErrCodeInvalidConfirmationHash, kd.ErrCodeEmailAlreadyConfirmed:
		return http.StatusConflict
	case kd.ErrCodePasswordMismatch, kd.ErrCodeGithubIDNotLinked, kd.ErrCodeGithubIDsDoNotMatch, kd.ErrCodeProviderAuthFailure:
		return http.StatusUnauthorized
	case kd.ErrCodeUserNotFound:
		return http.StatusNotFound
	case kd.ErrCodeEmailNotConfirmed:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
