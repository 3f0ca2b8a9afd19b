package web

import (
	"net/http"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/auth"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	user, err := s.local.SignUp(r.Context(), auth.SignUpRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, user)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	User   *kd.User      `json:"user"`
	Tokens *kd.TokenPair `json:"tokens"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	user, pair, err := s.local.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Renew the token on privilege change to prevent session fixation.
	if err := s.sessions.RenewToken(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sessions.Put(r.Context(), sessionUserKey, user.ID)

	s.writeJSON(w, http.StatusOK, signInResponse{User: user, Tokens: pair})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"signed_out": true})
}

type confirmEmailRequest struct {
	Hash string `json:"hash"`
}

func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req confirmEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	confirmed, err := s.local.ConfirmEmail(r.Context(), req.Hash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"confirmed": confirmed})
}

type resendConfirmationRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResendConfirmationEmail(w http.ResponseWriter, r *http.Request) {
	var req resendConfirmationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	sent, err := s.local.ResendConfirmationEmail(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"sent": sent})
}

func (s *Server) handleGithubAuthorizeURL(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"url": s.github.AuthorizeURL()})
}

// handleGithubCallback is the OAuth redirect URI: GitHub sends the user here
// with an authorization code.
func (s *Server) handleGithubCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Missing authorization code"})
		return
	}

	pair, err := s.github.Authorize(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.FindByID(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Message: "User not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}
