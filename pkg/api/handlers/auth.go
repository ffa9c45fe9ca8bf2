package handlers

import (
	"net/http"
	"time"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/auth"
	"github.com/mextdomen/mextdomen/pkg/directory"
)

// AuthHandler handles authentication API endpoints.
type AuthHandler struct {
	service *directory.Service
	tokens  *auth.TokenService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *directory.Service, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{service: service, tokens: tokens}
}

// LoginRequest is the request body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response body for POST /api/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/login.
//
// Authenticates user credentials and returns a signed JWT. Failed attempts
// increment the user's failure counter; successful ones stamp LastLogin.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.service.FindUserByUsername(req.Username)
	if err != nil {
		InternalServerError(w, "Authentication failed")
		return
	}
	if user == nil {
		Unauthorized(w, "Invalid username or password")
		return
	}
	if !user.Enabled {
		Forbidden(w, "User account is disabled")
		return
	}

	valid, err := user.PasswordHash.Verify(req.Password)
	if err != nil || !valid {
		if err := h.service.RecordLogin(user.ID, false); err != nil {
			logger.Warn("failed to record login attempt", "username", user.Username, "error", err)
		}
		Unauthorized(w, "Invalid username or password")
		return
	}

	token, expiresAt, err := h.tokens.Generate(user.ID.String())
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	if err := h.service.RecordLogin(user.ID, true); err != nil {
		logger.Warn("failed to record login", "username", user.Username, "error", err)
	}

	WriteOK(w, LoginResponse{
		Token:     token,
		UserID:    user.ID.String(),
		ExpiresIn: int64(time.Until(expiresAt).Seconds()),
		ExpiresAt: expiresAt,
	})
}
