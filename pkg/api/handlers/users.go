package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

// UserHandler handles user management API endpoints.
type UserHandler struct {
	service *directory.Service
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *directory.Service) *UserHandler {
	return &UserHandler{service: service}
}

// CreateUserRequest is the request body for POST /api/users.
type CreateUserRequest struct {
	Username    string `json:"username" validate:"required,max=64"`
	Password    string `json:"password,omitempty" validate:"omitempty,min=8"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	DisplayName string `json:"display_name,omitempty"`
	GivenName   string `json:"given_name,omitempty"`
	Surname     string `json:"surname,omitempty"`
}

// UpdateUserRequest is the request body for PUT /api/users/{username}.
// Nil fields are left unchanged.
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	DisplayName *string `json:"display_name,omitempty"`
	GivenName   *string `json:"given_name,omitempty"`
	Surname     *string `json:"surname,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
}

// UserResponse is a sanitized user representation for API output.
type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	GivenName   string     `json:"given_name,omitempty"`
	Surname     string     `json:"surname,omitempty"`
	Enabled     bool       `json:"enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func userToResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		GivenName:   user.GivenName,
		Surname:     user.Surname,
		Enabled:     user.Enabled,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		LastLogin:   user.LastLogin,
	}
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	// The UPN and SID hang off the bootstrapped domain when one exists.
	dnsName := "corp.acme.com"
	var domainIDs []uuid.UUID
	userSID := sid.NewNTAuthority(1001)
	if domains, err := h.service.ListDomains(); err == nil && len(domains) > 0 {
		dnsName = domains[0].DNSName
		domainIDs = []uuid.UUID{domains[0].ID}
		if domains[0].SID != nil {
			userSID = domains[0].SID.WithRID(1001)
		}
	}

	now := time.Now().UTC()
	primaryGroup := uint32(513) // Domain Users
	user := &models.User{
		ID:                 uuid.New(),
		SID:                userSID,
		Username:           req.Username,
		UserPrincipalName:  req.Username + "@" + dnsName,
		Email:              req.Email,
		DisplayName:        req.DisplayName,
		GivenName:          req.GivenName,
		Surname:            req.Surname,
		LastPasswordChange: now,
		Enabled:            true,
		Domains:            domainIDs,
		Groups:             []uuid.UUID{},
		CreatedAt:          now,
		UpdatedAt:          now,
		Meta:               map[string]string{},
		PrimaryGroupID:     &primaryGroup,
	}

	if req.Password != "" {
		hash, err := models.NewBcryptHash(req.Password)
		if err != nil {
			InternalServerError(w, "Failed to hash password")
			return
		}
		user.PasswordHash = hash
	}

	if err := h.service.CreateUser(user); err != nil {
		writeDirectoryError(w, err)
		return
	}

	WriteCreated(w, userToResponse(user))
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers()
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	response := make([]UserResponse, len(users))
	for i, u := range users {
		response[i] = userToResponse(u)
	}

	WriteOK(w, response)
}

// Get handles GET /api/users/{username}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.findUser(w, r)
	if !ok {
		return
	}

	WriteOK(w, userToResponse(user))
}

// Update handles PUT /api/users/{username}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, ok := h.findUser(w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateUser(user.ID, directory.UserPatch{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		GivenName:   req.GivenName,
		Surname:     req.Surname,
		Enabled:     req.Enabled,
	})
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	WriteOK(w, userToResponse(updated))
}

// Delete handles DELETE /api/users/{username}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.findUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(user.ID); err != nil {
		writeDirectoryError(w, err)
		return
	}

	WriteNoContent(w)
}

// findUser resolves the {username} URL parameter. On failure an error
// response has already been written.
func (h *UserHandler) findUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	username := chi.URLParam(r, "username")
	if username == "" {
		BadRequest(w, "Username is required")
		return nil, false
	}

	user, err := h.service.FindUserByUsername(username)
	if err != nil {
		writeDirectoryError(w, err)
		return nil, false
	}
	if user == nil {
		NotFound(w, "User not found: "+username)
		return nil, false
	}
	return user, true
}
