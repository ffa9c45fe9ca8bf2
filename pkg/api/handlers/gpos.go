package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
)

// GPOHandler handles group policy API endpoints.
type GPOHandler struct {
	service *directory.Service
}

// NewGPOHandler creates a new GPOHandler.
func NewGPOHandler(service *directory.Service) *GPOHandler {
	return &GPOHandler{service: service}
}

// CreateGPORequest is the request body for POST /api/gpos. A policy must be
// linked to at least one OU or domain at creation time.
type CreateGPORequest struct {
	Name        string      `json:"name" validate:"required"`
	DisplayName string      `json:"display_name,omitempty"`
	Description string      `json:"description,omitempty"`
	LinkedTo    []uuid.UUID `json:"linked_to" validate:"required,min=1"`
	Enforced    bool        `json:"enforced,omitempty"`
	Enabled     bool        `json:"enabled,omitempty"`
}

// GPOResponse is a group policy representation for API output.
type GPOResponse struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name,omitempty"`
	Description string      `json:"description,omitempty"`
	LinkedTo    []uuid.UUID `json:"linked_to"`
	Enforced    bool        `json:"enforced"`
	Enabled     bool        `json:"enabled"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func gpoToResponse(gpo *models.GroupPolicy) GPOResponse {
	return GPOResponse{
		ID:          gpo.ID,
		Name:        gpo.Name,
		DisplayName: gpo.DisplayName,
		Description: gpo.Description,
		LinkedTo:    gpo.LinkedTo,
		Enforced:    gpo.Enforced,
		Enabled:     gpo.Enabled,
		CreatedAt:   gpo.CreatedAt,
		UpdatedAt:   gpo.UpdatedAt,
	}
}

// List handles GET /api/gpos.
func (h *GPOHandler) List(w http.ResponseWriter, r *http.Request) {
	gpos, err := h.service.ListGPOs()
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	response := make([]GPOResponse, len(gpos))
	for i, gpo := range gpos {
		response[i] = gpoToResponse(gpo)
	}

	WriteOK(w, response)
}

// Create handles POST /api/gpos.
func (h *GPOHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGPORequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	gpo := &models.GroupPolicy{
		ID:                uuid.New(),
		Name:              req.Name,
		DisplayName:       req.DisplayName,
		Description:       req.Description,
		Version:           1,
		PolicyType:        models.PolicySecurity,
		Target:            models.PolicyTarget{Kind: models.TargetAll},
		Settings:          map[string]models.PolicyValue{},
		Enabled:           req.Enabled,
		Enforced:          req.Enforced,
		SecurityFiltering: []models.SidOrID{},
		CreatedAt:         now,
		UpdatedAt:         now,
		LinkedTo:          req.LinkedTo,
	}

	if err := h.service.CreateGPO(gpo); err != nil {
		writeDirectoryError(w, err)
		return
	}

	WriteCreated(w, gpoToResponse(gpo))
}
