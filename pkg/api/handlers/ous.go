package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
)

// OUHandler handles organizational unit API endpoints.
type OUHandler struct {
	service *directory.Service
}

// NewOUHandler creates a new OUHandler.
func NewOUHandler(service *directory.Service) *OUHandler {
	return &OUHandler{service: service}
}

// CreateOURequest is the request body for POST /api/ous.
type CreateOURequest struct {
	Name string `json:"name" validate:"required"`

	// Parent is the DN of the enclosing container, e.g. DC=corp,DC=acme,DC=com.
	Parent string `json:"parent,omitempty"`
}

// OUResponse is an organizational unit representation for API output.
type OUResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	DN        string    `json:"dn"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ouToResponse(ou *models.OrganizationalUnit) OUResponse {
	return OUResponse{
		ID:        ou.ID,
		Name:      ou.Name,
		DN:        ou.DN,
		CreatedAt: ou.CreatedAt,
		UpdatedAt: ou.UpdatedAt,
	}
}

// List handles GET /api/ous.
func (h *OUHandler) List(w http.ResponseWriter, r *http.Request) {
	ous, err := h.service.ListOUs()
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	response := make([]OUResponse, len(ous))
	for i, ou := range ous {
		response[i] = ouToResponse(ou)
	}

	WriteOK(w, response)
}

// Create handles POST /api/ous.
func (h *OUHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOURequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	dn := directory.OUDN(req.Name, req.Parent)
	ou := models.NewOU(req.Name, dn, nil)

	if err := h.service.CreateOU(ou); err != nil {
		writeDirectoryError(w, err)
		return
	}

	WriteCreated(w, ouToResponse(ou))
}
