package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
)

// GroupHandler handles group management API endpoints.
type GroupHandler struct {
	service *directory.Service
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(service *directory.Service) *GroupHandler {
	return &GroupHandler{service: service}
}

// CreateGroupRequest is the request body for POST /api/groups.
type CreateGroupRequest struct {
	Name           string `json:"name" validate:"required"`
	SAMAccountName string `json:"sam_account_name,omitempty"`
	Description    string `json:"description,omitempty"`
}

// GroupResponse is a group representation for API output.
type GroupResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	SAMAccountName string    `json:"sam_account_name"`
	Description    string    `json:"description,omitempty"`
	MembersCount   int       `json:"members_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func groupToResponse(group *models.Group) GroupResponse {
	return GroupResponse{
		ID:             group.ID,
		Name:           group.Name,
		SAMAccountName: group.SAMAccountName,
		Description:    group.Description,
		MembersCount:   len(group.Members),
		CreatedAt:      group.CreatedAt,
	}
}

// List handles GET /api/groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups()
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	response := make([]GroupResponse, len(groups))
	for i, g := range groups {
		response[i] = groupToResponse(g)
	}

	WriteOK(w, response)
}

// Create handles POST /api/groups.
//
// The SAM account name defaults to the uppercased group name.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	sam := req.SAMAccountName
	if sam == "" {
		sam = strings.ToUpper(req.Name)
	}

	var domainID uuid.UUID
	if domains, err := h.service.ListDomains(); err == nil && len(domains) > 0 {
		domainID = domains[0].ID
	}

	group := models.NewGroup(req.Name, sam, domainID, models.GroupSecurity, models.ScopeGlobal)
	group.Description = req.Description

	if err := h.service.CreateGroup(group); err != nil {
		writeDirectoryError(w, err)
		return
	}

	WriteCreated(w, groupToResponse(group))
}

// Delete handles DELETE /api/groups/{sam}.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sam := chi.URLParam(r, "sam")
	if sam == "" {
		BadRequest(w, "SAM account name is required")
		return
	}

	group, err := h.service.FindGroupBySAMAccountName(sam)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	if group == nil {
		NotFound(w, "Group not found: "+sam)
		return
	}

	if err := h.service.DeleteGroup(group.ID); err != nil {
		writeDirectoryError(w, err)
		return
	}

	WriteNoContent(w)
}
