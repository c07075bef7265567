package handler

import (
	"log/slog"
	"net/http"

	"github.com/fairshare/fairshare/internal/handler/dto"
	"github.com/fairshare/fairshare/internal/service"
)

// GroupHandler handles HTTP requests for groups.
type GroupHandler struct {
	groups *service.GroupService
	query  *service.QueryService
	logger *slog.Logger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groups *service.GroupService, query *service.QueryService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, query: query, logger: logger}
}

// List handles GET /groups. Groups are returned in creation order.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.query.ListGroups(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToGroupListResponse(groups))
}

// Get handles GET /groups/{id}.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Group ID must be a positive integer")
		return
	}

	group, err := h.query.GetGroup(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToGroupResponse(group))
}

// ListMembers handles GET /groups/{id}/members.
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Group ID must be a positive integer")
		return
	}

	members, err := h.query.ListMembers(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToMembershipListResponse(members))
}

// Create handles POST /groups for an existing creator, e.g. retrying the
// group step after a partial provisioning failure.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	group, err := h.groups.CreateGroup(r.Context(), req.Name, req.CreatorUserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToGroupResponse(group))
}
