package handler

import (
	"log/slog"
	"net/http"

	"github.com/fairshare/fairshare/internal/handler/dto"
	"github.com/fairshare/fairshare/internal/service"
)

// UserHandler handles HTTP requests for the Identity Store.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Create handles POST /users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.UserName, req.UserEmail)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "User ID must be a positive integer")
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserListResponse(users))
}

// GetByEmail handles GET /users/by-email?email=.
func (h *UserHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// ListOrphans handles GET /users/orphans.
func (h *UserHandler) ListOrphans(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListOrphanedUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserListResponse(users))
}

// Delete handles DELETE /users/{id}. Only users that own no group can be discarded.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "User ID must be a positive integer")
		return
	}

	if err := h.users.DiscardUser(r.Context(), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DiscardOrphans handles POST /users:discard-orphans.
func (h *UserHandler) DiscardOrphans(w http.ResponseWriter, r *http.Request) {
	var req dto.DiscardOrphansRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	for _, id := range req.UserIDs {
		if id <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "User IDs must be positive integers")
			return
		}
	}

	discarded, err := h.users.DiscardOrphanedUsers(r.Context(), req.UserIDs)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DiscardOrphansResponse{Discarded: discarded})
}
