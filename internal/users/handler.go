package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   authz.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers user management routes. The whole surface requires
// the manage-users capability, which only enterprise architects hold.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireManageUsers)
		r.Get("/", h.listUsers)
		r.Post("/{userID}/roles", h.assignRole)
		r.Delete("/{userID}/roles/{role}", h.removeRole)
	})
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	identity, _ := authz.IdentityFromContext(r.Context())
	list, err := h.service.ListUsers(r.Context(), identity)
	if err != nil {
		h.respondServiceError(w, "list users", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"users": list,
		"stats": ComputeStats(list),
	})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	identity, _ := authz.IdentityFromContext(r.Context())
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid user id"})
		return
	}
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid request body"})
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "unknown role"})
		return
	}

	assignment, err := h.service.AssignRole(r.Context(), identity, userID, role)
	if err != nil {
		if errors.Is(err, ErrDuplicateRole) {
			shared.WriteJSON(w, http.StatusConflict, shared.ErrorBody{Error: "User already has this role"})
			return
		}
		h.respondServiceError(w, "assign role", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, assignment)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	identity, _ := authz.IdentityFromContext(r.Context())
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid user id"})
		return
	}
	role, err := authz.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "unknown role"})
		return
	}

	if err := h.service.RemoveRole(r.Context(), identity, userID, role); err != nil {
		switch {
		case errors.Is(err, ErrLastRole):
			shared.WriteJSON(w, http.StatusConflict, shared.ErrorBody{Error: "Users must have at least one role"})
		case errors.Is(err, ErrRoleNotAssigned):
			shared.WriteJSON(w, http.StatusNotFound, shared.ErrorBody{Error: "User does not hold this role"})
		default:
			h.respondServiceError(w, "remove role", err)
		}
		return
	}
	shared.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrForbidden) {
		shared.WriteError(w, http.StatusForbidden, err)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	shared.WriteError(w, http.StatusInternalServerError, err)
}
