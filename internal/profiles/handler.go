package profiles

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/shared"
)

// Handler manages the profile settings endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers profile routes. Callers are already authenticated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.getProfile)
	r.Put("/", h.updateProfile)
}

type updateProfileRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrUnauthenticated)
		return
	}
	profile, err := h.service.Get(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.WriteError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("get profile", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrUnauthenticated)
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "full_name must be 2-100 characters"})
		return
	}
	profile, err := h.service.UpdateFullName(r.Context(), identity.UserID, req.FullName)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.WriteError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("update profile", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, profile)
}
