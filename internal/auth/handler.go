package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/profiles"
	"github.com/archvault/archvault/internal/shared"
	"github.com/archvault/archvault/internal/users"
)

// ProfileSource loads profile rows for the current-identity endpoint.
type ProfileSource interface {
	Get(ctx context.Context, id uuid.UUID) (profiles.Profile, error)
}

// AssignmentSource loads role assignment rows with their metadata.
type AssignmentSource interface {
	AssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]users.RoleAssignment, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	profiles       ProfileSource
	assignments    AssignmentSource
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, profileSource ProfileSource, assignmentSource AssignmentSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	// Mixed-case plus a digit, matching the client-side signup form.
	_ = v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		return passwordStrong(fl.Field().String())
	})
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		profiles:       profileSource,
		assignments:    assignmentSource,
		validator:      v,
	}
}

func passwordStrong(pw string) bool {
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/signup", h.handleSignUp)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128,password_strength"`
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type permissionsBody struct {
	CanEdit        bool           `json:"can_edit"`
	CanCreate      bool           `json:"can_create"`
	CanDelete      bool           `json:"can_delete"`
	CanManageUsers bool           `json:"can_manage_users"`
	Domains        []authz.Domain `json:"domains"`
}

type meResponse struct {
	UserID      uuid.UUID              `json:"user_id"`
	Profile     *profiles.Profile      `json:"profile"`
	Roles       []authz.Role           `json:"roles"`
	PrimaryRole authz.Role             `json:"primary_role"`
	Permissions permissionsBody        `json:"permissions"`
	Assignments []users.RoleAssignment `json:"assignments,omitempty"`
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid request body"})
		return
	}
	if errs := h.validationErrors(req); len(errs) > 0 {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}
	user, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			shared.WriteJSON(w, http.StatusConflict, shared.ErrorBody{Error: "This email is already registered"})
			return
		}
		h.logger.Error("sign up", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"message": "Account created, check your inbox to verify your email",
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid request body"})
		return
	}
	if errs := h.validationErrors(req); len(errs) > 0 {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrInvalidCredentials)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		shared.WriteError(w, http.StatusInternalServerError, errors.New("session missing"))
		return
	}
	sess.SetUser(user.ID.String())
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"user_id": user.ID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		// Drop the Redis record now instead of waiting for Commit so the
		// session is unusable the moment this handler returns.
		if err := h.sessionManager.Drop(r.Context(), sess); err != nil {
			h.logger.Warn("drop session", slog.Any("error", err))
		}
		sess.ClearUser()
		h.sessionManager.Destroy(sess)
	}
	shared.WriteJSON(w, http.StatusNoContent, nil)
}

// handleMe reports the resolved identity with its aggregated permissions.
// Profile and assignment lookups run concurrently and degrade independently:
// a failed fetch logs and leaves the field empty rather than failing the
// whole endpoint.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrUnauthenticated)
		return
	}

	var (
		profile    *profiles.Profile
		assignment []users.RoleAssignment
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		p, err := h.profiles.Get(ctx, identity.UserID)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				h.logger.Warn("fetch profile", slog.Any("error", err))
			}
			return nil
		}
		profile = &p
		return nil
	})
	g.Go(func() error {
		rows, err := h.assignments.AssignmentsForUser(ctx, identity.UserID)
		if err != nil {
			h.logger.Warn("fetch role assignments", slog.Any("error", err))
			return nil
		}
		assignment = rows
		return nil
	})
	_ = g.Wait()

	agg := identity.Aggregate()
	shared.WriteJSON(w, http.StatusOK, meResponse{
		UserID:      identity.UserID,
		Profile:     profile,
		Roles:       identity.Roles,
		PrimaryRole: identity.Primary(),
		Permissions: permissionsBody{
			CanEdit:        agg.CanEdit,
			CanCreate:      agg.CanCreate,
			CanDelete:      agg.CanDelete,
			CanManageUsers: agg.CanManageUsers,
			Domains:        agg.DomainList(),
		},
		Assignments: assignment,
	})
}

func (h *Handler) validationErrors(v any) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		} else {
			errs["general"] = err.Error()
		}
	}
	return errs
}
