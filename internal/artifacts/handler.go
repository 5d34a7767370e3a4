package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/shared"
)

const exportLimit = 5000

// Handler manages artifact endpoints.
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

// MountRoutes registers artifact routes. Reads need authentication only;
// mutations are re-authorized inside the service against the artifact's
// domain, so no per-route role middleware is required here.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/summary", h.summary)
	r.Get("/export.csv", h.exportCSV)
	r.Get("/{id}", h.get)
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: err.Error()})
		return
	}
	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list artifacts", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	// Surface the caller's per-domain action set so the client can decide
	// which controls to show without re-deriving the table.
	actions := map[authz.Domain]authz.Actions{}
	if identity, ok := authz.IdentityFromContext(r.Context()); ok {
		for _, d := range authz.AllDomains() {
			actions[d] = authz.ActionsFor(identity.Roles, d)
		}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"artifacts":  list,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
		"actions":    actions,
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("artifact summary", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"domains": counts})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: err.Error()})
		return
	}
	filter.Page = 1
	filter.PerPage = exportLimit
	list, _, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("export artifacts", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	data, err := WriteCSV(list)
	if err != nil {
		h.logger.Error("write artifact csv", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	filename := fmt.Sprintf("artifacts-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid artifact id"})
		return
	}
	artifact, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.WriteError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("get artifact", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, artifact)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrUnauthenticated)
		return
	}
	var req CreateArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: err.Error()})
		return
	}
	artifact, err := h.service.Create(r.Context(), identity, req)
	if err != nil {
		h.respondMutationError(w, "create artifact", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, artifact)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid artifact id"})
		return
	}
	var req UpdateArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: err.Error()})
		return
	}
	artifact, err := h.service.Update(r.Context(), identity, id, req)
	if err != nil {
		h.respondMutationError(w, "update artifact", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, artifact)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "invalid artifact id"})
		return
	}
	if err := h.service.Delete(r.Context(), identity, id); err != nil {
		h.respondMutationError(w, "delete artifact", err)
		return
	}
	shared.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) respondMutationError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrForbidden):
		shared.WriteError(w, http.StatusForbidden, err)
	case errors.Is(err, shared.ErrNotFound):
		shared.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrTypeDomainMismatch), errors.Is(err, ErrInvalidVersion),
		errors.Is(err, ErrUnknownType), errors.Is(err, ErrUnknownStatus),
		errors.Is(err, authz.ErrUnknownDomain):
		shared.WriteJSON(w, http.StatusUnprocessableEntity, shared.ErrorBody{Error: err.Error()})
	default:
		h.logger.Error(op, slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	if raw := q.Get("domain"); raw != "" {
		domain, err := authz.ParseDomain(raw)
		if err != nil {
			return ListFilter{}, errors.New("unknown domain")
		}
		filter.Domain = &domain
	}
	if raw := q.Get("type"); raw != "" {
		t, err := ParseType(raw)
		if err != nil {
			return ListFilter{}, errors.New("unknown artifact type")
		}
		filter.Type = &t
	}
	if raw := q.Get("status"); raw != "" {
		s, err := ParseStatus(raw)
		if err != nil {
			return ListFilter{}, errors.New("unknown status")
		}
		filter.Status = &s
	}
	filter.Search = q.Get("q")
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	return filter, nil
}
