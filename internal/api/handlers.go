// Package api exposes the read-only HTTP API over the document mirror.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"example.com/endurance/internal/auth"
	"example.com/endurance/internal/persistence"
	"example.com/endurance/internal/persistence/postgres"
)

const defaultLimit = 50

// Repository is the mirror read surface the API needs.
type Repository interface {
	FindAthlete(ctx context.Context, id int64) (postgres.Document, error)
	ListActivities(ctx context.Context, filter postgres.ActivityFilter, cursor *persistence.Cursor, limit int) ([]postgres.Document, *persistence.Cursor, error)
	ListRuns(ctx context.Context, limit int) ([]postgres.RunRecord, error)
}

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxLimit caps the page size a client may request.
func WithMaxLimit(limit int) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.maxLimit = limit
		}
	}
}

// Handler serves athlete, activity and run lookups.
type Handler struct {
	repo     Repository
	logger   *slog.Logger
	maxLimit int
}

// NewHandler builds a Handler.
func NewHandler(repo Repository, opts ...Option) *Handler {
	h := &Handler{
		repo:     repo,
		logger:   slog.Default().With("component", "api"),
		maxLimit: 500,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/athletes/", h.athleteByID)
	mux.HandleFunc("/v1/activities", h.listActivities)
	mux.HandleFunc("/v1/runs", h.listRuns)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// AthleteResponse is the body of GET /v1/athletes/{id}.
type AthleteResponse struct {
	Athlete    postgres.Document   `json:"athlete"`
	Activities []postgres.Document `json:"activities"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []postgres.Document `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// ListRunsResponse packages run log results.
type ListRunsResponse struct {
	Items []postgres.RunRecord `json:"items"`
}

func (h *Handler) athleteByID(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, http.MethodGet, auth.ScopeAthletesRead) {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/v1/athletes/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "athlete id must be an integer")
		return
	}
	limit, cursor, ok := h.page(w, r)
	if !ok {
		return
	}

	athlete, err := h.repo.FindAthlete(r.Context(), id)
	if err != nil {
		h.serverError(w, "find athlete", err)
		return
	}
	if athlete == nil {
		writeError(w, http.StatusNotFound, "not_found", "athlete not found")
		return
	}

	activities, next, err := h.repo.ListActivities(r.Context(), postgres.ActivityFilter{AthleteID: &id}, cursor, limit)
	if err != nil {
		h.serverError(w, "list athlete activities", err)
		return
	}
	writeJSON(w, http.StatusOK, AthleteResponse{
		Athlete:    athlete,
		Activities: activities,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, http.MethodGet, auth.ScopeAthletesRead) {
		return
	}

	var filter postgres.ActivityFilter
	query := r.URL.Query()
	filter.AthleteName = strings.TrimSpace(query.Get("athlete_name"))
	if raw := query.Get("athlete_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "athlete_id must be an integer")
			return
		}
		filter.AthleteID = &id
	}
	if filter.AthleteID == nil && filter.AthleteName == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "athlete_name or athlete_id is required")
		return
	}
	limit, cursor, ok := h.page(w, r)
	if !ok {
		return
	}

	items, next, err := h.repo.ListActivities(r.Context(), filter, cursor, limit)
	if err != nil {
		h.serverError(w, "list activities", err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, http.MethodGet, auth.ScopeRunsRead) {
		return
	}
	limit, _, ok := h.page(w, r)
	if !ok {
		return
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.serverError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, ListRunsResponse{Items: runs})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, method, scope string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return false
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return false
	}
	return true
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) (int, *persistence.Cursor, bool) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return 0, nil, false
		}
		limit = parsed
	}
	limit = min(limit, h.maxLimit)

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return 0, nil, false
	}
	return limit, cursor, true
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
