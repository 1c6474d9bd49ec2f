package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/endurance/internal/auth"
	"example.com/endurance/internal/persistence"
	"example.com/endurance/internal/persistence/postgres"
)

type mockRepo struct {
	athletes   map[int64]postgres.Document
	activities []postgres.Document
	next       *persistence.Cursor
	runs       []postgres.RunRecord
	err        error

	lastFilter postgres.ActivityFilter
	lastCursor *persistence.Cursor
	lastLimit  int
}

func (m *mockRepo) FindAthlete(_ context.Context, id int64) (postgres.Document, error) {
	return m.athletes[id], m.err
}

func (m *mockRepo) ListActivities(_ context.Context, filter postgres.ActivityFilter, cursor *persistence.Cursor, limit int) ([]postgres.Document, *persistence.Cursor, error) {
	m.lastFilter, m.lastCursor, m.lastLimit = filter, cursor, limit
	return m.activities, m.next, m.err
}

func (m *mockRepo) ListRuns(_ context.Context, limit int) ([]postgres.RunRecord, error) {
	m.lastLimit = limit
	return m.runs, m.err
}

func newTestHandler(repo *mockRepo) http.Handler {
	h := NewHandler(repo, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithMaxLimit(100))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func request(method, target string, scopes ...string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if scopes == nil {
		return req
	}
	claims := &auth.Claims{
		Subject:   "tester",
		Scopes:    map[string]struct{}{},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, s := range scopes {
		claims.Scopes[s] = struct{}{}
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGetAthleteReturnsMetadataAndActivities(t *testing.T) {
	repo := &mockRepo{
		athletes: map[int64]postgres.Document{42: {"Athlete ID": float64(42), "Country": "KEN"}},
		activities: []postgres.Document{
			{"Serial": float64(103), "Start Date": "2024-11-10"},
			{"Serial": float64(101), "Start Date": "2024-11-04"},
		},
		next: &persistence.Cursor{StartDate: "2024-11-04", Position: 7},
	}

	rr := serve(newTestHandler(repo), request(http.MethodGet, "/v1/athletes/42?limit=2", auth.ScopeAthletesRead))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp AthleteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "KEN", resp.Athlete["Country"])
	require.Len(t, resp.Activities, 2)
	require.Equal(t, persistence.EncodeCursor(repo.next), resp.NextCursor)
	require.Equal(t, int64(42), *repo.lastFilter.AthleteID)
	require.Equal(t, 2, repo.lastLimit)
}

func TestGetAthleteStatusCodes(t *testing.T) {
	repo := &mockRepo{athletes: map[int64]postgres.Document{}}
	h := newTestHandler(repo)

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"unknown athlete", request(http.MethodGet, "/v1/athletes/404", auth.ScopeAthletesRead), http.StatusNotFound},
		{"non-numeric id", request(http.MethodGet, "/v1/athletes/abc", auth.ScopeAthletesRead), http.StatusBadRequest},
		{"missing id", request(http.MethodGet, "/v1/athletes/", auth.ScopeAthletesRead), http.StatusBadRequest},
		{"no claims", request(http.MethodGet, "/v1/athletes/42"), http.StatusUnauthorized},
		{"wrong scope", request(http.MethodGet, "/v1/athletes/42", auth.ScopeRunsRead), http.StatusForbidden},
		{"wrong method", request(http.MethodPost, "/v1/athletes/42", auth.ScopeAthletesRead), http.StatusMethodNotAllowed},
		{"bad cursor", request(http.MethodGet, "/v1/athletes/42?cursor=%25%25", auth.ScopeAthletesRead), http.StatusBadRequest},
		{"bad limit", request(http.MethodGet, "/v1/athletes/42?limit=-1", auth.ScopeAthletesRead), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(h, tc.req)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestListActivitiesByName(t *testing.T) {
	repo := &mockRepo{activities: []postgres.Document{{"Athlete Name": "Ana Silva"}}}
	h := newTestHandler(repo)

	cursor := persistence.EncodeCursor(&persistence.Cursor{StartDate: "2024-11-10", Position: 3})
	rr := serve(h, request(http.MethodGet, "/v1/activities?athlete_name=ana%20silva&limit=1000&cursor="+cursor, auth.ScopeAthletesRead))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp ListActivitiesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	require.Empty(t, resp.NextCursor)
	require.Equal(t, "ana silva", repo.lastFilter.AthleteName)
	require.Nil(t, repo.lastFilter.AthleteID)
	require.Equal(t, 100, repo.lastLimit)
	require.Equal(t, &persistence.Cursor{StartDate: "2024-11-10", Position: 3}, repo.lastCursor)

	rr = serve(h, request(http.MethodGet, "/v1/activities", auth.ScopeAthletesRead))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(h, request(http.MethodGet, "/v1/activities?athlete_id=x", auth.ScopeAthletesRead))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRepositoryFailureIsInternalError(t *testing.T) {
	repo := &mockRepo{err: errors.New("connection refused")}
	rr := serve(newTestHandler(repo), request(http.MethodGet, "/v1/activities?athlete_id=42", auth.ScopeAthletesRead))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
}

func TestListRunsAndHealth(t *testing.T) {
	repo := &mockRepo{runs: []postgres.RunRecord{{RunID: "run-1", EventType: "ingestion.completed", Appended: 3}}}
	h := newTestHandler(repo)

	rr := serve(h, request(http.MethodGet, "/v1/runs", auth.ScopeRunsRead))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ListRunsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "run-1", resp.Items[0].RunID)
	require.Equal(t, defaultLimit, repo.lastLimit)

	rr = serve(h, request(http.MethodGet, "/v1/runs", auth.ScopeAthletesRead))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(h, request(http.MethodGet, "/healthz"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}
