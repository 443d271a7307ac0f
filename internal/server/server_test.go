package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarswipe/internal/common/config"
	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
	"scholarswipe/internal/search"
)

// ==========================
// Stub Services
// ==========================

type stubMatches struct {
	results []models.MatchResult
	err     error
}

func (s *stubMatches) Score(_ context.Context, userID string, ids []string) ([]models.MatchResult, error) {
	if userID == "" {
		return nil, errors.NewInvalidRequestError("userId is required")
	}
	if len(ids) == 0 {
		return nil, errors.NewInvalidRequestError("scholarshipIds must not be empty")
	}
	return s.results, s.err
}

type stubSessions struct {
	snapshot *models.SessionSnapshot
	err      error
	resetIDs []string
}

func (s *stubSessions) Restore(_ context.Context, userID string) (*models.SessionSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubSessions) Swipe(_ context.Context, userID, scholarshipID string, action models.SwipeAction) (*models.SessionSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubSessions) Reset(_ context.Context, userID string) error {
	s.resetIDs = append(s.resetIDs, userID)
	return s.err
}

type stubSearch struct {
	result *search.Result
	err    error
	lastQ  search.Query
}

func (s *stubSearch) Search(_ context.Context, q search.Query) (*search.Result, error) {
	s.lastQ = q
	return s.result, s.err
}

type stubFeedback struct {
	err error
}

func (s *stubFeedback) SubmitFeedback(_ context.Context, f *models.Feedback) error {
	if s.err != nil {
		return s.err
	}
	f.ID = "fb-1"
	return nil
}

type stubHealth struct {
	checks map[string]string
}

func (s *stubHealth) Check(_ context.Context) map[string]string { return s.checks }

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Name = "scholarswipe-test"
	cfg.Server.Address = ":0"
	return New(cfg, deps, logger.NewTestLogger(t))
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	resp, err := s.App.Test(req)
	require.NoError(t, err)

	var parsed map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&parsed)
	return resp, parsed
}

// ==========================
// POST /api/matches
// ==========================

func TestMatches_ReturnsScoredBatch(t *testing.T) {
	s := newTestServer(t, Deps{
		Matches: &stubMatches{results: []models.MatchResult{
			{ScholarshipID: "sch-1", WinProbability: 0.62, MatchReasons: []string{"Good fit"}, Source: models.SourceModel, Tags: []string{"Medium Value"}},
			{ScholarshipID: "sch-2", WinProbability: 0.45, MatchReasons: []string{"Worth a try"}, Source: models.SourceFallback},
		}},
	})

	resp, body := doJSON(t, s, "POST", "/api/matches",
		`{"userId": "user-1", "scholarshipIds": ["sch-1", "sch-2"]}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	matches := body["matches"].([]interface{})
	require.Len(t, matches, 2)

	first := matches[0].(map[string]interface{})
	assert.Equal(t, "sch-1", first["scholarship_id"])
	assert.Equal(t, 0.62, first["win_probability"])
	assert.Equal(t, "model", first["source"])

	second := matches[1].(map[string]interface{})
	assert.Equal(t, "fallback", second["source"])
}

func TestMatches_MissingUserIDIs400(t *testing.T) {
	s := newTestServer(t, Deps{Matches: &stubMatches{}})

	resp, _ := doJSON(t, s, "POST", "/api/matches", `{"scholarshipIds": ["sch-1"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMatches_EmptyIDsIs400(t *testing.T) {
	s := newTestServer(t, Deps{Matches: &stubMatches{}})

	resp, _ := doJSON(t, s, "POST", "/api/matches", `{"userId": "user-1", "scholarshipIds": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMatches_MalformedBodyIs400(t *testing.T) {
	s := newTestServer(t, Deps{Matches: &stubMatches{}})

	resp, _ := doJSON(t, s, "POST", "/api/matches", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMatches_UnknownProfileIs404(t *testing.T) {
	s := newTestServer(t, Deps{
		Matches: &stubMatches{err: errors.NewProfileNotFoundError("ghost")},
	})

	resp, _ := doJSON(t, s, "POST", "/api/matches", `{"userId": "ghost", "scholarshipIds": ["sch-1"]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMatches_InternalErrorHidesDetails(t *testing.T) {
	s := newTestServer(t, Deps{
		Matches: &stubMatches{err: fmt.Errorf("pq: relation user_profiles does not exist")},
	})

	resp, body := doJSON(t, s, "POST", "/api/matches", `{"userId": "user-1", "scholarshipIds": ["sch-1"]}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", body["error"])
	raw, _ := json.Marshal(body)
	assert.NotContains(t, string(raw), "user_profiles")
}

// ==========================
// POST /api/swipes
// ==========================

func TestSwipe_UpdatesSession(t *testing.T) {
	s := newTestServer(t, Deps{
		Sessions: &stubSessions{snapshot: &models.SessionSnapshot{
			UserID:       "user-1",
			History:      []string{"sch-1"},
			CurrentIndex: 1,
		}},
	})

	resp, body := doJSON(t, s, "POST", "/api/swipes",
		`{"userId": "user-1", "scholarship_id": "sch-1", "action": "liked"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["currentIndex"])
}

func TestSwipe_RejectsUnknownAction(t *testing.T) {
	s := newTestServer(t, Deps{Sessions: &stubSessions{}})

	resp, _ := doJSON(t, s, "POST", "/api/swipes",
		`{"userId": "user-1", "scholarship_id": "sch-1", "action": "super-liked"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSwipe_RequiresIDs(t *testing.T) {
	s := newTestServer(t, Deps{Sessions: &stubSessions{}})

	resp, _ := doJSON(t, s, "POST", "/api/swipes", `{"action": "liked"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ==========================
// Session Endpoints
// ==========================

func TestGetSession_ReturnsSnapshot(t *testing.T) {
	s := newTestServer(t, Deps{
		Sessions: &stubSessions{snapshot: &models.SessionSnapshot{
			UserID: "user-1",
			Status: models.SessionRestored,
		}},
	})

	resp, body := doJSON(t, s, "GET", "/api/session/user-1", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "restored", body["status"])
}

func TestDeleteSession_Resets(t *testing.T) {
	sessions := &stubSessions{}
	s := newTestServer(t, Deps{Sessions: sessions})

	resp, _ := doJSON(t, s, "DELETE", "/api/session/user-1", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"user-1"}, sessions.resetIDs)
}

// ==========================
// GET /api/search
// ==========================

func TestSearch_PassesQueryThrough(t *testing.T) {
	stub := &stubSearch{result: &search.Result{
		Scholarships: []models.Scholarship{{ID: "sch-1", Title: "STEM Award"}},
		TotalHits:    1,
	}}
	s := newTestServer(t, Deps{Search: stub})

	resp, body := doJSON(t, s, "GET",
		"/api/search?q=stem&tags=STEM,Merit&minAmount=1000&maxAmount=5000&from=20&size=10", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, "stem", stub.lastQ.Text)
	assert.Equal(t, []string{"STEM", "Merit"}, stub.lastQ.Tags)
	assert.Equal(t, 1000.0, stub.lastQ.MinAmount)
	assert.Equal(t, 5000.0, stub.lastQ.MaxAmount)
	assert.Equal(t, 20, stub.lastQ.From)
	assert.Equal(t, 10, stub.lastQ.Size)
}

func TestSearch_BackendFailureIs500(t *testing.T) {
	s := newTestServer(t, Deps{
		Search: &stubSearch{err: errors.NewSearchQueryFailedError(fmt.Errorf("cluster down"))},
	})

	resp, body := doJSON(t, s, "GET", "/api/search?q=x", "")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", body["error"])
}

// ==========================
// POST /api/feedback
// ==========================

func TestFeedback_Submits(t *testing.T) {
	s := newTestServer(t, Deps{Feedback: &stubFeedback{}})

	resp, body := doJSON(t, s, "POST", "/api/feedback",
		`{"name": "Jordan", "email": "jordan@example.com", "message": "Great app"}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "fb-1", body["id"])
}

func TestFeedback_RequiresMessage(t *testing.T) {
	s := newTestServer(t, Deps{Feedback: &stubFeedback{}})

	resp, _ := doJSON(t, s, "POST", "/api/feedback", `{"name": "Jordan"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ==========================
// GET /healthz
// ==========================

func TestHealthz_AllOK(t *testing.T) {
	s := newTestServer(t, Deps{
		Health: &stubHealth{checks: map[string]string{"postgres": "ok", "redis": "ok"}},
	})

	resp, body := doJSON(t, s, "GET", "/healthz", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthz_DegradedDependency(t *testing.T) {
	s := newTestServer(t, Deps{
		Health: &stubHealth{checks: map[string]string{"postgres": "ok", "redis": "connection refused"}},
	})

	resp, body := doJSON(t, s, "GET", "/healthz", "")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
}
