package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizguard/quizguard/internal/config"
	"github.com/quizguard/quizguard/internal/handler"
	"github.com/quizguard/quizguard/internal/middleware"
	"github.com/quizguard/quizguard/internal/router"
	"github.com/quizguard/quizguard/internal/scoring"
	"github.com/quizguard/quizguard/internal/security"
	"github.com/quizguard/quizguard/internal/service"
	"github.com/quizguard/quizguard/internal/store"
	"github.com/quizguard/quizguard/internal/validator"
)

const testAPIKey = "test-api-key"

func newTestRouter(t *testing.T) (*gin.Engine, *security.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	log := zerolog.Nop()
	bus := security.NewBus(log)
	results := store.NewResultStore(filepath.Join(t.TempDir(), "results.json"), log)
	quizService := service.NewQuizService(scoring.DefaultQuestions(), nil, results, 24*time.Hour, log)
	auditService := service.NewAuditService(results, log)

	handlers := &router.Handlers{
		Quiz:           handler.NewQuizHandler(quizService, bus, testAPIKey, log),
		Audit:          handler.NewAuditHandler(auditService, log),
		SecurityStream: handler.NewSecurityStreamHandler(bus, log, nil),
	}
	limiter := middleware.NewRateLimiter(nil, 10, time.Minute, log)

	cfg := &config.Config{GinMode: gin.TestMode, APIKey: testAPIKey}
	return router.SetupRouter(handlers, limiter, cfg), bus
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetQuestions(t *testing.T) {
	r, bus := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/questions", nil, map[string]string{"X-Session-Id": "session-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Questions []scoring.PublicQuestion `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Questions, len(scoring.DefaultQuestions()))
	assert.NotContains(t, w.Body.String(), "correct")

	assert.NotEmpty(t, bus.EventsByType(security.EventAPIRequest))
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/questions", nil, nil)
	h := w.Header()
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Contains(t, h.Get("Strict-Transport-Security"), "max-age=")
	assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'self'")
	assert.Equal(t, "no-store", h.Get("Cache-Control"))
}

func TestSubmitScores(t *testing.T) {
	r, bus := newTestRouter(t)

	body := []byte(`{"encryptedData": "ignored", "selections": {"1": 2, "2": null}, "antiCheatReport": {"sessionId": "session-1", "suspicionScore": 10, "isSuspicious": false, "events": []}}`)
	w := doJSON(t, r, http.MethodPost, "/api/submit", body, map[string]string{"X-Session-Id": "session-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Score   int                  `json:"score"`
		Results []scoring.ResultItem `json:"results"`
		Warning string               `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, len(scoring.DefaultQuestions()))
	assert.Empty(t, resp.Warning)

	assert.NotEmpty(t, bus.EventsByType(security.EventQuizSubmitted))
}

func TestSubmitHighSuspicionWarns(t *testing.T) {
	r, bus := newTestRouter(t)

	body := []byte(`{"selections": {"1": 0}, "antiCheatReport": {"sessionId": "session-1", "suspicionScore": 85, "isSuspicious": true, "events": []}}`)
	w := doJSON(t, r, http.MethodPost, "/api/submit", body, map[string]string{"X-Session-Id": "session-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Warning string `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, service.SuspiciousWarning, resp.Warning)

	assert.NotEmpty(t, bus.EventsByType(security.EventSuspiciousActivity))
}

func TestSubmitMalformedBody(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/submit", []byte(`{not json`), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Invalid request"}`, w.Body.String())
}

func TestSubmitInvalidSelections(t *testing.T) {
	r, bus := newTestRouter(t)

	cases := []string{
		`{"selections": [1, 2, 3]}`,
		`{"selections": {"1": "a"}}`,
		`{"selections": {"999": 0}}`,
		`{"selections": {"1": 99}}`,
	}
	for _, body := range cases {
		w := doJSON(t, r, http.MethodPost, "/api/submit", []byte(body), nil)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error": "Invalid selections"}`, w.Body.String(), body)
	}

	assert.NotEmpty(t, bus.EventsByType(security.EventValidationFailed))
}

func TestAuditRequiresAPIKey(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/audit", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error": "Unauthorized"}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/audit", nil, map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditSummaryAndClear(t *testing.T) {
	r, _ := newTestRouter(t)
	auth := map[string]string{"X-API-Key": testAPIKey}

	// Seed one submission. Persistence requires the API key on the submit
	// request itself.
	body := []byte(`{"selections": {"1": 2}}`)
	w := doJSON(t, r, http.MethodPost, "/api/submit", body, map[string]string{"X-Session-Id": "session-1", "X-API-Key": testAPIKey})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/audit", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)

	var summary service.AuditSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalSubmissions)
	assert.Equal(t, 1, summary.UniqueSessions)
	require.Len(t, summary.RecentSubmissions, 1)
	assert.Equal(t, "session-1", summary.RecentSubmissions[0].SessionID)

	w = doJSON(t, r, http.MethodDelete, "/api/audit", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "Audit logs cleared"}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/audit", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.TotalSubmissions)
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
