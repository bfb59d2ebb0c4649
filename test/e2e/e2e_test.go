//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizguard/quizguard/internal/anticheat"
	"github.com/quizguard/quizguard/internal/client"
	"github.com/quizguard/quizguard/internal/scoring"
	"github.com/quizguard/quizguard/internal/security"
	"github.com/quizguard/quizguard/internal/service"
)

const defaultBaseURL = "http://localhost:8080"

var (
	baseURL string
	apiKey  string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiKey = os.Getenv("AUDIT_API_KEY")

	// Fail fast when the server is not up.
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		fmt.Printf("Server not reachable at %s: %v\n", baseURL, err)
		os.Exit(1)
	}
	resp.Body.Close()

	os.Exit(m.Run())
}

func newClient() *client.Client {
	return client.New(client.Options{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	})
}

func sel(v int) *int { return &v }

func TestFullQuizFlow(t *testing.T) {
	c := newClient()
	ctx := context.Background()

	require.NoError(t, c.InitializeSession(ctx))
	sessionID := c.SessionID()
	require.NotEmpty(t, sessionID)

	data, err := c.FetchQuestions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, data.Questions)

	// Cached copy decrypts and passes integrity verification.
	cached := c.EncryptedQuestions()
	require.NotNil(t, cached)
	assert.Equal(t, data.Questions, cached.Questions)

	// Answer the first question, leave the rest null.
	selections := scoring.Selections{}
	for i, q := range data.Questions {
		key := fmt.Sprintf("%d", q.ID)
		if i == 0 {
			selections[key] = sel(0)
		} else {
			selections[key] = nil
		}
	}

	report := &anticheat.Report{
		SessionID:      sessionID,
		Duration:       30000,
		SuspicionScore: 0,
	}

	result, err := c.SubmitAnswers(ctx, selections, report)
	require.NoError(t, err)
	assert.Len(t, result.Results, len(data.Questions))
	assert.Empty(t, result.Warning)

	summary := c.SecuritySummary()
	assert.True(t, summary.HasEncryptionKey)
	assert.True(t, summary.HasEncryptedData)
	assert.Greater(t, summary.SecurityEvents.TotalEvents, 0)
}

func TestHighSuspicionGetsWarningThenBlocked(t *testing.T) {
	c := newClient()
	ctx := context.Background()

	require.NoError(t, c.InitializeSession(ctx))

	report := &anticheat.Report{
		SessionID:      c.SessionID(),
		SuspicionScore: 95,
		IsSuspicious:   true,
	}

	result, err := c.SubmitAnswers(ctx, scoring.Selections{"1": sel(0)}, report)
	require.NoError(t, err)
	assert.Equal(t, service.SuspiciousWarning, result.Warning)

	// The block applies to subsequent requests. Requires Redis on the
	// server; without it the second submit also succeeds.
	_, err = c.SubmitAnswers(ctx, scoring.Selections{"1": sel(0)}, nil)
	if err != nil {
		assert.ErrorIs(t, err, client.ErrSessionBlocked)
	}
}

func TestRateLimitKicksIn(t *testing.T) {
	c := newClient()
	ctx := context.Background()
	require.NoError(t, c.InitializeSession(ctx))

	var rateLimited bool
	for i := 0; i < 15; i++ {
		if _, err := c.FetchQuestions(ctx); err != nil {
			require.ErrorIs(t, err, client.ErrRateLimited)
			rateLimited = true
			break
		}
	}
	assert.True(t, rateLimited, "expected the limiter to reject within 15 requests")

	events := c.Bus().EventsByType(security.EventRateLimitExceeded)
	assert.NotEmpty(t, events)
}

func TestAuditEndpointAuth(t *testing.T) {
	resp, err := http.Get(baseURL + "/api/audit")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	if apiKey == "" {
		t.Skip("AUDIT_API_KEY not set")
	}

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/audit", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", apiKey)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var summary service.AuditSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.GreaterOrEqual(t, summary.TotalSubmissions, 0)
}

func TestSecurityHeaders(t *testing.T) {
	resp, err := http.Get(baseURL + "/api/questions")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
}
