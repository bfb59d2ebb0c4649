// Package client implements the secure API client: the single component
// allowed to perform network I/O, composing rate limiting, encryption, and
// audit logging around each request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/quizguard/quizguard/internal/anticheat"
	"github.com/quizguard/quizguard/internal/encryption"
	"github.com/quizguard/quizguard/internal/ratelimit"
	"github.com/quizguard/quizguard/internal/scoring"
	"github.com/quizguard/quizguard/internal/security"
)

// Failure taxonomy. Each is distinguishable so the UI can react: rate limits
// get a retry hint, blocked sessions force a restart flow.
var (
	// ErrRateLimited covers both the local limiter and a server 429.
	ErrRateLimited = errors.New("client: rate limit exceeded")
	// ErrSessionBlocked means the server flagged prior suspicious activity.
	// Fatal for the session; do not retry.
	ErrSessionBlocked = errors.New("client: session blocked")
	// ErrValidation means the server rejected the submission payload.
	ErrValidation = errors.New("client: invalid submission")
)

// QuestionsResponse is the /api/questions success body.
type QuestionsResponse struct {
	Questions []scoring.PublicQuestion `json:"questions"`
}

// SubmitResponse is the /api/submit success body. Warning is non-empty when
// the server flagged the session as suspicious.
type SubmitResponse struct {
	Score   int                  `json:"score"`
	Results []scoring.ResultItem `json:"results"`
	Warning string               `json:"warning,omitempty"`
}

// Summary is a read-only projection for display purposes.
type Summary struct {
	SessionID        string           `json:"sessionId"`
	HasEncryptionKey bool             `json:"hasEncryptionKey"`
	HasEncryptedData bool             `json:"hasEncryptedData"`
	SecurityEvents   security.Summary `json:"securityEvents"`
}

// Options configures a Client. Zero-value fields get working defaults: an
// in-memory store, a fresh bus, and the default local limiter.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      SessionStore
	Bus        *security.Bus
	Limiter    *ratelimit.Limiter
	Logger     zerolog.Logger
}

// Client owns the session encryption key and orchestrates every network
// operation: local rate limit check first, encryption around payloads, and a
// security event at each stage. At most one submission is in flight per
// session; concurrent SubmitAnswers calls share a single flight.
type Client struct {
	baseURL string
	http    *http.Client
	store   SessionStore
	bus     *security.Bus
	limiter *ratelimit.Limiter
	log     zerolog.Logger

	mu        sync.Mutex
	key       encryption.Key
	sessionID string

	sf singleflight.Group
}

// New creates a Client. The session is initialized lazily on the first
// fetch or submit unless InitializeSession is called first.
func New(opts Options) *Client {
	bus := opts.Bus
	if bus == nil {
		bus = security.NewBus(opts.Logger)
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New(bus)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL: opts.BaseURL,
		http:    httpClient,
		store:   store,
		bus:     bus,
		limiter: limiter,
		log:     opts.Logger.With().Str("component", "secure_client").Logger(),
	}
}

// Bus exposes the client's security event bus.
func (c *Client) Bus() *security.Bus { return c.bus }

// SessionID returns the current session identifier, empty before
// initialization.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// InitializeSession generates a session ID and restores the encryption key
// from the session store if present, generating and persisting a new one
// otherwise.
func (c *Client) InitializeSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeSessionLocked(ctx)
}

func (c *Client) initializeSessionLocked(_ context.Context) error {
	c.sessionID = uuid.New().String()

	if stored, ok := c.store.Get(storeKeyEncryptionKey); ok {
		key, err := encryption.ImportKey(stored)
		if err != nil {
			c.bus.Log(security.EventErrorOccurred, security.LevelCritical,
				"Failed to initialize secure session",
				map[string]any{"error": err.Error()})
			return fmt.Errorf("restore encryption key: %w", err)
		}
		c.key = key
		c.bus.Log(security.EventEncryptionKeyGenerated, security.LevelInfo,
			"Encryption key restored from session",
			map[string]any{"sessionId": c.sessionID})
		return nil
	}

	key, err := encryption.GenerateKey()
	if err != nil {
		c.bus.Log(security.EventErrorOccurred, security.LevelCritical,
			"Failed to initialize secure session",
			map[string]any{"error": err.Error()})
		return fmt.Errorf("generate encryption key: %w", err)
	}
	if err := c.store.Set(storeKeyEncryptionKey, encryption.ExportKey(key)); err != nil {
		c.bus.Log(security.EventErrorOccurred, security.LevelCritical,
			"Failed to initialize secure session",
			map[string]any{"error": err.Error()})
		return fmt.Errorf("persist encryption key: %w", err)
	}
	c.key = key
	c.bus.Log(security.EventEncryptionKeyGenerated, security.LevelInfo,
		"New encryption key generated",
		map[string]any{"sessionId": c.sessionID})
	return nil
}

// ensureSession lazily initializes when no key is held yet and returns the
// session state needed for a request.
func (c *Client) ensureSession(ctx context.Context) (encryption.Key, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil {
		if err := c.initializeSessionLocked(ctx); err != nil {
			return nil, "", err
		}
	}
	return c.key, c.sessionID, nil
}

func (c *Client) requestIdentifier(sessionID string) string {
	if sessionID == "" {
		return "anonymous"
	}
	return sessionID
}

// FetchQuestions retrieves the public question set, then re-encrypts it
// locally and stores ciphertext plus integrity hash for later verification.
func (c *Client) FetchQuestions(ctx context.Context) (*QuestionsResponse, error) {
	key, sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	if !c.limiter.Allow(c.requestIdentifier(sessionID)) {
		return nil, ErrRateLimited
	}

	c.bus.Log(security.EventAPIRequest, security.LevelInfo, "Fetching questions",
		map[string]any{"sessionId": sessionID})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/questions", nil)
	if err != nil {
		return nil, c.failCritical("Failed to fetch questions", sessionID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", sessionID)

	var data QuestionsResponse
	if err := c.do(req, &data); err != nil {
		return nil, c.failCritical("Failed to fetch questions", sessionID, err)
	}

	sealed, err := encryption.Encrypt(data, key)
	if err != nil {
		return nil, c.failCritical("Failed to fetch questions", sessionID, err)
	}
	hash, err := encryption.Hash(data)
	if err != nil {
		return nil, c.failCritical("Failed to fetch questions", sessionID, err)
	}

	c.bus.Log(security.EventDataEncrypted, security.LevelInfo, "Questions encrypted",
		map[string]any{
			"sessionId":     sessionID,
			"questionCount": len(data.Questions),
			"dataHash":      truncateHash(hash),
		})

	if err := c.store.Set(storeKeyQuestions, sealed); err != nil {
		return nil, c.failCritical("Failed to fetch questions", sessionID, err)
	}
	if err := c.store.Set(storeKeyQuestionsHash, hash); err != nil {
		return nil, c.failCritical("Failed to fetch questions", sessionID, err)
	}

	return &data, nil
}

type submitRequest struct {
	EncryptedData   string             `json:"encryptedData"`
	Selections      scoring.Selections `json:"selections"`
	AntiCheatReport *anticheat.Report  `json:"antiCheatReport,omitempty"`
}

// SubmitAnswers posts the selections together with the anti-cheat report,
// encrypting a copy of both the payload and the returned result for the local
// audit trail. A single-flight guard keyed by session collapses concurrent
// calls into one request.
func (c *Client) SubmitAnswers(ctx context.Context, selections scoring.Selections, report *anticheat.Report) (*SubmitResponse, error) {
	key, sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	v, err, _ := c.sf.Do(c.requestIdentifier(sessionID), func() (any, error) {
		return c.submit(ctx, key, sessionID, selections, report)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SubmitResponse), nil
}

func (c *Client) submit(ctx context.Context, key encryption.Key, sessionID string, selections scoring.Selections, report *anticheat.Report) (*SubmitResponse, error) {
	if !c.limiter.Allow(c.requestIdentifier(sessionID)) {
		return nil, ErrRateLimited
	}

	sealed, err := encryption.Encrypt(selections, key)
	if err != nil {
		return nil, c.failCritical("Failed to submit answers", sessionID, err)
	}
	hash, err := encryption.Hash(selections)
	if err != nil {
		return nil, c.failCritical("Failed to submit answers", sessionID, err)
	}

	c.bus.Log(security.EventDataEncrypted, security.LevelInfo,
		"Selections encrypted before submission",
		map[string]any{
			"sessionId":         sessionID,
			"selectionCount":    len(selections),
			"dataHash":          truncateHash(hash),
			"antiCheatIncluded": report != nil,
		})
	c.bus.Log(security.EventQuizSubmitted, security.LevelInfo, "Submitting quiz answers",
		map[string]any{"sessionId": sessionID})

	body, err := json.Marshal(submitRequest{
		EncryptedData:   sealed,
		Selections:      selections, // plaintext copy for server compatibility
		AntiCheatReport: report,
	})
	if err != nil {
		return nil, c.failCritical("Failed to submit answers", sessionID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/submit", bytes.NewReader(body))
	if err != nil {
		return nil, c.failCritical("Failed to submit answers", sessionID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", sessionID)
	req.Header.Set("X-Data-Hash", hash)

	var result SubmitResponse
	if err := c.do(req, &result); err != nil {
		return nil, c.failCritical("Failed to submit answers", sessionID, err)
	}

	sealedResult, err := encryption.Encrypt(result, key)
	if err != nil {
		return nil, c.failCritical("Failed to submit answers", sessionID, err)
	}
	if err := c.store.Set(storeKeyResult, sealedResult); err != nil {
		return nil, c.failCritical("Failed to submit answers", sessionID, err)
	}

	c.bus.Log(security.EventDataEncrypted, security.LevelInfo, "Result encrypted and stored",
		map[string]any{"sessionId": sessionID, "score": result.Score})

	return &result, nil
}

// EncryptedQuestions decrypts the locally cached question payload and
// verifies it against the stored hash. A tampered or missing cache is treated
// as absent: the return is nil, never a panic or error. A hash mismatch logs
// a critical VALIDATION_FAILED event.
func (c *Client) EncryptedQuestions() *QuestionsResponse {
	c.mu.Lock()
	key := c.key
	sessionID := c.sessionID
	c.mu.Unlock()

	sealed, okData := c.store.Get(storeKeyQuestions)
	hash, okHash := c.store.Get(storeKeyQuestionsHash)
	if key == nil || !okData || !okHash {
		return nil
	}

	var data QuestionsResponse
	if err := encryption.Decrypt(sealed, key, &data); err != nil {
		c.bus.Log(security.EventErrorOccurred, security.LevelCritical,
			"Failed to decrypt questions",
			map[string]any{"error": err.Error(), "sessionId": sessionID})
		return nil
	}

	valid, err := encryption.VerifyHash(data, hash)
	if err != nil || !valid {
		c.bus.Log(security.EventValidationFailed, security.LevelCritical,
			"Data integrity check failed",
			map[string]any{"sessionId": sessionID})
		return nil
	}

	c.bus.Log(security.EventDataDecrypted, security.LevelInfo,
		"Questions decrypted successfully",
		map[string]any{"sessionId": sessionID})

	return &data
}

// ClearSession erases the key and all derived cached material and resets
// in-memory state.
func (c *Client) ClearSession() {
	for _, k := range []string{storeKeyEncryptionKey, storeKeyQuestions, storeKeyQuestionsHash, storeKeyResult} {
		if err := c.store.Delete(k); err != nil {
			c.log.Warn().Err(err).Str("key", k).Msg("failed to clear stored material")
		}
	}

	c.mu.Lock()
	c.key = nil
	c.sessionID = ""
	c.mu.Unlock()

	c.bus.Log(security.EventQuizStarted, security.LevelInfo, "Secure session cleared", nil)
}

// SecuritySummary combines encryption-presence flags with the event bus
// summary for display.
func (c *Client) SecuritySummary() Summary {
	c.mu.Lock()
	sessionID := c.sessionID
	hasKey := c.key != nil
	c.mu.Unlock()

	_, hasData := c.store.Get(storeKeyQuestions)

	return Summary{
		SessionID:        sessionID,
		HasEncryptionKey: hasKey,
		HasEncryptedData: hasData,
		SecurityEvents:   c.bus.Summary(),
	}
}

// do executes a request and decodes the success body into out, mapping error
// statuses onto the failure taxonomy.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps HTTP failures onto sentinel errors, carrying the server's
// error message when one is present.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrSessionBlocked, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
}

func (c *Client) failCritical(message, sessionID string, err error) error {
	c.bus.Log(security.EventErrorOccurred, security.LevelCritical, message,
		map[string]any{"error": err.Error(), "sessionId": sessionID})
	return err
}

func truncateHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}
