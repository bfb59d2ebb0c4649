package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/model"
	"github.com/quizguard/quizguard/internal/response"
	"github.com/quizguard/quizguard/internal/scoring"
	"github.com/quizguard/quizguard/internal/security"
	"github.com/quizguard/quizguard/internal/service"
	"github.com/quizguard/quizguard/internal/validator"
)

type QuizHandler struct {
	quizService *service.QuizService
	bus         *security.Bus
	apiKey      string
	log         zerolog.Logger
}

func NewQuizHandler(quizService *service.QuizService, bus *security.Bus, apiKey string, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
		bus:         bus,
		apiKey:      apiKey,
		log:         log.With().Str("component", "quiz_handler").Logger(),
	}
}

// authorizedForPersistence reports whether the request carries the audit API
// key. Submissions from such callers get their results written to the audit
// log; everyone else is scored without persistence.
func (h *QuizHandler) authorizedForPersistence(c *gin.Context) bool {
	provided := c.GetHeader("X-API-Key")
	if h.apiKey == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.apiKey)) == 1
}

type questionsBody struct {
	Questions []scoring.PublicQuestion `json:"questions"`
}

type submitBody struct {
	Score   int                  `json:"score"`
	Results []scoring.ResultItem `json:"results"`
	Warning string               `json:"warning,omitempty"`
}

// GetQuestions godoc
// GET /api/questions
func (h *QuizHandler) GetQuestions(c *gin.Context) {
	sessionID := c.GetHeader("X-Session-Id")

	h.bus.Log(security.EventAPIRequest, security.LevelInfo, "Questions requested",
		map[string]any{"sessionId": sessionID, "ip": c.ClientIP()})

	questions, err := h.quizService.Questions(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionBlocked) {
			response.Fail(c, http.StatusForbidden, response.ErrSessionBlocked)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, questionsBody{Questions: questions})
}

// Submit godoc
// POST /api/submit
func (h *QuizHandler) Submit(c *gin.Context) {
	sessionID := c.GetHeader("X-Session-Id")

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest)
		return
	}

	selections, err := h.quizService.ParseSelections(req.Selections)
	if err != nil {
		h.bus.Log(security.EventValidationFailed, security.LevelWarning,
			"Submission rejected: invalid selections",
			map[string]any{"sessionId": sessionID})
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidSelections)
		return
	}

	if req.AntiCheatReport != nil && req.AntiCheatReport.IsSuspicious {
		h.bus.Log(security.EventSuspiciousActivity, security.LevelWarning,
			"Suspicious submission received",
			map[string]any{
				"sessionId":      sessionID,
				"suspicionScore": req.AntiCheatReport.SuspicionScore,
				"tabSwitches":    req.AntiCheatReport.TabSwitches,
			})
	}

	result, err := h.quizService.Submit(c.Request.Context(), sessionID, selections, req.AntiCheatReport, h.authorizedForPersistence(c))
	if err != nil {
		if errors.Is(err, service.ErrSessionBlocked) {
			response.Fail(c, http.StatusForbidden, response.ErrSessionBlocked)
			return
		}
		h.log.Error().Err(err).Msg("submission failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.bus.Log(security.EventQuizSubmitted, security.LevelInfo, "Quiz submitted",
		map[string]any{"sessionId": sessionID, "score": result.Score})

	response.Success(c, http.StatusOK, submitBody{
		Score:   result.Score,
		Results: result.Results,
		Warning: result.Warning,
	})
}
