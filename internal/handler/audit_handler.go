package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/response"
	"github.com/quizguard/quizguard/internal/service"
)

type AuditHandler struct {
	auditService *service.AuditService
	log          zerolog.Logger
}

func NewAuditHandler(auditService *service.AuditService, log zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		log:          log.With().Str("component", "audit_handler").Logger(),
	}
}

// GetAudit godoc
// GET /api/audit
func (h *AuditHandler) GetAudit(c *gin.Context) {
	summary, err := h.auditService.Summary()
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// ClearAudit godoc
// DELETE /api/audit
func (h *AuditHandler) ClearAudit(c *gin.Context) {
	if err := h.auditService.Clear(); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Audit logs cleared"})
}
