package delivery

import (
	"context"
	"errors"
	"net/http"
	"strings"

	authdelivery "jobtracker-backend/internal/auth/delivery"
	maildomain "jobtracker-backend/internal/mail/domain"
	maildto "jobtracker-backend/internal/mail/dto"
	"jobtracker-backend/internal/mail/usecase"

	"github.com/gin-gonic/gin"
)

type MailHandler struct {
	syncUsecase  usecase.SyncUsecase
	queryUsecase usecase.QueryUsecase
}

func NewMailHandler(syncUsecase usecase.SyncUsecase, queryUsecase usecase.QueryUsecase) *MailHandler {
	return &MailHandler{syncUsecase: syncUsecase, queryUsecase: queryUsecase}
}

// Sync runs an incremental sync for the caller
// POST /api/sync
func (h *MailHandler) Sync(c *gin.Context) {
	var req maildto.SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.syncUsecase.SyncOwner(c.Request.Context(), authdelivery.OwnerFromContext(c), usecase.SyncOptions{
		QueryOverride:     strings.TrimSpace(req.QueryOverride),
		SkipCursorAdvance: req.SkipCursorAdvance,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MessagesByCompany lists the caller's job mail for one company, newest first
// GET /api/emails/company?name=Acme
func (h *MailHandler) MessagesByCompany(c *gin.Context) {
	company := strings.TrimSpace(c.Query("name"))
	if company == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	messages, err := h.queryUsecase.MessagesByCompany(c.Request.Context(), authdelivery.OwnerFromContext(c), company)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, maildto.NewCompanyMessagesResponse(company, messages))
}

// RespondError maps sync and store errors onto HTTP statuses.
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, maildomain.ErrCredentialMissing):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "no mailbox credential stored", "code": "credential_missing"})
	case errors.Is(err, maildomain.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "sync_in_progress"})
	case errors.Is(err, maildomain.ErrInvalidOwner):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, maildomain.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure", "code": "persistence_failure"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
