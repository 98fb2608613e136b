package delivery

import (
	"errors"
	"net/http"

	authdto "jobtracker-backend/internal/auth/dto"
	"jobtracker-backend/internal/auth/usecase"
	maildomain "jobtracker-backend/internal/mail/domain"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves credential and device endpoints.
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
}

func NewAuthHandler(authUsecase usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

// SaveCredential merges a credential bundle into the caller's stored one
// POST /api/credentials
func (h *AuthHandler) SaveCredential(c *gin.Context) {
	var req authdto.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred, err := h.authUsecase.SaveCredential(c.Request.Context(), OwnerFromContext(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredential), errors.Is(err, maildomain.ErrInvalidOwner):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save credential"})
		}
		return
	}
	c.JSON(http.StatusOK, authdto.NewCredentialStatus(cred))
}

// GetCredential describes the caller's stored credential without secrets
// GET /api/credentials
func (h *AuthHandler) GetCredential(c *gin.Context) {
	cred, err := h.authUsecase.GetCredential(c.Request.Context(), OwnerFromContext(c))
	if err != nil {
		if errors.Is(err, maildomain.ErrCredentialMissing) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no credential stored", "code": "credential_missing"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load credential"})
		return
	}
	c.JSON(http.StatusOK, authdto.NewCredentialStatus(cred))
}

// RegisterFCMToken
// POST /api/fcm/register
func (h *AuthHandler) RegisterFCMToken(c *gin.Context) {
	var req authdto.RegisterFCMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.authUsecase.RegisterDevice(c.Request.Context(), OwnerFromContext(c), &req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token registered"})
}

// UnregisterFCMToken
// DELETE /api/fcm/:token
func (h *AuthHandler) UnregisterFCMToken(c *gin.Context) {
	if err := h.authUsecase.UnregisterDevice(c.Request.Context(), OwnerFromContext(c), c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token unregistered"})
}

// WatchMailbox starts Gmail push notifications for the caller
// POST /api/watch
func (h *AuthHandler) WatchMailbox(c *gin.Context) {
	historyID, err := h.authUsecase.StartWatch(c.Request.Context(), OwnerFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, maildomain.ErrCredentialMissing):
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error(), "code": "credential_missing"})
		case errors.Is(err, usecase.ErrWatchUnsupported):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrWatchNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, authdto.WatchResponse{HistoryID: historyID})
}
