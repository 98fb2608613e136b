package delivery

import (
	"net/http"
	"strings"

	"jobtracker-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

const ownerKey = "owner"

func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		owner, err := authUsecase.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ownerKey, owner)
		c.Next()
	}
}

// OwnerFromContext returns the owner set by AuthMiddleware.
func OwnerFromContext(c *gin.Context) string {
	return c.GetString(ownerKey)
}
