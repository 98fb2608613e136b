package api

import (
	"net/http"

	"jobtracker-backend/internal/auth/delivery"
	authUsecase "jobtracker-backend/internal/auth/usecase"
	mailDelivery "jobtracker-backend/internal/mail/delivery"
	rollupDelivery "jobtracker-backend/internal/rollup/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, authHandler *delivery.AuthHandler, mailHandler *mailDelivery.MailHandler, rollupHandler *rollupDelivery.RollupHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		protected := api.Group("")
		protected.Use(delivery.AuthMiddleware(authUsecase))
		{
			protected.POST("/sync", mailHandler.Sync)
			protected.GET("/rollups", rollupHandler.ListRollups)
			protected.GET("/emails/company", mailHandler.MessagesByCompany)

			protected.GET("/credentials", authHandler.GetCredential)
			protected.POST("/credentials", authHandler.SaveCredential)
			protected.POST("/watch", authHandler.WatchMailbox)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUsecase))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}
	}
}
