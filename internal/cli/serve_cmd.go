package cli

import (
	"os"
	"os/signal"
	"syscall"

	api "jobtracker-backend/cmd/api"
	"jobtracker-backend/internal/di"
	"jobtracker-backend/internal/mail/scheduler"
	mailUsecase "jobtracker-backend/internal/mail/usecase"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the daily sweep and push-triggered sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, c, err := loadContainer()
		if err != nil {
			return err
		}
		if err := di.Migrate(c); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return c.Invoke(func(handler *api.Handler, sweep *scheduler.DailySweepScheduler, syncer mailUsecase.SyncUsecase, logger *zap.Logger) error {
			defer logger.Sync()

			if cfg.Scheduler.Enabled {
				sweep.Start(ctx)
				defer sweep.Stop()
			} else {
				logger.Info("daily sweep disabled")
			}

			notifService, err := di.NewNotificationService(ctx, cfg, syncer, logger)
			switch {
			case err != nil:
				logger.Error("failed to initialize notification service", zap.Error(err))
			case notifService == nil:
				logger.Warn("google.project_id or google.pubsub_topic not configured, notification service disabled")
			default:
				defer notifService.Close()
				go func() {
					if err := notifService.Start(ctx); err != nil {
						logger.Error("notification service stopped", zap.Error(err))
					}
				}()
			}

			return handler.Start(ctx, ":"+cfg.Server.Port)
		})
	},
}
