package di

import (
	"context"

	api "jobtracker-backend/cmd/api"
	authDelivery "jobtracker-backend/internal/auth/delivery"
	authRepo "jobtracker-backend/internal/auth/repository"
	authUsecase "jobtracker-backend/internal/auth/usecase"
	mailDelivery "jobtracker-backend/internal/mail/delivery"
	maildomain "jobtracker-backend/internal/mail/domain"
	mailRepo "jobtracker-backend/internal/mail/repository"
	"jobtracker-backend/internal/mail/scheduler"
	mailUsecase "jobtracker-backend/internal/mail/usecase"
	"jobtracker-backend/internal/notification"
	rollupDelivery "jobtracker-backend/internal/rollup/delivery"
	rollupRepo "jobtracker-backend/internal/rollup/repository"
	rollupUsecase "jobtracker-backend/internal/rollup/usecase"
	"jobtracker-backend/pkg/ai"
	"jobtracker-backend/pkg/config"
	"jobtracker-backend/pkg/database"
	"jobtracker-backend/pkg/fcm"
	"jobtracker-backend/pkg/gmail"
	"jobtracker-backend/pkg/imap"
	"jobtracker-backend/pkg/logger"
	"jobtracker-backend/pkg/utils/crypto"

	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BuildContainer registers every component. Nothing is constructed until a
// command invokes it, so a command only needs the config its graph touches.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		func(cfg *config.Config) (*zap.Logger, error) { return logger.New(cfg.Logging) },
		func(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) { return database.Open(cfg.Database, log) },
		func(cfg *config.Config) (*crypto.Cipher, error) { return crypto.NewCipher(cfg.Security.EncryptionKey) },

		// Repositories
		authRepo.NewCredentialRepository,
		authRepo.NewFCMTokenRepository,
		mailRepo.NewMessageRepository,
		mailRepo.NewCursorRepository,
		rollupRepo.NewRollupRepository,

		// Mailbox providers
		provideGmailConnector,
		func(log *zap.Logger) authUsecase.IMAPConnector { return imap.NewDialer(log) },
		authUsecase.NewCredentialResolver,
		func(r *authUsecase.CredentialResolver) maildomain.MailboxResolver { return r },

		// Classifier
		func(cfg *config.Config) (ai.Transport, error) {
			return ai.NewTransport(context.Background(), ai.Config{
				Provider: ai.ProviderType(cfg.Classifier.Provider),
				APIKey:   cfg.Classifier.APIKey,
				BaseURL:  cfg.Classifier.BaseURL,
			})
		},
		func(t ai.Transport, cfg *config.Config, log *zap.Logger) mailUsecase.Classifier {
			return ai.NewClassifier(t, ai.ClassifierConfig{
				Model:        cfg.Classifier.Model,
				Ladders:      cfg.Classifier.Ladders(),
				MaxBodyChars: cfg.Classifier.MaxBodyChars,
			}, log)
		},

		// Rollups
		provideRollupNotifier,
		func(repo rollupRepo.RollupRepository, n rollupUsecase.RollupNotifier, cfg *config.Config, log *zap.Logger) rollupUsecase.RollupUsecase {
			return rollupUsecase.NewRollupUsecase(repo, n, cfg.Location(), log)
		},
		func(u rollupUsecase.RollupUsecase) mailUsecase.RollupApplier { return u },

		// Sync
		mailUsecase.NewOwnerLocks,
		func(cfg *config.Config) mailUsecase.SyncConfig {
			return mailUsecase.SyncConfig{PageSize: cfg.Sync.PageSize, LookbackDays: cfg.Sync.LookbackDays}
		},
		mailUsecase.NewSyncUsecase,
		mailUsecase.NewQueryUsecase,
		func(creds authRepo.CredentialRepository, syncer mailUsecase.SyncUsecase, cfg *config.Config, log *zap.Logger) (*scheduler.DailySweepScheduler, error) {
			return scheduler.NewDailySweepScheduler(creds, syncer, scheduler.SweepConfig{
				RunAt:       cfg.Scheduler.RunAt,
				Location:    cfg.Location(),
				Concurrency: cfg.Scheduler.Concurrency,
			}, log)
		},

		// Auth
		func(creds authRepo.CredentialRepository, tokens authRepo.FCMTokenRepository, mailboxes maildomain.MailboxResolver, cfg *config.Config, log *zap.Logger) authUsecase.AuthUsecase {
			return authUsecase.NewAuthUsecase(creds, tokens, mailboxes, cfg.Auth.JWTSecret, notification.TopicPath(cfg.Google.ProjectID, cfg.Google.PubSubTopic), log)
		},

		// HTTP
		authDelivery.NewAuthHandler,
		mailDelivery.NewMailHandler,
		rollupDelivery.NewRollupHandler,
		api.NewHandler,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return nil, err
		}
	}
	return container, nil
}

// provideGmailConnector leaves Gmail disabled when no OAuth client is set.
func provideGmailConnector(cfg *config.Config, log *zap.Logger) authUsecase.GmailConnector {
	if cfg.Google.ClientID == "" {
		log.Warn("google.client_id not set, gmail mailboxes disabled")
		return nil
	}
	return gmail.NewService(cfg.Google.ClientID, cfg.Google.ClientSecret, log, gmail.WithQPS(cfg.Sync.GmailQPS))
}

// provideRollupNotifier returns nil when Firebase is not configured or fails
// to start; rollups work without pushes.
func provideRollupNotifier(tokens authRepo.FCMTokenRepository, cfg *config.Config, log *zap.Logger) rollupUsecase.RollupNotifier {
	if cfg.Firebase.CredentialsFile == "" {
		log.Info("firebase.credentials_file not set, push notifications disabled")
		return nil
	}
	client, err := fcm.NewClient(context.Background(), cfg.Firebase.CredentialsFile, log)
	if err != nil {
		log.Warn("failed to initialize FCM client, push notifications disabled", zap.Error(err))
		return nil
	}
	return rollupUsecase.NewPushNotifier(tokens, client, log)
}

// NewNotificationService starts a Pub/Sub client when google.project_id and
// google.pubsub_topic are both set; otherwise it returns nil.
func NewNotificationService(ctx context.Context, cfg *config.Config, syncer mailUsecase.SyncUsecase, log *zap.Logger) (*notification.Service, error) {
	if cfg.Google.ProjectID == "" || cfg.Google.PubSubTopic == "" {
		return nil, nil
	}
	return notification.NewService(ctx, cfg.Google.ProjectID, notification.ShortTopicName(cfg.Google.PubSubTopic),
		cfg.Google.PubSubSubscription, cfg.Google.CredentialsFile, syncer, log)
}

// Migrate runs the schema migration against the configured database.
func Migrate(c *dig.Container) error {
	return c.Invoke(func(db *gorm.DB) error { return database.Migrate(db) })
}
