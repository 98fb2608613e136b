package usecase

import (
	"context"
	"fmt"
	"time"

	authrepo "jobtracker-backend/internal/auth/repository"
	maildomain "jobtracker-backend/internal/mail/domain"
	rollupdomain "jobtracker-backend/internal/rollup/domain"
	"jobtracker-backend/pkg/fcm"

	"go.uber.org/zap"
)

// PushSender delivers one notification to many device tokens and reports the
// tokens that were rejected.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error)
}

type pushNotifier struct {
	tokens  authrepo.FCMTokenRepository
	sender  PushSender
	timeout time.Duration
	logger  *zap.Logger
}

// NewPushNotifier sends FCM pushes for rollup changes and prunes dead tokens.
func NewPushNotifier(tokens authrepo.FCMTokenRepository, sender PushSender, logger *zap.Logger) RollupNotifier {
	return &pushNotifier{
		tokens:  tokens,
		sender:  sender,
		timeout: 10 * time.Second,
		logger:  logger.Named("push"),
	}
}

func (n *pushNotifier) NotifyRollup(ctx context.Context, rollup *rollupdomain.JobRollup, status maildomain.Status) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	log := n.logger.With(zap.String("owner", rollup.Owner), zap.String("rollup_id", rollup.ID))

	tokens, err := n.tokens.GetTokensByOwner(ctx, rollup.Owner)
	if err != nil {
		log.Warn("load device tokens", zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}

	values := make([]string, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t.Token)
	}

	failed, err := n.sender.SendToDevices(ctx, values, buildRollupNotification(rollup, status))
	if err != nil {
		log.Warn("send push", zap.Error(err))
		return
	}
	for _, token := range failed {
		if err := n.tokens.DeleteToken(ctx, token); err != nil {
			log.Warn("prune device token", zap.Error(err))
		}
	}
	log.Debug("push sent", zap.Int("devices", len(values)-len(failed)), zap.Int("pruned", len(failed)))
}

func buildRollupNotification(rollup *rollupdomain.JobRollup, status maildomain.Status) fcm.NotificationData {
	title := fmt.Sprintf("Update from %s", rollup.CompanyName)
	body := fmt.Sprintf("%d applied, %d rejected, %d next steps", rollup.Applied, rollup.Rejected, rollup.NextSteps)
	if status == maildomain.StatusNextSteps {
		title = fmt.Sprintf("Next steps with %s", rollup.CompanyName)
	}
	return fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":         "rollup_update",
			"rollup_id":    rollup.ID,
			"status":       string(status),
			"click_action": "/rollups",
		},
	}
}
