package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/internal/mail/usecase"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes for a watched mailbox.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// ShortTopicName strips a "projects/<p>/topics/" prefix.
func ShortTopicName(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// TopicPath is the fully qualified topic name Gmail watch requests expect.
func TopicPath(projectID, topic string) string {
	if topic == "" || strings.HasPrefix(topic, "projects/") {
		return topic
	}
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topic)
}

// Service turns Gmail push notifications into incremental syncs.
type Service struct {
	pubsubClient *pubsub.Client
	syncer       usecase.SyncUsecase
	topicName    string
	subName      string
	logger       *zap.Logger

	mu sync.Mutex
	// last history id handled per owner; older or repeated ids are dropped
	lastHistoryID map[string]uint64
}

// NewService connects to Pub/Sub. subName defaults to "<topic>-sub".
func NewService(ctx context.Context, projectID, topicName, subName, credentialsFile string, syncer usecase.SyncUsecase, logger *zap.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	s := newService(syncer, logger)
	s.pubsubClient = client
	s.topicName = topicName
	s.subName = subName
	if s.subName == "" {
		s.subName = topicName + "-sub"
	}
	return s, nil
}

func newService(syncer usecase.SyncUsecase, logger *zap.Logger) *Service {
	return &Service{
		syncer:        syncer,
		logger:        logger.Named("pubsub"),
		lastHistoryID: make(map[string]uint64),
	}
}

// Start receives notifications until ctx is done. It creates the
// subscription when the topic exists but the subscription does not.
func (s *Service) Start(ctx context.Context) error {
	log := s.logger.With(zap.String("topic", s.topicName), zap.String("subscription", s.subName))
	log.Info("starting notification service")

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}
	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic: %w", err)
		}
		if !topicExists {
			return fmt.Errorf("topic %s does not exist", s.topicName)
		}
		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		log.Info("created subscription")
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handle(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive: %w", err)
	}
	return nil
}

func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}

// handle syncs the notified owner. Every message is acknowledged: a failed
// sync is picked up by the next notification or the daily sweep.
func (s *Service) handle(ctx context.Context, data []byte) {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		s.logger.Warn("malformed notification", zap.Error(err))
		return
	}
	owner := maildomain.NormalizeOwner(n.EmailAddress)
	if owner == "" {
		s.logger.Warn("notification without email address")
		return
	}
	log := s.logger.With(zap.String("owner", owner), zap.Uint64("history_id", n.HistoryID))

	if !s.claim(owner, n.HistoryID) {
		log.Debug("skipping stale notification")
		return
	}

	res, err := s.syncer.SyncOwner(ctx, owner, usecase.SyncOptions{})
	switch {
	case err == nil:
		log.Info("push-triggered sync finished", zap.Int("fetched", res.FetchedCount), zap.Int("classified", res.ClassifiedCount))
	case errors.Is(err, maildomain.ErrSyncInProgress):
		log.Info("sync already running")
	case errors.Is(err, maildomain.ErrCredentialMissing):
		log.Warn("notification for owner without credential")
	default:
		log.Error("push-triggered sync failed", zap.Error(err))
	}
}

// claim records historyID for owner and reports whether it is newer than any
// seen before.
func (s *Service) claim(owner string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[owner]; ok && historyID <= last {
		return false
	}
	s.lastHistoryID[owner] = historyID
	return true
}
