package repository

import (
	"context"
	"errors"

	maildomain "jobtracker-backend/internal/mail/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository stores MailMessage documents keyed by (owner, id).
type MessageRepository interface {
	Get(ctx context.Context, owner, id string) (*maildomain.MailMessage, error)
	Upsert(ctx context.Context, msg *maildomain.MailMessage) error
	ListClassified(ctx context.Context, owner string) ([]*maildomain.MailMessage, error)
	CountByOwner(ctx context.Context, owner string) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Get returns maildomain.ErrNotFound when no document exists.
func (r *messageRepository) Get(ctx context.Context, owner, id string) (*maildomain.MailMessage, error) {
	var msg maildomain.MailMessage
	err := r.db.WithContext(ctx).Where("owner = ? AND id = ?", owner, id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, maildomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Upsert writes the whole document; a second write of the same (owner, id)
// replaces the first.
func (r *messageRepository) Upsert(ctx context.Context, msg *maildomain.MailMessage) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "id"}},
		UpdateAll: true,
	}).Create(msg).Error
}

// ListClassified returns the owner's messages that carry a classification.
func (r *messageRepository) ListClassified(ctx context.Context, owner string) ([]*maildomain.MailMessage, error) {
	var msgs []*maildomain.MailMessage
	err := r.db.WithContext(ctx).
		Where("owner = ? AND classification IS NOT NULL AND classification <> '' AND classification <> 'null'", owner).
		Order("internal_date_ms DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) CountByOwner(ctx context.Context, owner string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&maildomain.MailMessage{}).Where("owner = ?", owner).Count(&n).Error
	return n, err
}
