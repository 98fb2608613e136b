package repository

import (
	"context"
	"time"

	authdomain "jobtracker-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FCMTokenRepository stores push device tokens per owner.
type FCMTokenRepository interface {
	SaveToken(ctx context.Context, owner, token, deviceInfo string) error
	GetTokensByOwner(ctx context.Context, owner string) ([]authdomain.FCMToken, error)
	DeleteToken(ctx context.Context, token string) error
	DeleteOwnerToken(ctx context.Context, owner, token string) error
}

type fcmTokenRepository struct {
	db *gorm.DB
}

func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{db: db}
}

// SaveToken registers token for owner, moving it if another owner held it.
func (r *fcmTokenRepository) SaveToken(ctx context.Context, owner, token, deviceInfo string) error {
	now := time.Now().UTC()
	row := &authdomain.FCMToken{
		ID:         uuid.New().String(),
		Owner:      owner,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "device_info", "updated_at"}),
	}).Create(row).Error
}

func (r *fcmTokenRepository) GetTokensByOwner(ctx context.Context, owner string) ([]authdomain.FCMToken, error) {
	var tokens []authdomain.FCMToken
	if err := r.db.WithContext(ctx).Where("owner = ?", owner).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *fcmTokenRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&authdomain.FCMToken{}).Error
}

func (r *fcmTokenRepository) DeleteOwnerToken(ctx context.Context, owner, token string) error {
	return r.db.WithContext(ctx).Where("owner = ? AND token = ?", owner, token).Delete(&authdomain.FCMToken{}).Error
}
