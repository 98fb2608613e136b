package domain

import "time"

// FCMToken is a device registration for push notifications.
type FCMToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Owner      string    `json:"owner" gorm:"index;size:320;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"`
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (FCMToken) TableName() string {
	return "fcm_tokens"
}
