package models

import "time"

// NotificationChannel is one user's configuration for one delivery channel.
// Destination is a webhook URL or a chat id and is treated as a secret.
type NotificationChannel struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"type:varchar(64);not null;uniqueIndex:idx_notification_channels_user_channel"`
	Channel     string `gorm:"type:varchar(20);not null;uniqueIndex:idx_notification_channels_user_channel"`
	Enabled     bool   `gorm:"not null;default:false"`
	Destination string `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (NotificationChannel) TableName() string {
	return "notification_channels"
}
