package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"marketalert/internal/models"
)

type AlertRepository interface {
	// ListActiveAlertsWithTickers loads every active, untriggered alert with
	// its ticker in one bulk read, ordered by creation time.
	ListActiveAlertsWithTickers(ctx context.Context) ([]models.Alert, error)
	// MarkAlertTriggered moves an active alert to triggered. It reports false
	// when the alert was no longer active.
	MarkAlertTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListTriggeredAlerts(ctx context.Context, params ListTriggeredAlertsParams) ([]models.Alert, error)
	CountTriggeredAlerts(ctx context.Context, params ListTriggeredAlertsParams) (int64, error)
}

type NotificationChannelRepository interface {
	ListNotificationChannels(ctx context.Context, userID string) ([]models.NotificationChannel, error)
	UpsertNotificationChannel(ctx context.Context, item *models.NotificationChannel) error
}

type SystemSettingRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

type Repository interface {
	AlertRepository
	NotificationChannelRepository
	SystemSettingRepository
}

type ListTriggeredAlertsParams struct {
	UserID string
	Since  *time.Time
	Limit  int
	Offset int
}

type ListSystemSettingsParams struct {
	Limit  int
	Offset int
	Prefix *string
}
