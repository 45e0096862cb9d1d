package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketalert/internal/models"
	"marketalert/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- alerts -----------------------------------------------------------------

func (s *Store) ListActiveAlertsWithTickers(ctx context.Context) ([]models.Alert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Alert
	err := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Preload("Ticker").
		Where("is_active = ?", true).
		Where("triggered_at IS NULL").
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkAlertTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ?", id).
		Where("is_active = ?", true).
		Where("triggered_at IS NULL").
		Updates(map[string]any{
			"is_active":    false,
			"triggered_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) triggeredQuery(ctx context.Context, params repository.ListTriggeredAlertsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Alert{}).Where("triggered_at IS NOT NULL")
	if v := strings.TrimSpace(params.UserID); v != "" {
		query = query.Where("user_id = ?", v)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("triggered_at >= ?", *params.Since)
	}
	return query
}

func (s *Store) ListTriggeredAlerts(ctx context.Context, params repository.ListTriggeredAlertsParams) ([]models.Alert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Alert
	err := s.triggeredQuery(ctx, params).
		Preload("Ticker").
		Order("triggered_at DESC").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTriggeredAlerts(ctx context.Context, params repository.ListTriggeredAlertsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.triggeredQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- notification channels --------------------------------------------------

func (s *Store) ListNotificationChannels(ctx context.Context, userID string) ([]models.NotificationChannel, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var items []models.NotificationChannel
	err := s.db.WithContext(ctx).
		Model(&models.NotificationChannel{}).
		Where("user_id = ?", userID).
		Order("channel ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertNotificationChannel(ctx context.Context, item *models.NotificationChannel) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.UserID = strings.TrimSpace(item.UserID)
	item.Channel = strings.ToLower(strings.TrimSpace(item.Channel))
	if item.UserID == "" || item.Channel == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "channel"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled",
			"destination",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- system settings ---------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	var items []models.SystemSetting
	err := query.Order("key ASC").
		Limit(normalizeLimit(params.Limit, 500)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func normalizeLimit(limit int, max int) int {
	if limit <= 0 {
		return max
	}
	if limit > max {
		return max
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.Repository = (*Store)(nil)
