package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AlertKind string

const (
	AlertKindPrice              AlertKind = "price"
	AlertKindVolume             AlertKind = "volume"
	AlertKindTechnicalIndicator AlertKind = "technical_indicator"
	AlertKindSentiment          AlertKind = "sentiment"
	AlertKindVolatility         AlertKind = "volatility"
)

// Alert is a standing user instruction to watch one market quantity.
// Once TriggeredAt is set the alert stays inert until its owner reactivates
// it; the monitor never does.
type Alert struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID string    `gorm:"type:varchar(64);not null;index"`

	// TickerID is nil for alerts that are not scoped to one symbol.
	TickerID *uuid.UUID   `gorm:"type:uuid;index"`
	Ticker   *StockTicker `gorm:"foreignKey:TickerID"`

	Kind AlertKind `gorm:"type:varchar(32);not null;index"`

	// Condition holds {"operator": ">", "threshold": 100000, "timeframe": "1h"}.
	Condition datatypes.JSON `gorm:"type:jsonb;not null"`

	IsActive    bool       `gorm:"not null;default:true;index"`
	TriggeredAt *time.Time `gorm:"type:timestamptz;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (a *Alert) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (Alert) TableName() string {
	return "alerts"
}

// Symbol returns the watched ticker symbol, or "" when the alert has none
// loaded.
func (a Alert) Symbol() string {
	if a.Ticker == nil {
		return ""
	}
	return a.Ticker.Symbol
}
