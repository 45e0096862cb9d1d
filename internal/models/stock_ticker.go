package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockTicker is the latest market snapshot for one symbol. Rows are
// refreshed by the market data feed; the monitor only reads them.
type StockTicker struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Symbol   string    `gorm:"type:varchar(32);not null;uniqueIndex"`
	Name     string    `gorm:"type:varchar(200)"`
	Exchange string    `gorm:"type:varchar(40)"`

	CurrentPrice  *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Volume        *decimal.Decimal `gorm:"type:numeric(30,4)"`
	ChangePercent *decimal.Decimal `gorm:"type:numeric(20,10)"`

	PriceUpdatedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt      time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (t *StockTicker) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (StockTicker) TableName() string {
	return "stock_tickers"
}
