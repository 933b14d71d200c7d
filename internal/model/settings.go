package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FacilitySettings is the externally managed rate configuration. A single
// row with ID 1 is read.
type FacilitySettings struct {
	ID         int             `gorm:"primaryKey" json:"id"`
	DayRate    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"day_rate"`
	NightRate  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"night_rate"`
	NightStart string          `gorm:"type:varchar(5);not null" json:"night_start"`
	NightEnd   string          `gorm:"type:varchar(5);not null" json:"night_end"`
	FXRate     decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"fx_rate"`
	Timezone   string          `gorm:"type:varchar(64)" json:"timezone"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FacilitySettings) TableName() string {
	return "facility_settings"
}
