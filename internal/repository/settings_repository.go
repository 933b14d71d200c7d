package repository

import (
	"context"

	"gorm.io/gorm"

	"parking-service/internal/model"
)

// FacilitySettingsID is the only settings row the service reads.
const FacilitySettingsID = 1

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context) (*model.FacilitySettings, error) {
	var settings model.FacilitySettings
	if err := r.db.WithContext(ctx).First(&settings, "id = ?", FacilitySettingsID).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings *model.FacilitySettings) error {
	settings.ID = FacilitySettingsID
	return r.db.WithContext(ctx).Save(settings).Error
}
