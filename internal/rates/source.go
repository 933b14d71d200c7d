package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"parking-service/internal/config"
	"parking-service/internal/fee"
	"parking-service/internal/model"
	"parking-service/internal/repository"
)

// Schedule is the rate schedule plus the exchange rate used for foreign
// currency amounts.
type Schedule struct {
	fee.Schedule
	FXRate decimal.Decimal
}

// Source provides the current rate schedule.
type Source interface {
	Schedule(ctx context.Context) (Schedule, error)
}

// SettingsSource reads the facility_settings row and falls back to the
// configured defaults while none exists.
type SettingsSource struct {
	repo     *repository.SettingsRepository
	fallback Schedule
}

func NewSettingsSource(repo *repository.SettingsRepository, cfg config.FacilityConfig) (*SettingsSource, error) {
	fallback, err := FromSettings(model.FacilitySettings{
		DayRate:    cfg.DayRate,
		NightRate:  cfg.NightRate,
		NightStart: cfg.NightStart,
		NightEnd:   cfg.NightEnd,
		FXRate:     cfg.FXRate,
		Timezone:   cfg.Timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("facility defaults: %w", err)
	}
	return &SettingsSource{repo: repo, fallback: fallback}, nil
}

func (s *SettingsSource) Schedule(ctx context.Context) (Schedule, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fallback, nil
		}
		return Schedule{}, err
	}
	if settings.Timezone == "" {
		settings.Timezone = s.fallback.location().String()
	}
	return FromSettings(*settings)
}

// FromSettings validates a settings row and converts it to a Schedule.
func FromSettings(settings model.FacilitySettings) (Schedule, error) {
	nightStart, err := fee.ParseClock(settings.NightStart)
	if err != nil {
		return Schedule{}, fmt.Errorf("night start: %w", err)
	}
	nightEnd, err := fee.ParseClock(settings.NightEnd)
	if err != nil {
		return Schedule{}, fmt.Errorf("night end: %w", err)
	}
	if settings.DayRate.IsNegative() || settings.NightRate.IsNegative() {
		return Schedule{}, errors.New("rates must not be negative")
	}
	loc := time.UTC
	if settings.Timezone != "" {
		if loc, err = time.LoadLocation(settings.Timezone); err != nil {
			return Schedule{}, fmt.Errorf("timezone: %w", err)
		}
	}
	fx := settings.FXRate
	if !fx.IsPositive() {
		fx = decimal.NewFromInt(1)
	}
	return Schedule{
		Schedule: fee.Schedule{
			DayRate:    settings.DayRate,
			NightRate:  settings.NightRate,
			NightStart: nightStart,
			NightEnd:   nightEnd,
			Location:   loc,
		},
		FXRate: fx,
	}, nil
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Schedule, error)

func (f SourceFunc) Schedule(ctx context.Context) (Schedule, error) {
	return f(ctx)
}

// Static always returns s.
func Static(s Schedule) Source {
	return SourceFunc(func(context.Context) (Schedule, error) {
		return s, nil
	})
}
