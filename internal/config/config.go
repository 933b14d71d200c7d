package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type RedisConfig struct {
	URL string
}

type RatesConfig struct {
	CacheTTL     time.Duration
	FetchTimeout time.Duration
}

// FacilityConfig holds the fallback rate schedule used until a
// facility_settings row exists.
type FacilityConfig struct {
	Timezone     string
	DayRate      decimal.Decimal
	NightRate    decimal.Decimal
	NightStart   string
	NightEnd     string
	FXRate       decimal.Decimal
	TicketPrefix string
}

type NotifyConfig struct {
	PollInterval time.Duration
	SendTimeout  time.Duration
	MaxAttempts  int
	BatchSize    int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Rates       RatesConfig
	Facility    FacilityConfig
	Notify      NotifyConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 7090)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("RATES_CACHE_TTL", time.Minute)
	v.SetDefault("RATES_FETCH_TIMEOUT", 2*time.Second)
	v.SetDefault("FACILITY_TIMEZONE", "UTC")
	v.SetDefault("FACILITY_DAY_RATE", "3")
	v.SetDefault("FACILITY_NIGHT_RATE", "4")
	v.SetDefault("FACILITY_NIGHT_START", "22:00")
	v.SetDefault("FACILITY_NIGHT_END", "06:00")
	v.SetDefault("FACILITY_FX_RATE", "1")
	v.SetDefault("TICKET_PREFIX", "PARK")
	v.SetDefault("NOTIFY_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("NOTIFY_SEND_TIMEOUT", 5*time.Second)
	v.SetDefault("NOTIFY_MAX_ATTEMPTS", 5)
	v.SetDefault("NOTIFY_BATCH_SIZE", 50)

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	dayRate, err := decimalValue(v, "FACILITY_DAY_RATE")
	if err != nil {
		return nil, err
	}
	nightRate, err := decimalValue(v, "FACILITY_NIGHT_RATE")
	if err != nil {
		return nil, err
	}
	fxRate, err := decimalValue(v, "FACILITY_FX_RATE")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Rates: RatesConfig{
			CacheTTL:     v.GetDuration("RATES_CACHE_TTL"),
			FetchTimeout: v.GetDuration("RATES_FETCH_TIMEOUT"),
		},
		Facility: FacilityConfig{
			Timezone:     v.GetString("FACILITY_TIMEZONE"),
			DayRate:      dayRate,
			NightRate:    nightRate,
			NightStart:   v.GetString("FACILITY_NIGHT_START"),
			NightEnd:     v.GetString("FACILITY_NIGHT_END"),
			FXRate:       fxRate,
			TicketPrefix: v.GetString("TICKET_PREFIX"),
		},
		Notify: NotifyConfig{
			PollInterval: v.GetDuration("NOTIFY_POLL_INTERVAL"),
			SendTimeout:  v.GetDuration("NOTIFY_SEND_TIMEOUT"),
			MaxAttempts:  v.GetInt("NOTIFY_MAX_ATTEMPTS"),
			BatchSize:    v.GetInt("NOTIFY_BATCH_SIZE"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decimalValue(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return d, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Facility.DayRate.IsNegative() || cfg.Facility.NightRate.IsNegative() {
		return fmt.Errorf("facility rates must not be negative")
	}
	if _, err := time.LoadLocation(cfg.Facility.Timezone); err != nil {
		return fmt.Errorf("FACILITY_TIMEZONE: %w", err)
	}
	return nil
}
