package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperAppliesValues(t *testing.T) {
	v := viper.New()
	v.Set("DB_DSN", "postgres://localhost/parking")
	v.Set("JWT_ACCESS_SECRET", "secret")
	v.Set("FACILITY_TIMEZONE", "UTC")
	v.Set("FACILITY_DAY_RATE", "2.50")
	v.Set("FACILITY_NIGHT_RATE", "4")
	v.Set("FACILITY_FX_RATE", "36.5")
	v.Set("NOTIFY_SEND_TIMEOUT", "3s")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "2.5", cfg.Facility.DayRate.String())
	assert.Equal(t, "36.5", cfg.Facility.FXRate.String())
	assert.Equal(t, 3*time.Second, cfg.Notify.SendTimeout)
}

func TestFromViperRequiresSecrets(t *testing.T) {
	v := viper.New()
	v.Set("FACILITY_DAY_RATE", "1")
	v.Set("FACILITY_NIGHT_RATE", "1")
	v.Set("FACILITY_FX_RATE", "1")
	v.Set("FACILITY_TIMEZONE", "UTC")

	_, err := fromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestFromViperRejectsBadRate(t *testing.T) {
	v := viper.New()
	v.Set("DB_DSN", "dsn")
	v.Set("JWT_ACCESS_SECRET", "secret")
	v.Set("FACILITY_DAY_RATE", "cheap")

	_, err := fromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FACILITY_DAY_RATE")
}
