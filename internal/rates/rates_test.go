package rates

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"parking-service/internal/config"
	"parking-service/internal/fee"
	"parking-service/internal/model"
	"parking-service/internal/repository"
)

type countingSource struct {
	calls    int
	schedule Schedule
	err      error
}

func (s *countingSource) Schedule(context.Context) (Schedule, error) {
	s.calls++
	return s.schedule, s.err
}

func testSchedule(day int64) Schedule {
	return Schedule{
		Schedule: fee.Schedule{
			DayRate:    decimal.NewFromInt(day),
			NightRate:  decimal.NewFromInt(4),
			NightStart: fee.MustClock("22:00"),
			NightEnd:   fee.MustClock("06:00"),
			Location:   time.UTC,
		},
		FXRate: decimal.RequireFromString("36.5"),
	}
}

type mockCmdable struct {
	values  map[string]string
	ttls    map[string]time.Duration
	failGet bool
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if m.failGet {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	value, ok := m.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(value)
	return cmd
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	cmd.SetVal("OK")
	return cmd
}

func TestMemoryCacheHonoursTTL(t *testing.T) {
	src := &countingSource{schedule: testSchedule(3)}
	cache := NewMemoryCache(src, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, err := cache.Schedule(context.Background())
	require.NoError(t, err)
	_, err = cache.Schedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	_, err = cache.Schedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestMemoryCacheDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("db down")}
	cache := NewMemoryCache(src, time.Minute)

	_, err := cache.Schedule(context.Background())
	require.Error(t, err)
	_, err = cache.Schedule(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestRedisCacheStoresAndReuses(t *testing.T) {
	mock := newMockCmdable()
	src := &countingSource{schedule: testSchedule(3)}
	cache := &RedisCache{store: mock, source: src, ttl: time.Minute, log: zerolog.Nop()}

	first, err := cache.Schedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mock.ttls[scheduleKey])

	second, err := cache.Schedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.True(t, first.DayRate.Equal(second.DayRate))
	assert.True(t, second.FXRate.Equal(decimal.RequireFromString("36.5")))
	assert.Equal(t, fee.MustClock("22:00"), second.NightStart)
	assert.Equal(t, "UTC", second.Location.String())
}

func TestRedisCacheFallsBackWhenUnavailable(t *testing.T) {
	mock := newMockCmdable()
	mock.failGet = true
	src := &countingSource{schedule: testSchedule(5)}
	cache := &RedisCache{store: mock, source: src, ttl: time.Minute, log: zerolog.Nop()}

	schedule, err := cache.Schedule(context.Background())
	require.NoError(t, err)
	assert.True(t, schedule.DayRate.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 1, src.calls)
}

func TestRedisCacheDiscardsCorruptEntry(t *testing.T) {
	mock := newMockCmdable()
	mock.values[scheduleKey] = "{not json"
	src := &countingSource{schedule: testSchedule(3)}
	cache := &RedisCache{store: mock, source: src, ttl: time.Minute, log: zerolog.Nop()}

	_, err := cache.Schedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.NotEqual(t, "{not json", mock.values[scheduleKey])
}

func TestSettingsSourceFallsBackToConfig(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:rates_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.FacilitySettings{}))

	repo := repository.NewSettingsRepository(db)
	src, err := NewSettingsSource(repo, config.FacilityConfig{
		Timezone:   "UTC",
		DayRate:    decimal.NewFromInt(3),
		NightRate:  decimal.NewFromInt(4),
		NightStart: "22:00",
		NightEnd:   "06:00",
		FXRate:     decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	schedule, err := src.Schedule(context.Background())
	require.NoError(t, err)
	assert.True(t, schedule.DayRate.Equal(decimal.NewFromInt(3)))

	require.NoError(t, repo.Save(context.Background(), &model.FacilitySettings{
		DayRate:    decimal.NewFromInt(2),
		NightRate:  decimal.NewFromInt(5),
		NightStart: "00:00",
		NightEnd:   "06:00",
		FXRate:     decimal.RequireFromString("40"),
	}))

	schedule, err = src.Schedule(context.Background())
	require.NoError(t, err)
	assert.True(t, schedule.DayRate.Equal(decimal.NewFromInt(2)))
	assert.True(t, schedule.FXRate.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, fee.MustClock("00:00"), schedule.NightStart)
}

func TestFromSettingsRejectsBadClock(t *testing.T) {
	_, err := FromSettings(model.FacilitySettings{NightStart: "25:00", NightEnd: "06:00"})
	assert.Error(t, err)
}
