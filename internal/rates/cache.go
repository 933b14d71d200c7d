package rates

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"parking-service/internal/model"
)

const (
	keyNamespace = "parking"
	scheduleKey  = keyNamespace + ":rates:schedule"
)

// MemoryCache keeps the last schedule in process for ttl.
type MemoryCache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	cached  Schedule
	expires time.Time
}

func NewMemoryCache(source Source, ttl time.Duration) *MemoryCache {
	return &MemoryCache{source: source, ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Schedule(ctx context.Context) (Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.expires.IsZero() && now.Before(c.expires) {
		return c.cached, nil
	}
	schedule, err := c.source.Schedule(ctx)
	if err != nil {
		return Schedule{}, err
	}
	c.cached = schedule
	c.expires = now.Add(c.ttl)
	return schedule, nil
}

type cmdable interface {
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
}

// RedisCache shares the schedule between instances. Redis failures fall
// through to the wrapped source.
type RedisCache struct {
	store  cmdable
	source Source
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisCache(client *redis.Client, source Source, ttl time.Duration, log zerolog.Logger) *RedisCache {
	return &RedisCache{store: client, source: source, ttl: ttl, log: log}
}

// NewRedisClient parses a redis:// url and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisCache) Schedule(ctx context.Context) (Schedule, error) {
	raw, err := c.store.Get(ctx, scheduleKey).Result()
	switch {
	case err == nil:
		schedule, decodeErr := decodeSchedule(raw)
		if decodeErr == nil {
			return schedule, nil
		}
		c.log.Warn().Err(decodeErr).Msg("discarding cached rate schedule")
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn().Err(err).Msg("rate cache unavailable")
	}

	schedule, err := c.source.Schedule(ctx)
	if err != nil {
		return Schedule{}, err
	}
	encoded, err := encodeSchedule(schedule)
	if err != nil {
		return schedule, nil
	}
	if err := c.store.Set(ctx, scheduleKey, encoded, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("rate cache write failed")
	}
	return schedule, nil
}

type cachedSchedule struct {
	DayRate    decimal.Decimal `json:"day_rate"`
	NightRate  decimal.Decimal `json:"night_rate"`
	NightStart string          `json:"night_start"`
	NightEnd   string          `json:"night_end"`
	FXRate     decimal.Decimal `json:"fx_rate"`
	Timezone   string          `json:"timezone"`
}

func encodeSchedule(s Schedule) (string, error) {
	raw, err := json.Marshal(cachedSchedule{
		DayRate:    s.DayRate,
		NightRate:  s.NightRate,
		NightStart: s.NightStart.String(),
		NightEnd:   s.NightEnd.String(),
		FXRate:     s.FXRate,
		Timezone:   s.location().String(),
	})
	return string(raw), err
}

func decodeSchedule(raw string) (Schedule, error) {
	var cached cachedSchedule
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return Schedule{}, err
	}
	return FromSettings(model.FacilitySettings{
		DayRate:    cached.DayRate,
		NightRate:  cached.NightRate,
		NightStart: cached.NightStart,
		NightEnd:   cached.NightEnd,
		FXRate:     cached.FXRate,
		Timezone:   cached.Timezone,
	})
}
