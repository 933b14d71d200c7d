// Package fee computes parking charges for a session under a day/night rate
// schedule.
package fee

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Clock is a wall-clock time of day expressed in minutes after midnight.
type Clock int

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" (24h).
func ParseClock(value string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock hour %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock minute %q", value)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for constants and tests.
func MustClock(value string) Clock {
	c, err := ParseClock(value)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) valid() bool {
	return c >= 0 && c < minutesPerDay
}

// Schedule holds hourly rates and the night window. The night window is
// [NightStart, NightEnd) and wraps midnight when NightStart > NightEnd.
// Location defaults to UTC.
type Schedule struct {
	DayRate    decimal.Decimal
	NightRate  decimal.Decimal
	NightStart Clock
	NightEnd   Clock
	Location   *time.Location
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Schedule) valid() bool {
	return !s.DayRate.IsNegative() && !s.NightRate.IsNegative() && s.NightStart.valid() && s.NightEnd.valid()
}

// IsNight reports whether the instant falls inside the night window.
func (s Schedule) IsNight(t time.Time) bool {
	local := t.In(s.location())
	clock := local.Hour()*3600 + local.Minute()*60 + local.Second()
	start := int(s.NightStart) * 60
	end := int(s.NightEnd) * 60
	if start > end {
		return clock >= start || clock < end
	}
	return start <= clock && clock < end
}

// RateAt returns the hourly rate applying at t.
func (s Schedule) RateAt(t time.Time) decimal.Decimal {
	if s.IsNight(t) {
		return s.NightRate
	}
	return s.DayRate
}

var hour = decimal.NewFromInt(int64(time.Hour))

// Compute returns the charge for [start, end). Windows never exceed one hour
// and never straddle a full hour or a night boundary; each window is billed at
// the rate of its start instant. Malformed input yields zero.
func Compute(start, end time.Time, s Schedule) decimal.Decimal {
	if start.IsZero() || end.IsZero() || start.After(end) || !s.valid() {
		return decimal.Zero
	}

	total := decimal.Zero
	cursor := start
	for cursor.Before(end) {
		next := s.nextBoundary(cursor)
		if next.After(end) {
			next = end
		}
		hours := decimal.NewFromInt(int64(next.Sub(cursor))).Div(hour)
		total = total.Add(hours.Mul(s.RateAt(cursor)))
		cursor = next
	}

	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}

// ComputeOpen bills a session that has not ended yet, up to now.
func ComputeOpen(start time.Time, now time.Time, s Schedule) decimal.Decimal {
	return Compute(start, now, s)
}

// Minutes returns whole minutes between start and end, zero when reversed.
func Minutes(start, end time.Time) int64 {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Minute)
}

func (s Schedule) nextBoundary(t time.Time) time.Time {
	loc := s.location()
	local := t.In(loc)
	limit := t.Add(time.Hour)

	best := time.Date(local.Year(), local.Month(), local.Day(), local.Hour()+1, 0, 0, 0, loc)
	if !best.After(t) || best.After(limit) {
		best = limit
	}

	for day := 0; day <= 1; day++ {
		for _, c := range []Clock{s.NightStart, s.NightEnd} {
			candidate := time.Date(local.Year(), local.Month(), local.Day()+day, int(c)/60, int(c)%60, 0, 0, loc)
			if candidate.After(t) && candidate.Before(best) {
				best = candidate
			}
		}
	}
	return best
}
