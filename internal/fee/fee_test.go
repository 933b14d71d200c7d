package fee

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedule(day, night, start, end string) Schedule {
	return Schedule{
		DayRate:    decimal.RequireFromString(day),
		NightRate:  decimal.RequireFromString(night),
		NightStart: MustClock(start),
		NightEnd:   MustClock(end),
	}
}

func at(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeDayOnly(t *testing.T) {
	s := schedule("3", "4", "00:00", "06:00")
	assertAmount(t, "7.50", Compute(at("2026-03-02 08:15"), at("2026-03-02 10:45"), s))
}

func TestComputeCrossesNightStart(t *testing.T) {
	s := schedule("3", "4", "00:00", "06:00")
	assertAmount(t, "3.50", Compute(at("2026-03-01 23:30"), at("2026-03-02 00:30"), s))
}

func TestComputeWrappingNightWindow(t *testing.T) {
	s := schedule("2", "5", "22:00", "06:00")

	cases := []struct {
		name       string
		start, end string
		want       string
	}{
		{"evening into night", "2026-03-01 21:00", "2026-03-01 23:00", "7"},
		{"overnight", "2026-03-01 22:00", "2026-03-02 06:00", "40"},
		{"night into morning", "2026-03-02 05:30", "2026-03-02 07:00", "4.50"},
		{"just after midnight", "2026-03-02 00:10", "2026-03-02 00:40", "2.50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertAmount(t, tc.want, Compute(at(tc.start), at(tc.end), s))
		})
	}
}

func TestComputeSplitsAtOffHourBoundary(t *testing.T) {
	s := schedule("2", "6", "22:30", "06:00")
	assertAmount(t, "4", Compute(at("2026-03-01 22:00"), at("2026-03-01 23:00"), s))
}

func TestComputeUsesScheduleLocation(t *testing.T) {
	s := schedule("3", "4", "00:00", "06:00")
	s.Location = time.FixedZone("VET", -4*3600)

	start := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)
	assertAmount(t, "3.50", Compute(start, start.Add(time.Hour), s))
}

func TestComputeRoundsToCents(t *testing.T) {
	s := schedule("1", "1", "00:00", "00:00")
	start := at("2026-03-02 10:00")
	assertAmount(t, "0.33", Compute(start, start.Add(20*time.Minute), s))
}

func TestComputeMalformedInput(t *testing.T) {
	s := schedule("3", "4", "00:00", "06:00")
	start := at("2026-03-02 10:00")

	assertAmount(t, "0", Compute(start.Add(time.Hour), start, s))
	assertAmount(t, "0", Compute(time.Time{}, start, s))
	assertAmount(t, "0", Compute(start, start, s))

	bad := s
	bad.DayRate = decimal.NewFromInt(-1)
	assertAmount(t, "0", Compute(start, start.Add(time.Hour), bad))
}

func TestComputeEmptyNightWindowMeansDayRate(t *testing.T) {
	s := schedule("3", "9", "05:00", "05:00")
	assertAmount(t, "72", Compute(at("2026-03-02 00:00"), at("2026-03-03 00:00"), s))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("22:05")
	require.NoError(t, err)
	assert.Equal(t, Clock(22*60+5), c)
	assert.Equal(t, "22:05", c.String())

	for _, bad := range []string{"", "24:00", "10:60", "ten:00", "10"} {
		_, err := ParseClock(bad)
		assert.Errorf(t, err, "expected error for %q", bad)
	}
}

func TestMinutes(t *testing.T) {
	start := at("2026-03-02 10:00")
	assert.Equal(t, int64(95), Minutes(start, start.Add(95*time.Minute+30*time.Second)))
	assert.Equal(t, int64(0), Minutes(start, start.Add(-time.Minute)))
}
