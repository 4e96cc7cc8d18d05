package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func allSchedulable(string) bool  { return true }
func noneSchedulable(string) bool { return false }

func TestPlanStaggersBySchedulableIndex(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	platforms := []string{"linkedin", "twitter", "linkedin"}
	schedulable := func(p string) bool { return p == "linkedin" }

	entries, skipped, err := Plan(platforms, start, Hourly(), schedulable)

	assert.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, start, entries[0].ScheduledAt)
	assert.Equal(t, 2, entries[1].Index)
	assert.Equal(t, start.Add(time.Hour), entries[1].ScheduledAt)
}

func TestPlanIntervalArithmetic(t *testing.T) {
	start := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	platforms := []string{"a", "b", "c", "d"}

	cases := []struct {
		name     string
		cadence  Cadence
		interval time.Duration
	}{
		{"hourly", Hourly(), time.Hour},
		{"daily", Daily(), 24 * time.Hour},
		{"custom 3h", CustomHours(3), 3 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, skipped, err := Plan(platforms, start, tc.cadence, allSchedulable)
			assert.NoError(t, err)
			assert.Equal(t, 0, skipped)
			assert.Len(t, entries, len(platforms))
			for i, e := range entries {
				assert.Equal(t, start.Add(time.Duration(i)*tc.interval), e.ScheduledAt)
				if i > 0 {
					assert.True(t, e.ScheduledAt.After(entries[i-1].ScheduledAt))
				}
			}
		})
	}
}

func TestPlanInvalidCustomHours(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	for _, hours := range []int{0, -1, -24} {
		entries, skipped, err := Plan([]string{"linkedin"}, start, CustomHours(hours), allSchedulable)
		assert.Error(t, err)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Nil(t, entries)
		assert.Equal(t, 0, skipped)
	}
}

func TestPlanEmptyAndAllManualInputs(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	entries, skipped, err := Plan(nil, start, Hourly(), allSchedulable)
	assert.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, skipped)

	platforms := []string{"instagram", "instagram"}
	entries, skipped, err = Plan(platforms, start, Hourly(), noneSchedulable)
	assert.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, len(platforms), skipped)
}

func TestDayStart(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	day1, err := DayStart(start, 1)
	assert.NoError(t, err)
	assert.Equal(t, start, day1)

	day3, err := DayStart(start, 3)
	assert.NoError(t, err)
	assert.Equal(t, start.Add(48*time.Hour), day3)

	_, err = DayStart(start, 0)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
