package contest

import (
	"testing"
	"time"

	"proconnect/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestPhaseAt(t *testing.T) {
	// 2025-06-07 is a Saturday.
	sat := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, model.PhaseRegistration, PhaseAt(sat))
	assert.Equal(t, model.PhaseEvaluation, PhaseAt(sat.AddDate(0, 0, 1)))
	for i := 2; i <= 6; i++ {
		assert.Equal(t, model.PhaseDisplay, PhaseAt(sat.AddDate(0, 0, i)))
	}
}

func TestWeekOf_SaturdayAndSundayShareWeek(t *testing.T) {
	for _, sat := range []time.Time{
		time.Date(2025, 6, 7, 23, 59, 0, 0, time.UTC),
		time.Date(2026, 1, 3, 9, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 26, 9, 0, 0, 0, time.UTC),
	} {
		assert.Equal(t, WeekOf(sat), WeekOf(sat.AddDate(0, 0, 1)), sat.String())
	}
}

func TestNextSundayMidnight(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"from sunday", time.Date(2025, 6, 8, 15, 0, 0, 0, time.UTC), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"from saturday", time.Date(2025, 6, 7, 15, 0, 0, 0, time.UTC), time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)},
		{"from monday", time.Date(2025, 6, 9, 1, 0, 0, 0, time.UTC), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"across month end", time.Date(2025, 5, 29, 1, 0, 0, 0, time.UTC), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextSundayMidnight(tc.in))
		})
	}
}

func TestNewWindow(t *testing.T) {
	mon := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)
	w := NewWindow(mon, model.PhaseRegistration, true)

	assert.True(t, w.IsRegistrationOpen)
	assert.False(t, w.IsEvaluationOpen)
	assert.True(t, w.Manual)
	assert.Equal(t, 24, w.WeekNumber)
	assert.Equal(t, 2025, w.Year)
	assert.Equal(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), w.NextPhaseStartsAt)
}
