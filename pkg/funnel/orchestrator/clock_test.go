package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Reference(t *testing.T) {
	c := mustClock(t)
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	assert.Equal(t, "2025-06-10T12:00:00-03:00", c.FormatISO(c.Reference(refNow.UnixMilli())))
	assert.True(t, c.Reference(0).Equal(fixed))
	assert.True(t, c.Reference(-5).Equal(fixed))
	assert.Equal(t, ZoneName, c.Reference(0).Location().String())
}

func TestClock_Parse(t *testing.T) {
	c := mustClock(t)

	tests := []struct {
		in   string
		want string
	}{
		{"2025-06-20T14:00:00-03:00", "2025-06-20T14:00:00-03:00"},
		{"2025-06-20T17:00:00Z", "2025-06-20T14:00:00-03:00"},
		{"2025-06-20T17:00:00.250Z", "2025-06-20T14:00:00-03:00"},
		{"2025-06-20T14:00:00", "2025-06-20T14:00:00-03:00"},
		{"2025-06-20T14:00", "2025-06-20T14:00:00-03:00"},
		{"2025-06-20 14:00", "2025-06-20T14:00:00-03:00"},
		{"2025-06-20", "2025-06-20T00:00:00-03:00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := c.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.FormatISO(got))
		})
	}

	for _, bad := range []string{"", "  ", "amanhã às 10", "20/06/2025"} {
		_, err := c.Parse(bad)
		assert.ErrorIs(t, err, ErrUnparseableDate, bad)
	}
}

func TestClock_NormalizeAppointment(t *testing.T) {
	c := mustClock(t)
	now := refNow.In(c.Location())

	at := func(s string) time.Time {
		v, err := c.Parse(s)
		require.NoError(t, err)
		return v
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"future untouched", "2025-06-11T09:00:00-03:00", "2025-06-11T09:00:00-03:00"},
		{"next year untouched", "2026-01-05T09:00:00-03:00", "2026-01-05T09:00:00-03:00"},
		{"past year rewritten", "2023-08-01T10:30:00-03:00", "2025-08-01T10:30:00-03:00"},
		{"same day earlier hour moves a week", "2025-06-10T11:59:00-03:00", "2025-06-17T11:59:00-03:00"},
		{"exactly now moves a week", "2025-06-10T12:00:00-03:00", "2025-06-17T12:00:00-03:00"},
		{"weeks in the past", "2025-05-20T15:00:00-03:00", "2025-06-10T15:00:00-03:00"},
		{"shift cap reached", "2025-01-01T08:00:00-03:00", "2025-02-26T08:00:00-03:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.FormatISO(c.NormalizeAppointment(at(tt.in), now)))
		})
	}
}

func TestClock_NormalizeAppointment_LeapDay(t *testing.T) {
	c := mustClock(t)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, c.Location())
	in := time.Date(2024, 2, 29, 10, 0, 0, 0, c.Location())

	got := c.NormalizeAppointment(in, now)
	assert.Equal(t, "2025-03-01T10:00:00-03:00", c.FormatISO(got))
}

func TestClock_NormalizeAppointment_Properties(t *testing.T) {
	c := mustClock(t)
	now := refNow.In(c.Location())

	for days := -400; days <= 400; days += 13 {
		in := now.AddDate(0, 0, days).Add(time.Duration(days%5) * time.Hour)
		got := c.NormalizeAppointment(in, now)

		assert.False(t, got.Before(in), "never moved backwards: %s", in)
		if in.After(now) {
			assert.True(t, got.Equal(in), "future instants are untouched: %s", in)
		}
		if in.Year() == now.Year() && !in.After(now) {
			shift := got.Sub(in)
			assert.Zero(t, shift%week, "shifted by whole weeks: %s", in)
			assert.LessOrEqual(t, shift, maxWeekShifts*week)
		}
		assert.Equal(t, in.In(c.Location()).Format("15:04"), got.Format("15:04"))
	}
}

func TestClock_Display(t *testing.T) {
	c := mustClock(t)
	ref := c.Reference(refNow.UnixMilli())

	assert.Equal(t, "12:00", c.DisplayTime(ref))
	date := c.DisplayDate(ref)
	assert.Contains(t, date, "10 de junho de 2025")
}

func TestClock_FixedOffsetIgnoresHistoricDaylightSaving(t *testing.T) {
	c := mustClock(t)

	assert.Equal(t, "2018-12-10T10:00:00-03:00", c.FormatISO(time.Date(2018, 12, 10, 13, 0, 0, 0, time.UTC)))

	in, err := c.Parse("2018-12-10T10:00:00-03:00")
	require.NoError(t, err)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, c.Location())

	got := c.NormalizeAppointment(in, now)
	assert.Equal(t, "2026-12-10T10:00:00-03:00", c.FormatISO(got))
	assert.Equal(t, "10:00", c.DisplayTime(got))
}
