package utils

import (
	"testing"
	"time"

	"leadmailer/models"

	"github.com/stretchr/testify/assert"
)

func TestDelayDuration(t *testing.T) {
	assert.Equal(t, 30*time.Minute, DelayDuration(30, models.DelayMinutes))
	assert.Equal(t, 6*time.Hour, DelayDuration(6, models.DelayHours))
	assert.Equal(t, 48*time.Hour, DelayDuration(2, models.DelayDays))
	assert.Equal(t, 14*24*time.Hour, DelayDuration(2, models.DelayWeeks))
	// Unknown units behave like days
	assert.Equal(t, 24*time.Hour, DelayDuration(1, models.DelayUnit("fortnights")))
}

func TestNextSendTimeRelative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := NextSendTime(now, 3, models.DelayDays, nil, "America/Sao_Paulo", false)
	assert.Equal(t, now.Add(72*time.Hour), got)

	// Minute delays stay relative even in timezone mode
	got = NextSendTime(now, 45, models.DelayMinutes, Pointer("09:00"), "America/Sao_Paulo", true)
	assert.Equal(t, now.Add(45*time.Minute), got)
}

func TestNextSendTimeTimezoneMode(t *testing.T) {
	// 12:00 UTC is 09:00 in Sao Paulo (UTC-3)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := NextSendTime(now, 2, models.DelayDays, Pointer("09:30"), "America/Sao_Paulo", true)

	loc, err := time.LoadLocation("America/Sao_Paulo")
	assert.NoError(t, err)
	want := time.Date(2026, 3, 3, 9, 30, 0, 0, loc).UTC()
	assert.Equal(t, want, got)
}

func TestNextSendTimeWeeksInTimezoneMode(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := NextSendTime(now, 1, models.DelayWeeks, Pointer("08:00"), "UTC", true)
	assert.Equal(t, time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC), got)
}

func TestNextSendTimePastTargetPushesToTomorrow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Zero-day delay with a time of day already behind us
	got := NextSendTime(now, 0, models.DelayDays, Pointer("08:00"), "UTC", true)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), got)
}

func TestNextSendTimeUnknownTimezoneFallsBackToUTC(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := NextSendTime(now, 1, models.DelayDays, Pointer("10:00"), "Mars/Olympus_Mons", true)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), got)
}
