package utils

import (
	"fmt"
	"time"

	"leadmailer/models"
)

// DelayDuration converts a step delay into a duration
func DelayDuration(value int, unit models.DelayUnit) time.Duration {
	d := time.Duration(value)
	switch unit {
	case models.DelayMinutes:
		return d * time.Minute
	case models.DelayHours:
		return d * time.Hour
	case models.DelayDays:
		return d * 24 * time.Hour
	case models.DelayWeeks:
		return d * 7 * 24 * time.Hour
	default:
		return d * 24 * time.Hour
	}
}

// NextSendTime computes when the next funnel step is due.
//
// Relative mode (default): now plus the step delay.
//
// Timezone mode: for day/week delays the step lands on an absolute
// time-of-day in the lead's IANA timezone - delay days ahead, at sendTime
// ("HH:MM") when set, otherwise at the current clock time. Minute/hour delays
// stay relative even in timezone mode; there is no meaningful "time of day"
// for them. An unknown timezone falls back to UTC.
func NextSendTime(now time.Time, delayValue int, unit models.DelayUnit, sendTime *string, timezone string, tzMode bool) time.Time {
	if !tzMode || unit == models.DelayMinutes || unit == models.DelayHours {
		return now.Add(DelayDuration(delayValue, unit))
	}

	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}

	local := now.In(loc)
	days := delayValue
	if unit == models.DelayWeeks {
		days = delayValue * 7
	}

	target := local.AddDate(0, 0, days)
	if sendTime != nil {
		var hour, minute int
		if _, err := fmt.Sscanf(*sendTime, "%d:%d", &hour, &minute); err == nil {
			target = time.Date(target.Year(), target.Month(), target.Day(), hour, minute, 0, 0, loc)
		}
	}

	// A zero-day delay with an earlier fixed time would schedule into the
	// past; push it to tomorrow
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}

	return target.UTC()
}
