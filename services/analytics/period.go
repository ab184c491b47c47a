package analytics

import (
	"strings"
	"time"
)

const DefaultPeriod = "30d"

var periodDays = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"all": 365 * 10,
}

// PeriodWindow returns [now - period, now). An empty period means 30d.
func PeriodWindow(period string, now time.Time) (time.Time, time.Time, bool) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = DefaultPeriod
	}
	days, ok := periodDays[period]
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end := now.UTC()
	return end.AddDate(0, 0, -days), end, true
}
