package analytics

import (
	"time"

	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/internal/utils"
)

// BucketStart truncates t to the start of its bucket in UTC.
// Weeks start on Monday.
func BucketStart(t time.Time, granularity enum.Granularity) time.Time {
	day := utils.StartOfDay(t)
	switch granularity {
	case enum.GranularityWeek:
		sinceMonday := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -sinceMonday)
	case enum.GranularityMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func BucketLabel(start time.Time, granularity enum.Granularity) string {
	if granularity == enum.GranularityMonth {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}
