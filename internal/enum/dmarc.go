package enum

import "strings"

type Disposition string

const (
	DispositionNone       Disposition = "none"
	DispositionQuarantine Disposition = "quarantine"
	DispositionReject     Disposition = "reject"
)

func (d Disposition) String() string {
	return string(d)
}

// ParseDisposition maps a reported policy action onto the three known values.
// Anything unrecognised is treated as none.
func ParseDisposition(s string) Disposition {
	switch Disposition(strings.ToLower(strings.TrimSpace(s))) {
	case DispositionQuarantine:
		return DispositionQuarantine
	case DispositionReject:
		return DispositionReject
	default:
		return DispositionNone
	}
}

type Severity string

const (
	SeverityRed    Severity = "red"
	SeverityYellow Severity = "yellow"
	SeverityGreen  Severity = "green"
)

func (s Severity) String() string {
	return string(s)
}

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

func (g Granularity) String() string {
	return string(g)
}

func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case "", GranularityDay:
		return GranularityDay, true
	case GranularityWeek:
		return GranularityWeek, true
	case GranularityMonth:
		return GranularityMonth, true
	default:
		return "", false
	}
}
