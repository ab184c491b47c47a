package ingestion

import (
	"time"
)

// Window is the [Begin, End) interval a report covers.
// Defaulted is set when no candidate in the metadata resolved.
type Window struct {
	Begin     time.Time
	End       time.Time
	Defaulted bool
	Source    string
}

type windowCandidate struct {
	name  string
	begin path
	end   path
}

// Tried in order; the first candidate whose bounds both parse wins.
var windowCandidates = []windowCandidate{
	{name: "date_range", begin: path{"date_range", "begin"}, end: path{"date_range", "end"}},
	{name: "begin_date", begin: path{"begin_date"}, end: path{"end_date"}},
	{name: "begin", begin: path{"begin"}, end: path{"end"}},
}

// ResolveWindow never fails: without a usable candidate both bounds become now.
func ResolveWindow(metadata map[string]any, now time.Time) Window {
	for _, candidate := range windowCandidates {
		if window, ok := candidate.resolve(metadata); ok {
			return window
		}
	}
	now = now.UTC()
	return Window{Begin: now, End: now, Defaulted: true, Source: "default"}
}

func (c windowCandidate) resolve(metadata map[string]any) (Window, bool) {
	rawBegin, ok := lookup(metadata, c.begin)
	if !ok {
		return Window{}, false
	}
	rawEnd, ok := lookup(metadata, c.end)
	if !ok {
		return Window{}, false
	}
	begin, ok := NormalizeDate(rawBegin)
	if !ok {
		return Window{}, false
	}
	end, ok := NormalizeDate(rawEnd)
	if !ok || end.Before(begin) {
		return Window{}, false
	}
	return Window{Begin: begin, End: end, Source: c.name}, true
}
