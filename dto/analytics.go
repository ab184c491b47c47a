package dto

import "time"

type GlobalStats struct {
	TotalVolume      int64   `json:"totalVolume"`
	DKIMAlignedCount int64   `json:"dkimAlignedCount"`
	SPFAlignedCount  int64   `json:"spfAlignedCount"`
	DMARCPassCount   int64   `json:"dmarcPassCount"`
	PassPercentage   float64 `json:"passPercentage"`
}

type DomainStats struct {
	DomainID          uint64    `json:"domainId"`
	DomainName        string    `json:"domainName"`
	Total             int64     `json:"total"`
	DMARCPassCount    int64     `json:"dmarcPassCount"`
	SPFPassCount      int64     `json:"spfPassCount"`
	DKIMPassCount     int64     `json:"dkimPassCount"`
	PassPercentage    float64   `json:"passPercentage"`
	ActiveThreatCount int       `json:"activeThreatCount"`
	LastSeen          time.Time `json:"lastSeen"`
}

type DomainSeries struct {
	DomainID   uint64  `json:"domainId"`
	DomainName string  `json:"domainName"`
	Values     []int64 `json:"values"`
}

// TimeSeries is rectangular: every Values slice has len(Dates) entries.
type TimeSeries struct {
	Granularity string         `json:"granularity"`
	Dates       []string       `json:"dates"`
	Series      []DomainSeries `json:"series"`
	Passed      []int64        `json:"passed"`
	Failed      []int64        `json:"failed"`
}

type Window struct {
	Begin  time.Time `json:"begin"`
	End    time.Time `json:"end"`
	Period string    `json:"period,omitempty"`
}

type Overview struct {
	Window        Window        `json:"window"`
	Global        GlobalStats   `json:"global"`
	Domains       []DomainStats `json:"domains"`
	TimeSeries    TimeSeries    `json:"timeSeries"`
	ThreatIPCount int           `json:"threatIpCount"`
}
