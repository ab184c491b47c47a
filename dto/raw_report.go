package dto

// RawReport is one decoded aggregate report as produced by an upstream parser.
// Expected keys: report_metadata, policy_published, records.
type RawReport map[string]any

// AggregateReportReceived is the payload of the queue event carrying reports.
type AggregateReportReceived struct {
	Source  string      `json:"source"`
	Reports []RawReport `json:"reports"`
}

type IngestRequest struct {
	Reports []RawReport `json:"reports"`
}
