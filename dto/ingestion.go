package dto

// IngestionResult summarizes one pipeline run.
type IngestionResult struct {
	RunID            string   `json:"runId"`
	ReportsSeen      int      `json:"reportsSeen"`
	ReportsIngested  int      `json:"reportsIngested"`
	RowsCreated      int      `json:"rowsCreated"`
	SkippedDuplicate int      `json:"skippedDuplicate"`
	SkippedMalformed int      `json:"skippedMalformed"`
	DefaultedWindows int      `json:"defaultedWindows"`
	Diagnostics      []string `json:"diagnostics"`
}

func NewIngestionResult(runID string) *IngestionResult {
	return &IngestionResult{
		RunID:       runID,
		Diagnostics: []string{},
	}
}
