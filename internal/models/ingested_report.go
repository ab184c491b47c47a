package models

import "time"

// IngestedReport is the ledger entry written with every accepted upstream report.
// The unique report_id backs up the read-then-write duplicate check.
type IngestedReport struct {
	ID              uint64    `gorm:"primary_key;autoIncrement" json:"id"`
	ReportID        *string   `gorm:"column:report_id;type:varchar(255);uniqueIndex" json:"reportId,omitempty"`
	OrgName         string    `gorm:"column:org_name;type:varchar(255)" json:"orgName"`
	DomainID        uint64    `gorm:"column:domain_id;NOT NULL;index" json:"domainId"`
	RowCount        int       `gorm:"column:row_count;type:integer;NOT NULL" json:"rowCount"`
	DateBegin       time.Time `gorm:"column:date_begin;type:timestamptz;NOT NULL" json:"dateBegin"`
	DateEnd         time.Time `gorm:"column:date_end;type:timestamptz;NOT NULL" json:"dateEnd"`
	WindowDefaulted bool      `gorm:"column:window_defaulted;NOT NULL;DEFAULT:false" json:"windowDefaulted"`
	RunID           string    `gorm:"column:run_id;type:varchar(50);index" json:"runId"`
	IngestedAt      time.Time `gorm:"column:ingested_at;type:timestamptz;DEFAULT:current_timestamp" json:"ingestedAt"`
}

func (IngestedReport) TableName() string {
	return "dmarc_ingested_reports"
}
