package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/customeros/dmarcstack/internal/enum"
)

const AggregateReportRowTable = "dmarc_aggregate_report_rows"

// AuthCheck is the typed copy of one SPF or DKIM authentication result.
type AuthCheck struct {
	Present  bool   `gorm:"column:present;NOT NULL;DEFAULT:false" json:"present"`
	Domain   string `gorm:"column:domain;type:varchar(255)" json:"domain,omitempty"`
	Selector string `gorm:"column:selector;type:varchar(255)" json:"selector,omitempty"`
	Scope    string `gorm:"column:scope;type:varchar(50)" json:"scope,omitempty"`
	Result   string `gorm:"column:result;type:varchar(50)" json:"result,omitempty"`
}

// AggregateReportRow is one <record> of one upstream aggregate report.
// The table is partitioned on date_begin, hence the composite primary key.
// Only IsReviewed changes after insert.
type AggregateReportRow struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DateBegin time.Time `gorm:"column:date_begin;type:timestamptz;primaryKey;NOT NULL;index:idx_dmarc_rows_begin_domain,priority:1" json:"dateBegin"`
	DateEnd   time.Time `gorm:"column:date_end;type:timestamptz;NOT NULL" json:"dateEnd"`

	DomainID uint64           `gorm:"column:domain_id;NOT NULL;index:idx_dmarc_rows_begin_domain,priority:2" json:"domainId"`
	Domain   *MonitoredDomain `gorm:"foreignKey:DomainID" json:"domain,omitempty"`
	ReportID *string          `gorm:"column:report_id;type:varchar(255);index" json:"reportId,omitempty"`

	SourceIP         string  `gorm:"column:source_ip;type:varchar(45);NOT NULL" json:"sourceIp"`
	SourceHostname   *string `gorm:"column:source_hostname;type:text" json:"sourceHostname,omitempty"`
	SourceBaseDomain *string `gorm:"column:source_base_domain;type:text" json:"sourceBaseDomain,omitempty"`
	CountryCode      *string `gorm:"column:country_code;type:varchar(8)" json:"countryCode,omitempty"`

	MessageCount int64            `gorm:"column:message_count;type:bigint;NOT NULL;check:message_count >= 0" json:"messageCount"`
	Disposition  enum.Disposition `gorm:"column:disposition;type:varchar(20);NOT NULL" json:"disposition"`
	SPFAligned   bool             `gorm:"column:spf_aligned;NOT NULL" json:"spfAligned"`
	DKIMAligned  bool             `gorm:"column:dkim_aligned;NOT NULL" json:"dkimAligned"`

	// HeaderFrom is the published policy domain of the report.
	HeaderFrom       string         `gorm:"column:header_from;type:varchar(255);NOT NULL" json:"headerFrom"`
	IdentifierHeader *string        `gorm:"column:identifier_header_from;type:varchar(255)" json:"identifierHeaderFrom,omitempty"`
	EnvelopeFrom     *string        `gorm:"column:envelope_from;type:varchar(255)" json:"envelopeFrom,omitempty"`
	DKIMDomains      pq.StringArray `gorm:"column:dkim_domains;type:text[];NOT NULL;DEFAULT:'{}'" json:"dkimDomains"`

	AuthResults JSONMap   `gorm:"column:auth_results;type:jsonb" json:"authResults"`
	SPFAuth     AuthCheck `gorm:"embedded;embeddedPrefix:spf_auth_" json:"spfAuth"`
	DKIMAuth    AuthCheck `gorm:"embedded;embeddedPrefix:dkim_auth_" json:"dkimAuth"`

	IsReviewed bool      `gorm:"column:is_reviewed;NOT NULL;DEFAULT:false" json:"isReviewed"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;DEFAULT:current_timestamp" json:"createdAt"`
}

func (AggregateReportRow) TableName() string {
	return AggregateReportRowTable
}

// IsActiveThreat reports an unreviewed row that failed both alignments.
func (r *AggregateReportRow) IsActiveThreat() bool {
	return !r.SPFAligned && !r.DKIMAligned && !r.IsReviewed
}

// AggregateCell is one group of rows sharing domain, time bucket and the
// alignment and review flags. Analytics folds cells, never raw rows.
type AggregateCell struct {
	DomainID     uint64    `gorm:"column:domain_id"`
	DomainName   string    `gorm:"column:domain_name"`
	Bucket       time.Time `gorm:"column:bucket"`
	SPFAligned   bool      `gorm:"column:spf_aligned"`
	DKIMAligned  bool      `gorm:"column:dkim_aligned"`
	IsReviewed   bool      `gorm:"column:is_reviewed"`
	MessageCount int64     `gorm:"column:message_count"`
	RowCount     int64     `gorm:"column:row_count"`
	LastSeen     time.Time `gorm:"column:last_seen"`
}

func (c AggregateCell) DMARCPass() bool {
	return c.SPFAligned || c.DKIMAligned
}

func (c AggregateCell) IsActiveThreat() bool {
	return !c.SPFAligned && !c.DKIMAligned && !c.IsReviewed
}
