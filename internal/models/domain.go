package models

import (
	"time"
)

const MonitoredDomainTable = "dmarc_monitored_domains"

// MonitoredDomain is a domain whose aggregate reports are collected.
type MonitoredDomain struct {
	ID             uint64        `gorm:"primary_key;autoIncrement" json:"id"`
	OrganizationID uint64        `gorm:"column:organization_id;NOT NULL;index" json:"organizationId"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	DomainName     string        `gorm:"column:domain_name;type:varchar(255);NOT NULL;uniqueIndex" json:"domainName"`
	Active         bool          `gorm:"column:active;type:boolean;NOT NULL;DEFAULT:true" json:"active"`
	NotifyEmail    *string       `gorm:"column:notify_email;type:varchar(255)" json:"notifyEmail,omitempty"`
	CreatedAt      time.Time     `gorm:"column:created_at;type:timestamptz;DEFAULT:current_timestamp" json:"createdAt"`
	UpdatedAt      time.Time     `gorm:"column:updated_at;type:timestamptz;DEFAULT:current_timestamp" json:"updatedAt"`
}

func (MonitoredDomain) TableName() string {
	return MonitoredDomainTable
}
