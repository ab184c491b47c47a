package models

import "time"

type Organization struct {
	ID        uint64    `gorm:"primary_key;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(255);NOT NULL" json:"name"`
	Slug      string    `gorm:"column:slug;type:varchar(255);NOT NULL;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;DEFAULT:current_timestamp" json:"createdAt"`
}

func (Organization) TableName() string {
	return "dmarc_organizations"
}
