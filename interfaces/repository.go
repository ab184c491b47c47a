package interfaces

import (
	"context"
	"time"

	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/internal/models"
)

type OrganizationRepository interface {
	GetOrCreate(ctx context.Context, name, slug string) (*models.Organization, error)
}

type MonitoredDomainRepository interface {
	GetOrCreate(ctx context.Context, organizationID uint64, domainName string) (*models.MonitoredDomain, error)
	GetByID(ctx context.Context, id uint64) (*models.MonitoredDomain, error)
	List(ctx context.Context) ([]*models.MonitoredDomain, error)
}

type AggregateReportRepository interface {
	ExistsByReportID(ctx context.Context, reportID string) (bool, error)
	// SaveReport writes the ledger entry and all rows of one report atomically.
	SaveReport(ctx context.Context, ledger *models.IngestedReport, rows []*models.AggregateReportRow) error
	// ListAggregateCells groups the rows of [begin, end) by domain, granularity
	// bucket and the spf/dkim/review flags.
	ListAggregateCells(ctx context.Context, begin, end time.Time, granularity enum.Granularity) ([]models.AggregateCell, error)
	CountThreatIPs(ctx context.Context, begin, end time.Time) (int, error)
	GetRow(ctx context.Context, id uint64) (*models.AggregateReportRow, error)
	ListDomainRows(ctx context.Context, domainID uint64, begin, end time.Time, limit, offset int) ([]*models.AggregateReportRow, int64, error)
	ListActiveThreats(ctx context.Context, begin, end time.Time, limit int) ([]*models.AggregateReportRow, error)
	ToggleReviewed(ctx context.Context, id uint64) (bool, error)
}
