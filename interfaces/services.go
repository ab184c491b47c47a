package interfaces

import (
	"context"
	"time"

	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/internal/models"
)

// ReportSource hands decoded aggregate reports to the pipeline.
// Ack is called once the batch returned by Fetch has been processed.
type ReportSource interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]dto.RawReport, error)
	Ack(ctx context.Context) error
}

type ReportArchive interface {
	Archive(ctx context.Context, reportID string, report dto.RawReport) (string, error)
}

type IngestionService interface {
	Run(ctx context.Context, reports []dto.RawReport) (*dto.IngestionResult, error)
}

type AnalyticsService interface {
	Overview(ctx context.Context, begin, end time.Time, granularity enum.Granularity) (*dto.Overview, error)
	GlobalStats(ctx context.Context, begin, end time.Time) (*dto.GlobalStats, error)
	DomainStats(ctx context.Context, begin, end time.Time) ([]dto.DomainStats, error)
	TimeSeries(ctx context.Context, begin, end time.Time, granularity enum.Granularity) (*dto.TimeSeries, error)
	ThreatIPCount(ctx context.Context, begin, end time.Time) (int, error)
	DomainRows(ctx context.Context, domainID uint64, begin, end time.Time, limit, offset int) (*models.MonitoredDomain, []*models.AggregateReportRow, int64, error)
	ActiveThreats(ctx context.Context, begin, end time.Time, limit int) ([]*models.AggregateReportRow, error)
	GetRow(ctx context.Context, id uint64) (*models.AggregateReportRow, error)
	ToggleReviewed(ctx context.Context, id uint64) (bool, error)
}
