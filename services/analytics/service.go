package analytics

import (
	"context"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/enum"
	internal_errors "github.com/customeros/dmarcstack/internal/errors"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/models"
	"github.com/customeros/dmarcstack/internal/tracing"
)

type analyticsService struct {
	log     logger.Logger
	domains interfaces.MonitoredDomainRepository
	reports interfaces.AggregateReportRepository
}

func NewAnalyticsService(log logger.Logger, domains interfaces.MonitoredDomainRepository, reports interfaces.AggregateReportRepository) interfaces.AnalyticsService {
	return &analyticsService{
		log:     log,
		domains: domains,
		reports: reports,
	}
}

// summaryGranularity is used when the buckets are not reported; coarse buckets
// keep the cell count low.
const summaryGranularity = enum.GranularityMonth

func validateWindow(begin, end time.Time) error {
	if !begin.Before(end) {
		return errors.Wrapf(internal_errors.ErrInvalidWindow, "begin %s is not before end %s", begin, end)
	}
	return nil
}

func (s *analyticsService) cells(ctx context.Context, begin, end time.Time, granularity enum.Granularity) ([]models.AggregateCell, error) {
	if err := validateWindow(begin, end); err != nil {
		return nil, err
	}
	cells, err := s.reports.ListAggregateCells(ctx, begin, end, granularity)
	if err != nil {
		return nil, errors.Wrap(err, "load aggregate cells")
	}
	return cells, nil
}

func (s *analyticsService) startSpan(ctx context.Context, operation string, begin, end time.Time) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService."+operation)
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("begin", begin.String(), "end", end.String())
	return span, ctx
}

func (s *analyticsService) Overview(ctx context.Context, begin, end time.Time, granularity enum.Granularity) (*dto.Overview, error) {
	span, ctx := s.startSpan(ctx, "Overview", begin, end)
	defer span.Finish()
	span.LogKV("granularity", granularity.String())

	cells, err := s.cells(ctx, begin, end, granularity)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	threatIPs, err := s.reports.CountThreatIPs(ctx, begin, end)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "count threat ips")
	}

	overview := Overview(cells, begin, end, granularity, threatIPs)
	return &overview, nil
}

func (s *analyticsService) GlobalStats(ctx context.Context, begin, end time.Time) (*dto.GlobalStats, error) {
	span, ctx := s.startSpan(ctx, "GlobalStats", begin, end)
	defer span.Finish()

	cells, err := s.cells(ctx, begin, end, summaryGranularity)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	stats := GlobalStats(cells)
	return &stats, nil
}

func (s *analyticsService) DomainStats(ctx context.Context, begin, end time.Time) ([]dto.DomainStats, error) {
	span, ctx := s.startSpan(ctx, "DomainStats", begin, end)
	defer span.Finish()

	cells, err := s.cells(ctx, begin, end, summaryGranularity)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return DomainStats(cells), nil
}

func (s *analyticsService) TimeSeries(ctx context.Context, begin, end time.Time, granularity enum.Granularity) (*dto.TimeSeries, error) {
	span, ctx := s.startSpan(ctx, "TimeSeries", begin, end)
	defer span.Finish()

	cells, err := s.cells(ctx, begin, end, granularity)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	series := TimeSeries(cells, granularity)
	return &series, nil
}

func (s *analyticsService) ThreatIPCount(ctx context.Context, begin, end time.Time) (int, error) {
	span, ctx := s.startSpan(ctx, "ThreatIPCount", begin, end)
	defer span.Finish()

	if err := validateWindow(begin, end); err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	count, err := s.reports.CountThreatIPs(ctx, begin, end)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, errors.Wrap(err, "count threat ips")
	}
	return count, nil
}

func (s *analyticsService) DomainRows(ctx context.Context, domainID uint64, begin, end time.Time, limit, offset int) (*models.MonitoredDomain, []*models.AggregateReportRow, int64, error) {
	span, ctx := s.startSpan(ctx, "DomainRows", begin, end)
	defer span.Finish()
	tracing.TagEntity(span, strconv.FormatUint(domainID, 10))

	domain, err := s.domains.GetByID(ctx, domainID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, 0, err
	}
	if domain == nil {
		return nil, nil, 0, internal_errors.ErrDomainNotFound
	}

	rows, total, err := s.reports.ListDomainRows(ctx, domainID, begin, end, limit, offset)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, 0, err
	}
	return domain, rows, total, nil
}

func (s *analyticsService) ActiveThreats(ctx context.Context, begin, end time.Time, limit int) ([]*models.AggregateReportRow, error) {
	span, ctx := s.startSpan(ctx, "ActiveThreats", begin, end)
	defer span.Finish()

	rows, err := s.reports.ListActiveThreats(ctx, begin, end, limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return rows, nil
}

func (s *analyticsService) GetRow(ctx context.Context, id uint64) (*models.AggregateReportRow, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.GetRow")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatUint(id, 10))

	row, err := s.reports.GetRow(ctx, id)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if row == nil {
		return nil, internal_errors.ErrRowNotFound
	}
	return row, nil
}

// ToggleReviewed flips the acknowledgment flag and returns its new value.
func (s *analyticsService) ToggleReviewed(ctx context.Context, id uint64) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.ToggleReviewed")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatUint(id, 10))

	reviewed, err := s.reports.ToggleReviewed(ctx, id)
	if err != nil {
		if !errors.Is(err, internal_errors.ErrRowNotFound) {
			tracing.TraceErr(span, err)
		}
		return false, err
	}
	s.log.Infof("Row %d marked reviewed=%t", id, reviewed)
	return reviewed, nil
}
