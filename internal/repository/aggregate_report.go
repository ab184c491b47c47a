package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/internal/models"
	"github.com/customeros/dmarcstack/internal/tracing"
)

const insertBatchSize = 500

type aggregateReportRepository struct {
	db *gorm.DB
}

func NewAggregateReportRepository(db *gorm.DB) interfaces.AggregateReportRepository {
	return &aggregateReportRepository{db: db}
}

func (r *aggregateReportRepository) ExistsByReportID(ctx context.Context, reportID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportRepository.ExistsByReportID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("reportId", reportID)

	var exists bool
	err := r.db.WithContext(ctx).
		Raw("SELECT EXISTS (SELECT 1 FROM "+models.AggregateReportRowTable+" WHERE report_id = ?)", reportID).
		Scan(&exists).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return false, err
	}

	span.LogFields(tracingLog.Bool("response.exists", exists))
	return exists, nil
}

// SaveReport returns ErrDuplicateReport when the ledger already holds the report id.
func (r *aggregateReportRepository) SaveReport(ctx context.Context, ledger *models.IngestedReport, rows []*models.AggregateReportRow) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportRepository.SaveReport")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogFields(tracingLog.Int("rows", len(rows)))

	if ledger == nil {
		tracing.TraceErr(span, ErrInvalidInput)
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ledger).Error; err != nil {
			// relies on TranslateError in the gorm config to surface the
			// report_id unique violation as ErrDuplicatedKey
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReport
			}
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateReport) {
			span.LogKV("duplicate", true)
			return err
		}
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return err
	}

	return nil
}

// truncUnits whitelists the date_trunc units; the unit is inlined into the query.
var truncUnits = map[enum.Granularity]string{
	enum.GranularityDay:   "day",
	enum.GranularityWeek:  "week",
	enum.GranularityMonth: "month",
}

func (r *aggregateReportRepository) ListAggregateCells(ctx context.Context, begin, end time.Time, granularity enum.Granularity) ([]models.AggregateCell, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportRepository.ListAggregateCells")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("begin", begin.String(), "end", end.String(), "granularity", granularity.String())

	unit, ok := truncUnits[granularity]
	if !ok {
		tracing.TraceErr(span, ErrInvalidInput)
		return nil, ErrInvalidInput
	}

	// week truncation in postgres starts on Monday
	var cells []models.AggregateCell
	err := r.db.WithContext(ctx).
		Table(models.AggregateReportRowTable+" AS r").
		Select(
			"r.domain_id, d.domain_name, "+
				"date_trunc('"+unit+"', r.date_begin AT TIME ZONE 'UTC') AS bucket, "+
				"r.spf_aligned, r.dkim_aligned, r.is_reviewed, "+
				"SUM(r.message_count)::bigint AS message_count, "+
				"COUNT(*) AS row_count, "+
				"MAX(r.date_begin) AS last_seen").
		Joins("JOIN "+models.MonitoredDomainTable+" d ON d.id = r.domain_id").
		Where("r.date_begin >= ? AND r.date_begin < ?", begin, end).
		Group("1, 2, 3, 4, 5, 6").
		Scan(&cells).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	span.LogFields(tracingLog.Int("response.cells", len(cells)))
	return cells, nil
}

// CountThreatIPs counts distinct source IPs with an unreviewed row failing both alignments.
func (r *aggregateReportRepository) CountThreatIPs(ctx context.Context, begin, end time.Time) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportRepository.CountThreatIPs")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("begin", begin.String(), "end", end.String())

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AggregateReportRow{}).
		Where("date_begin >= ? AND date_begin < ?", begin, end).
		Where("NOT spf_aligned AND NOT dkim_aligned AND NOT is_reviewed").
		Distinct("source_ip").
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return 0, err
	}

	span.LogFields(tracingLog.Int64("response.count", count))
	return int(count), nil
}

func (r *aggregateReportRepository) GetRow(ctx context.Context, id uint64) (*models.AggregateReportRow, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportRepository.GetRow")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatUint(id, 10))

	var row models.AggregateReportRow
	err := r.db.WithContext(ctx).
		Preload("Domain").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	return &row, nil
}

func (r *aggregateReportRepository) ListDomainRows(ctx context.Context, domainID uint64, begin, end time.Time, limit, offset int) ([]*models.AggregateReportRow, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportRepository.ListDomainRows")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatUint(domainID, 10))

	query := r.db.WithContext(ctx).
		Model(&models.AggregateReportRow{}).
		Where("domain_id = ? AND date_begin >= ? AND date_begin < ?", domainID, begin, end)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, 0, err
	}

	var rows []*models.AggregateReportRow
	err := query.
		Order("date_begin DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *aggregateReportRepository) ListActiveThreats(ctx context.Context, begin, end time.Time, limit int) ([]*models.AggregateReportRow, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportRepository.ListActiveThreats")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var rows []*models.AggregateReportRow
	err := r.db.WithContext(ctx).
		Preload("Domain").
		Where("date_begin >= ? AND date_begin < ?", begin, end).
		Where("spf_aligned = ? AND dkim_aligned = ? AND is_reviewed = ?", false, false, false).
		Order("date_begin DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	return rows, nil
}

// ToggleReviewed flips is_reviewed in a single statement and returns the new value.
func (r *aggregateReportRepository) ToggleReviewed(ctx context.Context, id uint64) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportRepository.ToggleReviewed")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatUint(id, 10))

	// RETURNING scans the new is_reviewed into row
	var row models.AggregateReportRow
	result := r.db.WithContext(ctx).
		Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "is_reviewed"}}}).
		Where("id = ?", id).
		UpdateColumn("is_reviewed", gorm.Expr("NOT is_reviewed"))
	if result.Error != nil {
		tracing.TraceErr(span, errors.Wrap(result.Error, "db error"))
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, ErrRowNotFound
	}

	span.LogFields(tracingLog.Bool("response.isReviewed", row.IsReviewed))
	return row.IsReviewed, nil
}
