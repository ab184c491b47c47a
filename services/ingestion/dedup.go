package ingestion

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/tracing"
)

// DedupGuard answers whether an upstream report was already stored.
// The check is read-then-write; the ledger's unique report_id catches the race.
type DedupGuard struct {
	reports interfaces.AggregateReportRepository
}

func NewDedupGuard(reports interfaces.AggregateReportRepository) *DedupGuard {
	return &DedupGuard{reports: reports}
}

// IsDuplicate is false for blank ids, which can never be deduplicated.
func (g *DedupGuard) IsDuplicate(ctx context.Context, reportID string) (bool, error) {
	reportID = strings.TrimSpace(reportID)
	if reportID == "" {
		return false, nil
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "DedupGuard.IsDuplicate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("reportId", reportID)

	exists, err := g.reports.ExistsByReportID(ctx, reportID)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, errors.Wrap(err, "duplicate check failed")
	}
	return exists, nil
}

// ReportID reads metadata.report_id; numeric ids are accepted.
func ReportID(metadata map[string]any) string {
	return firstString(metadata, path{"report_id"})
}
