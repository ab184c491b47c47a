package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/interfaces"
	internal_errors "github.com/customeros/dmarcstack/internal/errors"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/models"
	"github.com/customeros/dmarcstack/internal/tracing"
	"github.com/customeros/dmarcstack/internal/utils"
)

type PipelineDeps struct {
	Organizations interfaces.OrganizationRepository
	Domains       interfaces.MonitoredDomainRepository
	Reports       interfaces.AggregateReportRepository
	// Archive is optional.
	Archive interfaces.ReportArchive
}

// Pipeline turns raw reports into persisted rows. One run at a time per process.
type Pipeline struct {
	log          logger.Logger
	domains      interfaces.MonitoredDomainRepository
	reports      interfaces.AggregateReportRepository
	archive      interfaces.ReportArchive
	guard        *DedupGuard
	organization *models.Organization
	now          func() time.Time
	running      sync.Mutex
}

// NewPipeline resolves the default organization once, up front.
func NewPipeline(ctx context.Context, log logger.Logger, deps PipelineDeps, tenant *config.TenantConfig) (*Pipeline, error) {
	if deps.Organizations == nil || deps.Domains == nil || deps.Reports == nil {
		return nil, errors.New("ingestion pipeline requires organization, domain and report repositories")
	}
	if tenant == nil {
		return nil, errors.New("ingestion pipeline requires a tenant config")
	}

	organization, err := deps.Organizations.GetOrCreate(ctx, tenant.DefaultOrganizationName, tenant.DefaultOrganizationSlug)
	if err != nil {
		return nil, errors.Wrap(err, "resolve default organization")
	}

	return &Pipeline{
		log:          log,
		domains:      deps.Domains,
		reports:      deps.Reports,
		archive:      deps.Archive,
		guard:        NewDedupGuard(deps.Reports),
		organization: organization,
		now:          utils.Now,
	}, nil
}

// Run ingests reports in order. Malformed and duplicate reports are counted
// and skipped; a store failure stops the run and the partial result is
// returned with the error.
func (p *Pipeline) Run(ctx context.Context, reports []dto.RawReport) (*dto.IngestionResult, error) {
	if !p.running.TryLock() {
		return nil, internal_errors.ErrIngestionInProgress
	}
	defer p.running.Unlock()

	runID := utils.GenerateNanoIDWithPrefix("run", 12)
	ctx = utils.SetRunIdInContext(ctx, runID)

	span, ctx := opentracing.StartSpanFromContext(ctx, "IngestionPipeline.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagRunId(span, runID)
	span.LogFields(tracingLog.Int("reports", len(reports)))

	result := dto.NewIngestionResult(runID)
	for i, raw := range reports {
		if err := ctx.Err(); err != nil {
			tracing.TraceErr(span, err)
			return result, err
		}
		result.ReportsSeen++
		if err := p.ingestReport(ctx, runID, i, raw, result); err != nil {
			tracing.TraceErr(span, err)
			p.log.Errorf("Ingestion run %s aborted at report #%d: %v", runID, i, err)
			return result, err
		}
	}

	tracing.LogObjectAsJson(span, "result", result)
	p.log.Infof("Ingestion run %s done: seen=%d ingested=%d rows=%d duplicate=%d malformed=%d defaulted=%d",
		runID, result.ReportsSeen, result.ReportsIngested, result.RowsCreated,
		result.SkippedDuplicate, result.SkippedMalformed, result.DefaultedWindows)
	return result, nil
}

// ingestReport only returns store errors; report-level problems land in result.
func (p *Pipeline) ingestReport(ctx context.Context, runID string, index int, raw dto.RawReport, result *dto.IngestionResult) error {
	metadata, hasMetadata := asMapping(raw["report_metadata"])
	policy, hasPolicy := asMapping(raw["policy_published"])
	if !hasMetadata || !hasPolicy {
		p.skipMalformed(result, index, "", errors.Wrap(internal_errors.ErrMalformedReport, "report_metadata or policy_published missing"))
		return nil
	}

	reportID := ReportID(metadata)
	duplicate, err := p.guard.IsDuplicate(ctx, reportID)
	if err != nil {
		return err
	}
	if duplicate {
		result.SkippedDuplicate++
		p.log.Infof("Skipping report %s: already ingested", reportID)
		return nil
	}

	domainName := PublishedDomain(policy)
	if domainName == "" {
		p.skipMalformed(result, index, reportID, internal_errors.ErrMissingPublishedDomain)
		return nil
	}

	normalized, err := normalizeRecords(raw["records"], metadata, policy)
	if err != nil {
		p.skipMalformed(result, index, reportID, err)
		return nil
	}

	window := ResolveWindow(metadata, p.now())
	if window.Defaulted {
		result.DefaultedWindows++
		p.log.Warnf("Report %s for %s has no usable date range, using current time", displayID(reportID), domainName)
	}

	domain, err := p.domains.GetOrCreate(ctx, p.organization.ID, domainName)
	if err != nil {
		return errors.Wrapf(err, "resolve domain %s", domainName)
	}

	reportIDPtr := utils.StringPtrOrNil(reportID)
	rows := make([]*models.AggregateReportRow, 0, len(normalized))
	for _, record := range normalized {
		rows = append(rows, record.ToRow(domain.ID, reportIDPtr, window))
	}

	ledger := &models.IngestedReport{
		ReportID:        reportIDPtr,
		OrgName:         firstString(metadata, path{"org_name"}),
		DomainID:        domain.ID,
		RowCount:        len(rows),
		DateBegin:       window.Begin,
		DateEnd:         window.End,
		WindowDefaulted: window.Defaulted,
		RunID:           runID,
		IngestedAt:      p.now(),
	}
	if err = p.reports.SaveReport(ctx, ledger, rows); err != nil {
		if errors.Is(err, internal_errors.ErrDuplicateReport) {
			result.SkippedDuplicate++
			p.log.Infof("Skipping report %s: ingested concurrently", reportID)
			return nil
		}
		return errors.Wrapf(err, "save report %s", displayID(reportID))
	}

	result.ReportsIngested++
	result.RowsCreated += len(rows)

	p.archiveReport(ctx, reportID, raw)
	return nil
}

func (p *Pipeline) archiveReport(ctx context.Context, reportID string, raw dto.RawReport) {
	if p.archive == nil {
		return
	}
	key, err := p.archive.Archive(ctx, reportID, raw)
	if err != nil {
		p.log.Warnf("Failed to archive report %s: %v", displayID(reportID), err)
		return
	}
	p.log.Debugf("Archived report %s as %s", displayID(reportID), key)
}

func (p *Pipeline) skipMalformed(result *dto.IngestionResult, index int, reportID string, err error) {
	result.SkippedMalformed++
	diagnostic := fmt.Sprintf("report #%d (%s): %v", index, displayID(reportID), err)
	result.Diagnostics = append(result.Diagnostics, diagnostic)
	p.log.Warnf("Skipping malformed %s", diagnostic)
}

// normalizeRecords rejects the whole report when any record is not a mapping.
func normalizeRecords(raw any, metadata, policy map[string]any) ([]*NormalizedRecord, error) {
	var items []any
	switch value := raw.(type) {
	case nil:
		return []*NormalizedRecord{}, nil
	case []any:
		items = value
	case []map[string]any:
		items = make([]any, len(value))
		for i := range value {
			items[i] = value[i]
		}
	case []dto.RawReport:
		items = make([]any, len(value))
		for i := range value {
			items[i] = value[i]
		}
	default:
		return nil, errors.Wrapf(internal_errors.ErrMalformedReport, "records is %T, not a list", raw)
	}

	out := make([]*NormalizedRecord, 0, len(items))
	for i, item := range items {
		record, ok := asMapping(item)
		if !ok {
			return nil, errors.Wrapf(internal_errors.ErrMalformedReport, "record #%d is %T, not a mapping", i, item)
		}
		normalized, err := NormalizeRecord(record, metadata, policy)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}
	return out, nil
}

func displayID(reportID string) string {
	if reportID == "" {
		return "no report id"
	}
	return reportID
}
