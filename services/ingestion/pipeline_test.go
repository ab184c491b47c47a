package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/dto"
	internal_errors "github.com/customeros/dmarcstack/internal/errors"
)

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) Archive(ctx context.Context, reportID string, report dto.RawReport) (string, error) {
	args := m.Called(ctx, reportID, report)
	return args.String(0), args.Error(1)
}

type pipelineFixture struct {
	pipeline      *Pipeline
	organizations *memoryOrganizations
	domains       *memoryDomains
	reports       *memoryReports
}

func newPipelineFixture(t *testing.T, archive *mockArchive) *pipelineFixture {
	t.Helper()
	fixture := &pipelineFixture{
		organizations: newMemoryOrganizations(),
		domains:       newMemoryDomains(),
		reports:       newMemoryReports(),
	}
	deps := PipelineDeps{
		Organizations: fixture.organizations,
		Domains:       fixture.domains,
		Reports:       fixture.reports,
	}
	if archive != nil {
		deps.Archive = archive
	}

	pipeline, err := NewPipeline(context.Background(), getLogger(), deps, &config.TenantConfig{
		DefaultOrganizationName: "Unassigned",
		DefaultOrganizationSlug: "unassigned",
	})
	require.NoError(t, err)
	pipeline.now = func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) }
	fixture.pipeline = pipeline
	return fixture
}

func sampleReport(reportID string, domain string, records ...any) dto.RawReport {
	return dto.RawReport{
		"report_metadata": map[string]any{
			"org_name":   "google.com",
			"report_id":  reportID,
			"date_range": map[string]any{"begin": 1700000000, "end": 1700086400},
		},
		"policy_published": map[string]any{"domain": domain},
		"records":          records,
	}
}

func sampleRecord(ip string, count int, spf, dkim bool) map[string]any {
	return map[string]any{
		"source":    map[string]any{"ip_address": ip},
		"row":       map[string]any{"count": count, "policy_evaluated": map[string]any{"disposition": "none"}},
		"alignment": map[string]any{"spf": spf, "dkim": dkim},
	}
}

func TestNewPipeline_ResolvesOrganizationOnce(t *testing.T) {
	fixture := newPipelineFixture(t, nil)

	_, err := fixture.pipeline.Run(context.Background(), []dto.RawReport{
		sampleReport("r1", "example.com", sampleRecord("192.0.2.1", 1, true, true)),
		sampleReport("r2", "other.com", sampleRecord("192.0.2.2", 1, true, true)),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fixture.organizations.calls)
	assert.Equal(t, "unassigned", fixture.pipeline.organization.Slug)
	for _, domain := range fixture.domains.domains {
		assert.Equal(t, fixture.pipeline.organization.ID, domain.OrganizationID)
	}
}

func TestPipeline_DuplicateReportIsSkippedEntirely(t *testing.T) {
	fixture := newPipelineFixture(t, nil)

	first := sampleReport("abc", "example.com",
		sampleRecord("192.0.2.1", 3, true, true),
		sampleRecord("192.0.2.2", 4, false, false),
	)
	second := sampleReport("abc", "example.com",
		sampleRecord("192.0.2.3", 5, true, false),
	)

	result, err := fixture.pipeline.Run(context.Background(), []dto.RawReport{first, second})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ReportsSeen)
	assert.Equal(t, 1, result.ReportsIngested)
	assert.Equal(t, 2, result.RowsCreated)
	assert.Equal(t, 1, result.SkippedDuplicate)
	assert.Len(t, fixture.reports.rows, 2)

	// A later run with the same id is skipped as well.
	result, err = fixture.pipeline.Run(context.Background(), []dto.RawReport{second})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RowsCreated)
	assert.Equal(t, 1, result.SkippedDuplicate)
	assert.Len(t, fixture.reports.rows, 2)
}

func TestPipeline_ReportsWithoutIdAreAlwaysIngested(t *testing.T) {
	fixture := newPipelineFixture(t, nil)
	report := sampleReport("", "example.com", sampleRecord("192.0.2.1", 1, true, true))

	result, err := fixture.pipeline.Run(context.Background(), []dto.RawReport{report, report})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ReportsIngested)
	assert.Equal(t, 0, result.SkippedDuplicate)
	for _, row := range fixture.reports.rows {
		assert.Nil(t, row.ReportID)
	}
}

func TestPipeline_RowsCarryWindowAndReportId(t *testing.T) {
	fixture := newPipelineFixture(t, nil)

	result, err := fixture.pipeline.Run(context.Background(), []dto.RawReport{
		sampleReport("r-1", "Example.com", sampleRecord("192.0.2.1", 7, true, false)),
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.RowsCreated)

	row := fixture.reports.rows[0]
	assert.Equal(t, "r-1", *row.ReportID)
	assert.True(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC).Equal(row.DateBegin))
	assert.True(t, time.Date(2023, 11, 15, 22, 13, 20, 0, time.UTC).Equal(row.DateEnd))
	assert.Equal(t, int64(7), row.MessageCount)
	assert.Equal(t, fixture.domains.domains["example.com"].ID, row.DomainID)

	ledger := fixture.reports.ledger[0]
	assert.Equal(t, "google.com", ledger.OrgName)
	assert.Equal(t, 1, ledger.RowCount)
	assert.Equal(t, result.RunID, ledger.RunID)
	assert.False(t, ledger.WindowDefaulted)
}

func TestPipeline_MalformedReportsAreIsolated(t *testing.T) {
	fixture := newPipelineFixture(t, nil)

	reports := []dto.RawReport{
		{"policy_published": map[string]any{"domain": "example.com"}},
		{"report_metadata": map[string]any{"report_id": "no-policy"}},
		sampleReport("no-domain", ""),
		sampleReport("bad-record", "example.com", sampleRecord("192.0.2.1", 1, true, true), "not a record"),
		sampleReport("good", "example.com", sampleRecord("192.0.2.9", 2, true, true)),
	}

	result, err := fixture.pipeline.Run(context.Background(), reports)
	require.NoError(t, err)

	assert.Equal(t, 5, result.ReportsSeen)
	assert.Equal(t, 4, result.SkippedMalformed)
	assert.Equal(t, 1, result.ReportsIngested)
	assert.Equal(t, 1, result.RowsCreated)
	assert.Len(t, result.Diagnostics, 4)
	assert.Contains(t, result.Diagnostics[3], "bad-record")
	assert.Len(t, fixture.reports.rows, 1)
}

func TestPipeline_DefaultedWindowIsReported(t *testing.T) {
	fixture := newPipelineFixture(t, nil)
	report := sampleReport("no-dates", "example.com", sampleRecord("192.0.2.1", 1, true, true))
	report["report_metadata"] = map[string]any{"report_id": "no-dates", "date_range": map[string]any{"begin": "never"}}

	result, err := fixture.pipeline.Run(context.Background(), []dto.RawReport{report})
	require.NoError(t, err)

	assert.Equal(t, 1, result.DefaultedWindows)
	assert.Equal(t, 1, result.RowsCreated)
	row := fixture.reports.rows[0]
	assert.True(t, fixture.pipeline.now().Equal(row.DateBegin))
	assert.True(t, row.DateBegin.Equal(row.DateEnd))
	assert.True(t, fixture.reports.ledger[0].WindowDefaulted)
}

func TestPipeline_LateDuplicateFromLedger(t *testing.T) {
	fixture := newPipelineFixture(t, nil)
	fixture.reports.hideRows = true

	report := sampleReport("race", "example.com", sampleRecord("192.0.2.1", 1, true, true))
	result, err := fixture.pipeline.Run(context.Background(), []dto.RawReport{report, report})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ReportsIngested)
	assert.Equal(t, 1, result.SkippedDuplicate)
	assert.Len(t, fixture.reports.rows, 1)
}

func TestPipeline_StoreFailureAbortsWithPartialResult(t *testing.T) {
	fixture := newPipelineFixture(t, nil)
	fixture.reports.saveErr = errors.New("connection reset")

	result, err := fixture.pipeline.Run(context.Background(), []dto.RawReport{
		sampleReport("", "example.com"),
		sampleReport("r1", "example.com", sampleRecord("192.0.2.1", 1, true, true)),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ReportsSeen)
	assert.Equal(t, 0, result.RowsCreated)
}

func TestPipeline_RejectsOverlappingRun(t *testing.T) {
	fixture := newPipelineFixture(t, nil)
	fixture.pipeline.running.Lock()
	defer fixture.pipeline.running.Unlock()

	result, err := fixture.pipeline.Run(context.Background(), nil)
	assert.ErrorIs(t, err, internal_errors.ErrIngestionInProgress)
	assert.Nil(t, result)
}

func TestPipeline_StopsOnCancelledContext(t *testing.T) {
	fixture := newPipelineFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := fixture.pipeline.Run(ctx, []dto.RawReport{
		sampleReport("r1", "example.com", sampleRecord("192.0.2.1", 1, true, true)),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.ReportsSeen)
}

func TestPipeline_ArchiveFailureDoesNotFailReport(t *testing.T) {
	archive := new(mockArchive)
	archive.On("Archive", mock.Anything, "r1", mock.Anything).Return("", errors.New("bucket gone"))
	archive.On("Archive", mock.Anything, "r2", mock.Anything).Return("reports/r2.json", nil)
	fixture := newPipelineFixture(t, archive)

	result, err := fixture.pipeline.Run(context.Background(), []dto.RawReport{
		sampleReport("r1", "example.com", sampleRecord("192.0.2.1", 1, true, true)),
		sampleReport("r2", "example.com", sampleRecord("192.0.2.2", 1, true, true)),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ReportsIngested)
	archive.AssertNumberOfCalls(t, "Archive", 2)
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(context.Background(), getLogger(), PipelineDeps{}, &config.TenantConfig{})
	assert.Error(t, err)
}
