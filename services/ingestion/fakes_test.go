package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/internal/errors"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type memoryOrganizations struct {
	mu    sync.Mutex
	calls int
	orgs  map[string]*models.Organization
}

func newMemoryOrganizations() *memoryOrganizations {
	return &memoryOrganizations{orgs: map[string]*models.Organization{}}
}

func (m *memoryOrganizations) GetOrCreate(_ context.Context, name, slug string) (*models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if org, ok := m.orgs[slug]; ok {
		return org, nil
	}
	org := &models.Organization{ID: uint64(len(m.orgs) + 1), Name: name, Slug: slug}
	m.orgs[slug] = org
	return org, nil
}

type memoryDomains struct {
	mu      sync.Mutex
	domains map[string]*models.MonitoredDomain
	byID    map[uint64]*models.MonitoredDomain
}

func newMemoryDomains() *memoryDomains {
	return &memoryDomains{
		domains: map[string]*models.MonitoredDomain{},
		byID:    map[uint64]*models.MonitoredDomain{},
	}
}

func (m *memoryDomains) GetOrCreate(_ context.Context, organizationID uint64, domainName string) (*models.MonitoredDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if domain, ok := m.domains[domainName]; ok {
		return domain, nil
	}
	domain := &models.MonitoredDomain{
		ID:             uint64(len(m.domains) + 1),
		OrganizationID: organizationID,
		DomainName:     domainName,
		Active:         true,
	}
	m.domains[domainName] = domain
	m.byID[domain.ID] = domain
	return domain, nil
}

func (m *memoryDomains) GetByID(_ context.Context, id uint64) (*models.MonitoredDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id], nil
}

func (m *memoryDomains) List(_ context.Context) ([]*models.MonitoredDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.MonitoredDomain, 0, len(m.byID))
	for _, domain := range m.byID {
		out = append(out, domain)
	}
	return out, nil
}

// memoryReports mimics the storage contract: rows and ledger saved together,
// ledger report ids unique.
type memoryReports struct {
	mu      sync.Mutex
	rows    []*models.AggregateReportRow
	ledger  []*models.IngestedReport
	saveErr error
	// hideRows makes ExistsByReportID miss, simulating a concurrent writer.
	hideRows bool
}

func newMemoryReports() *memoryReports {
	return &memoryReports{}
}

func (m *memoryReports) ExistsByReportID(_ context.Context, reportID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideRows {
		return false, nil
	}
	for _, row := range m.rows {
		if row.ReportID != nil && *row.ReportID == reportID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryReports) SaveReport(_ context.Context, ledger *models.IngestedReport, rows []*models.AggregateReportRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if ledger.ReportID != nil {
		for _, existing := range m.ledger {
			if existing.ReportID != nil && *existing.ReportID == *ledger.ReportID {
				return errors.ErrDuplicateReport
			}
		}
	}
	ledger.ID = uint64(len(m.ledger) + 1)
	m.ledger = append(m.ledger, ledger)
	for _, row := range rows {
		row.ID = uint64(len(m.rows) + 1)
		m.rows = append(m.rows, row)
	}
	return nil
}

func (m *memoryReports) ListAggregateCells(_ context.Context, begin, end time.Time, granularity enum.Granularity) ([]models.AggregateCell, error) {
	return nil, nil
}

func (m *memoryReports) CountThreatIPs(_ context.Context, begin, end time.Time) (int, error) {
	return 0, nil
}

func (m *memoryReports) GetRow(_ context.Context, id uint64) (*models.AggregateReportRow, error) {
	return nil, nil
}

func (m *memoryReports) ListDomainRows(_ context.Context, domainID uint64, begin, end time.Time, limit, offset int) ([]*models.AggregateReportRow, int64, error) {
	return nil, 0, nil
}

func (m *memoryReports) ListActiveThreats(_ context.Context, begin, end time.Time, limit int) ([]*models.AggregateReportRow, error) {
	return nil, nil
}

func (m *memoryReports) ToggleReviewed(_ context.Context, id uint64) (bool, error) {
	return false, nil
}
