package analytics

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcstack/internal/enum"
	internal_errors "github.com/customeros/dmarcstack/internal/errors"
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

type rowStore struct {
	domains       map[uint64]*models.MonitoredDomain
	rows          []*models.AggregateReportRow
	granularities []enum.Granularity
}

func (s *rowStore) GetOrCreate(_ context.Context, organizationID uint64, domainName string) (*models.MonitoredDomain, error) {
	for _, d := range s.domains {
		if d.DomainName == domainName {
			return d, nil
		}
	}
	d := &models.MonitoredDomain{ID: uint64(len(s.domains) + 1), OrganizationID: organizationID, DomainName: domainName}
	s.domains[d.ID] = d
	return d, nil
}

func (s *rowStore) GetByID(_ context.Context, id uint64) (*models.MonitoredDomain, error) {
	return s.domains[id], nil
}

func (s *rowStore) List(_ context.Context) ([]*models.MonitoredDomain, error) {
	var out []*models.MonitoredDomain
	for _, d := range s.domains {
		out = append(out, d)
	}
	return out, nil
}

func (s *rowStore) ExistsByReportID(_ context.Context, reportID string) (bool, error) {
	return false, nil
}

func (s *rowStore) SaveReport(_ context.Context, _ *models.IngestedReport, rows []*models.AggregateReportRow) error {
	s.rows = append(s.rows, rows...)
	return nil
}

// ListAggregateCells groups like the SQL query: window filter, bucket, then flags.
func (s *rowStore) ListAggregateCells(_ context.Context, begin, end time.Time, granularity enum.Granularity) ([]models.AggregateCell, error) {
	s.granularities = append(s.granularities, granularity)

	type key struct {
		domainID            uint64
		bucket              time.Time
		spf, dkim, reviewed bool
	}
	groups := map[key]*models.AggregateCell{}
	var order []key
	for _, r := range s.rows {
		if r.DateBegin.Before(begin) || !r.DateBegin.Before(end) {
			continue
		}
		k := key{r.DomainID, BucketStart(r.DateBegin, granularity), r.SPFAligned, r.DKIMAligned, r.IsReviewed}
		c, ok := groups[k]
		if !ok {
			c = &models.AggregateCell{
				DomainID:    r.DomainID,
				DomainName:  s.domains[r.DomainID].DomainName,
				Bucket:      k.bucket,
				SPFAligned:  r.SPFAligned,
				DKIMAligned: r.DKIMAligned,
				IsReviewed:  r.IsReviewed,
			}
			groups[k] = c
			order = append(order, k)
		}
		c.MessageCount += r.MessageCount
		c.RowCount++
		if r.DateBegin.After(c.LastSeen) {
			c.LastSeen = r.DateBegin
		}
	}
	out := make([]models.AggregateCell, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out, nil
}

func (s *rowStore) CountThreatIPs(_ context.Context, begin, end time.Time) (int, error) {
	ips := map[string]struct{}{}
	for _, r := range s.rows {
		if r.IsActiveThreat() && !r.DateBegin.Before(begin) && r.DateBegin.Before(end) {
			ips[r.SourceIP] = struct{}{}
		}
	}
	return len(ips), nil
}

func (s *rowStore) GetRow(_ context.Context, id uint64) (*models.AggregateReportRow, error) {
	for _, r := range s.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (s *rowStore) ListDomainRows(_ context.Context, domainID uint64, begin, end time.Time, limit, offset int) ([]*models.AggregateReportRow, int64, error) {
	var matched []*models.AggregateReportRow
	for _, r := range s.rows {
		if r.DomainID == domainID && !r.DateBegin.Before(begin) && r.DateBegin.Before(end) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].DateBegin.After(matched[j].DateBegin) })
	total := int64(len(matched))
	if offset >= len(matched) {
		return []*models.AggregateReportRow{}, total, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *rowStore) ListActiveThreats(_ context.Context, begin, end time.Time, limit int) ([]*models.AggregateReportRow, error) {
	var out []*models.AggregateReportRow
	for _, r := range s.rows {
		if r.IsActiveThreat() && !r.DateBegin.Before(begin) && r.DateBegin.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *rowStore) ToggleReviewed(_ context.Context, id uint64) (bool, error) {
	for _, r := range s.rows {
		if r.ID == id {
			r.IsReviewed = !r.IsReviewed
			return r.IsReviewed, nil
		}
	}
	return false, internal_errors.ErrRowNotFound
}

func newRowStore() *rowStore {
	store := &rowStore{domains: map[uint64]*models.MonitoredDomain{}}
	a, _ := store.GetOrCreate(context.Background(), 1, "a.com")
	b, _ := store.GetOrCreate(context.Background(), 1, "b.com")
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	store.rows = []*models.AggregateReportRow{
		{ID: 1, DomainID: a.ID, DateBegin: day(2), SourceIP: "192.0.2.1", MessageCount: 10, SPFAligned: true, DKIMAligned: true},
		{ID: 2, DomainID: a.ID, DateBegin: day(3), SourceIP: "198.51.100.7", MessageCount: 2},
		{ID: 3, DomainID: b.ID, DateBegin: day(4), SourceIP: "192.0.2.2", MessageCount: 4, DKIMAligned: true},
	}
	return store
}

func TestAnalyticsService_ThreatToggleScenario(t *testing.T) {
	store := newRowStore()
	service := NewAnalyticsService(getLogger(), store, store)
	ctx := context.Background()

	count, err := service.ThreatIPCount(ctx, windowBegin, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	reviewed, err := service.ToggleReviewed(ctx, 2)
	require.NoError(t, err)
	assert.True(t, reviewed)

	count, err = service.ThreatIPCount(ctx, windowBegin, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	domains, err := service.DomainStats(ctx, windowBegin, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 0, domains[0].ActiveThreatCount)

	reviewed, err = service.ToggleReviewed(ctx, 2)
	require.NoError(t, err)
	assert.False(t, reviewed)

	count, err = service.ThreatIPCount(ctx, windowBegin, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAnalyticsService_Overview(t *testing.T) {
	store := newRowStore()
	service := NewAnalyticsService(getLogger(), store, store)

	overview, err := service.Overview(context.Background(), windowBegin, windowEnd, enum.GranularityDay)
	require.NoError(t, err)

	assert.Equal(t, int64(16), overview.Global.TotalVolume)
	assert.Equal(t, int64(14), overview.Global.DMARCPassCount)
	assert.Equal(t, 87.5, overview.Global.PassPercentage)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04"}, overview.TimeSeries.Dates)
	assert.Equal(t, "a.com", overview.Domains[0].DomainName)
	assert.Equal(t, 1, overview.ThreatIPCount)
}

func TestAnalyticsService_InvalidWindow(t *testing.T) {
	store := newRowStore()
	service := NewAnalyticsService(getLogger(), store, store)

	_, err := service.GlobalStats(context.Background(), windowEnd, windowBegin)
	assert.ErrorIs(t, err, internal_errors.ErrInvalidWindow)

	_, err = service.TimeSeries(context.Background(), windowBegin, windowBegin, enum.GranularityDay)
	assert.ErrorIs(t, err, internal_errors.ErrInvalidWindow)
}

func TestAnalyticsService_RowsAndDomains(t *testing.T) {
	store := newRowStore()
	service := NewAnalyticsService(getLogger(), store, store)
	ctx := context.Background()

	row, err := service.GetRow(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.2", row.SourceIP)

	_, err = service.GetRow(ctx, 99)
	assert.ErrorIs(t, err, internal_errors.ErrRowNotFound)

	_, err = service.ToggleReviewed(ctx, 99)
	assert.ErrorIs(t, err, internal_errors.ErrRowNotFound)

	domain, rows, total, err := service.DomainRows(ctx, 1, windowBegin, windowEnd, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "a.com", domain.DomainName)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(2), rows[0].ID)

	_, _, _, err = service.DomainRows(ctx, 42, windowBegin, windowEnd, 10, 0)
	assert.ErrorIs(t, err, internal_errors.ErrDomainNotFound)

	threats, err := service.ActiveThreats(ctx, windowBegin, windowEnd, 10)
	require.NoError(t, err)
	require.Len(t, threats, 1)
	assert.Equal(t, uint64(2), threats[0].ID)
}

func TestAnalyticsService_ThreatIPsAreDistinctAcrossDomains(t *testing.T) {
	store := newRowStore()
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	store.rows = append(store.rows,
		&models.AggregateReportRow{ID: 4, DomainID: 2, DateBegin: day, SourceIP: "198.51.100.7", MessageCount: 1},
		&models.AggregateReportRow{ID: 5, DomainID: 2, DateBegin: day, SourceIP: "203.0.113.9", MessageCount: 1, IsReviewed: true},
	)
	service := NewAnalyticsService(getLogger(), store, store)

	count, err := service.ThreatIPCount(context.Background(), windowBegin, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = service.ThreatIPCount(context.Background(), windowEnd, windowBegin)
	assert.ErrorIs(t, err, internal_errors.ErrInvalidWindow)
}

func TestAnalyticsService_SummariesUseCoarseBuckets(t *testing.T) {
	store := newRowStore()
	service := NewAnalyticsService(getLogger(), store, store)
	ctx := context.Background()

	global, err := service.GlobalStats(ctx, windowBegin, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(16), global.TotalVolume)

	domains, err := service.DomainStats(ctx, windowBegin, windowEnd)
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), domains[0].LastSeen)

	series, err := service.TimeSeries(ctx, windowBegin, windowEnd, enum.GranularityWeek)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01"}, series.Dates)

	assert.Equal(t, []enum.Granularity{enum.GranularityMonth, enum.GranularityMonth, enum.GranularityWeek}, store.granularities)
}
