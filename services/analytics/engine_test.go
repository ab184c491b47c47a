package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/internal/models"
)

var (
	windowBegin = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

// cell is one day's group of rows for a domain; LastSeen sits inside the day.
func cell(domainID uint64, domain string, day int, count int64, spf, dkim bool) models.AggregateCell {
	bucket := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
	return models.AggregateCell{
		DomainID:     domainID,
		DomainName:   domain,
		Bucket:       bucket,
		SPFAligned:   spf,
		DKIMAligned:  dkim,
		MessageCount: count,
		RowCount:     1,
		LastSeen:     bucket.Add(6 * time.Hour),
	}
}

func TestPassPercentage(t *testing.T) {
	assert.Equal(t, 0.0, PassPercentage(0, 0))
	assert.Equal(t, 100.0, PassPercentage(5, 5))
	assert.Equal(t, 66.7, PassPercentage(2, 3))
	assert.Equal(t, 33.3, PassPercentage(1, 3))
	assert.Equal(t, 12.5, PassPercentage(1, 8))

	// ties go to the even neighbour
	assert.Equal(t, 6.2, PassPercentage(1, 16))
	assert.Equal(t, 18.8, PassPercentage(3, 16))
}

func TestGlobalStats(t *testing.T) {
	cells := []models.AggregateCell{
		cell(1, "a.com", 2, 10, true, true),
		cell(1, "a.com", 3, 5, true, false),
		cell(2, "b.com", 3, 3, false, true),
		cell(2, "b.com", 4, 2, false, false),
	}

	stats := GlobalStats(cells)

	assert.Equal(t, int64(20), stats.TotalVolume)
	assert.Equal(t, int64(13), stats.DKIMAlignedCount)
	assert.Equal(t, int64(15), stats.SPFAlignedCount)
	assert.Equal(t, int64(18), stats.DMARCPassCount)
	assert.Equal(t, 90.0, stats.PassPercentage)
}

func TestGlobalStats_Empty(t *testing.T) {
	stats := GlobalStats(nil)

	assert.Equal(t, int64(0), stats.TotalVolume)
	assert.Equal(t, 0.0, stats.PassPercentage)
}

func TestDomainStats_OrderAndThreats(t *testing.T) {
	reviewed := cell(2, "b.com", 5, 1, false, false)
	reviewed.IsReviewed = true
	grouped := cell(3, "alpha.com", 2, 10, false, false)
	grouped.RowCount = 3

	cells := []models.AggregateCell{
		cell(1, "zeta.com", 2, 12, true, true),
		cell(2, "b.com", 3, 4, false, false),
		cell(2, "b.com", 7, 5, true, false),
		reviewed,
		grouped,
	}

	stats := DomainStats(cells)
	require.Len(t, stats, 3)

	// alpha.com and b.com tie on volume and fall back to name order.
	assert.Equal(t, "zeta.com", stats[0].DomainName)
	assert.Equal(t, "alpha.com", stats[1].DomainName)
	assert.Equal(t, "b.com", stats[2].DomainName)

	b := stats[2]
	assert.Equal(t, int64(10), b.Total)
	assert.Equal(t, int64(5), b.DMARCPassCount)
	assert.Equal(t, 1, b.ActiveThreatCount)
	assert.Equal(t, time.Date(2024, 1, 7, 6, 0, 0, 0, time.UTC), b.LastSeen)
	assert.Equal(t, 50.0, b.PassPercentage)
	assert.Equal(t, 3, stats[1].ActiveThreatCount)
	assert.Equal(t, 0, stats[0].ActiveThreatCount)
}

func TestTimeSeries_IsRectangular(t *testing.T) {
	cells := []models.AggregateCell{
		cell(1, "a.com", 2, 10, true, true),
		cell(1, "a.com", 4, 1, false, false),
		cell(2, "b.com", 3, 7, true, false),
		cell(2, "b.com", 3, 1, false, true),
	}

	series := TimeSeries(cells, enum.GranularityDay)

	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04"}, series.Dates)
	require.Len(t, series.Series, 2)
	for _, line := range series.Series {
		assert.Len(t, line.Values, len(series.Dates))
	}
	assert.Equal(t, "a.com", series.Series[0].DomainName)
	assert.Equal(t, []int64{10, 0, 1}, series.Series[0].Values)
	assert.Equal(t, []int64{0, 8, 0}, series.Series[1].Values)
	assert.Equal(t, []int64{10, 8, 0}, series.Passed)
	assert.Equal(t, []int64{0, 0, 1}, series.Failed)
}

func TestTimeSeries_TopTenDomainsButFullAxis(t *testing.T) {
	var cells []models.AggregateCell
	for i := 1; i <= 12; i++ {
		cells = append(cells, cell(uint64(i), fmt.Sprintf("d%02d.com", i), 10, int64(100+i), true, true))
	}
	// Only the smallest domain has data on day 20.
	cells = append(cells, cell(1, "d01.com", 20, 1, true, true))

	series := TimeSeries(cells, enum.GranularityDay)

	require.Len(t, series.Series, TopSeriesDomains)
	assert.Equal(t, "d12.com", series.Series[0].DomainName)
	assert.Equal(t, []string{"2024-01-10", "2024-01-20"}, series.Dates)
	for _, line := range series.Series {
		assert.NotEqual(t, "d01.com", line.DomainName)
		assert.Equal(t, int64(0), line.Values[1])
	}
}

func TestTimeSeries_WeekAndMonthBuckets(t *testing.T) {
	cells := []models.AggregateCell{
		// 2024-01-01 is a Monday, 2024-01-07 a Sunday.
		cell(1, "a.com", 1, 1, true, true),
		cell(1, "a.com", 7, 2, true, true),
		cell(1, "a.com", 8, 4, true, true),
	}

	weekly := TimeSeries(cells, enum.GranularityWeek)
	assert.Equal(t, []string{"2024-01-01", "2024-01-08"}, weekly.Dates)
	assert.Equal(t, []int64{3, 4}, weekly.Series[0].Values)

	monthly := TimeSeries(cells, enum.GranularityMonth)
	assert.Equal(t, []string{"2024-01"}, monthly.Dates)
	assert.Equal(t, []int64{7}, monthly.Series[0].Values)
}

func TestTimeSeries_Empty(t *testing.T) {
	series := TimeSeries(nil, enum.GranularityDay)

	assert.Empty(t, series.Dates)
	assert.Empty(t, series.Series)
	assert.NotNil(t, series.Dates)
}

func TestOverview_IsDeterministic(t *testing.T) {
	cells := []models.AggregateCell{
		cell(1, "a.com", 2, 10, true, true),
		cell(2, "b.com", 2, 10, false, false),
		cell(3, "c.com", 3, 10, true, false),
	}

	first := Overview(cells, windowBegin, windowEnd, enum.GranularityDay, 1)
	second := Overview(cells, windowBegin, windowEnd, enum.GranularityDay, 1)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, []string{
		first.Domains[0].DomainName, first.Domains[1].DomainName, first.Domains[2].DomainName,
	})
	assert.Equal(t, 1, first.ThreatIPCount)
	assert.Equal(t, windowBegin, first.Window.Begin)
}

func TestBucketStart(t *testing.T) {
	wednesday := time.Date(2024, 1, 10, 15, 30, 0, 0, time.FixedZone("X", -5*3600))

	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), BucketStart(wednesday, enum.GranularityDay))
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), BucketStart(wednesday, enum.GranularityWeek))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), BucketStart(wednesday, enum.GranularityMonth))

	sunday := time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), BucketStart(sunday, enum.GranularityWeek))
}

func TestPeriodWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	begin, end, ok := PeriodWindow("", now)
	require.True(t, ok)
	assert.Equal(t, now, end)
	assert.Equal(t, now.AddDate(0, 0, -30), begin)

	begin, _, ok = PeriodWindow("7D", now)
	require.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, -7), begin)

	begin, _, ok = PeriodWindow("all", now)
	require.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, -3650), begin)

	_, _, ok = PeriodWindow("2w", now)
	assert.False(t, ok)
}
