package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/internal/models"
)

// TopSeriesDomains bounds the number of lines in a time series.
const TopSeriesDomains = 10

// Every function here is a pure fold over aggregate cells that the store has
// already restricted to the window.

// PassPercentage is pass/total*100 rounded half to even to one decimal, 0 for
// an empty total.
func PassPercentage(pass, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.RoundToEven(float64(pass)/float64(total)*100*10) / 10
}

func GlobalStats(cells []models.AggregateCell) dto.GlobalStats {
	var stats dto.GlobalStats
	for _, c := range cells {
		stats.TotalVolume += c.MessageCount
		if c.DKIMAligned {
			stats.DKIMAlignedCount += c.MessageCount
		}
		if c.SPFAligned {
			stats.SPFAlignedCount += c.MessageCount
		}
		if c.DMARCPass() {
			stats.DMARCPassCount += c.MessageCount
		}
	}
	stats.PassPercentage = PassPercentage(stats.DMARCPassCount, stats.TotalVolume)
	return stats
}

// DomainStats is ordered by total volume descending, then domain name.
func DomainStats(cells []models.AggregateCell) []dto.DomainStats {
	byDomain := make(map[uint64]*dto.DomainStats)
	for _, c := range cells {
		stats, ok := byDomain[c.DomainID]
		if !ok {
			stats = &dto.DomainStats{DomainID: c.DomainID, DomainName: c.DomainName}
			byDomain[c.DomainID] = stats
		}
		stats.Total += c.MessageCount
		if c.DMARCPass() {
			stats.DMARCPassCount += c.MessageCount
		}
		if c.SPFAligned {
			stats.SPFPassCount += c.MessageCount
		}
		if c.DKIMAligned {
			stats.DKIMPassCount += c.MessageCount
		}
		if c.IsActiveThreat() {
			stats.ActiveThreatCount += int(c.RowCount)
		}
		if c.LastSeen.After(stats.LastSeen) {
			stats.LastSeen = c.LastSeen
		}
	}

	out := make([]dto.DomainStats, 0, len(byDomain))
	for _, stats := range byDomain {
		stats.PassPercentage = PassPercentage(stats.DMARCPassCount, stats.Total)
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].DomainName != out[j].DomainName {
			return out[i].DomainName < out[j].DomainName
		}
		return out[i].DomainID < out[j].DomainID
	})
	return out
}

// TimeSeries buckets volume for the top domains. The date axis holds every
// bucket that has data in the window; every series is dense over that axis.
func TimeSeries(cells []models.AggregateCell, granularity enum.Granularity) dto.TimeSeries {
	axis := make(map[time.Time]struct{})
	for _, c := range cells {
		axis[BucketStart(c.Bucket, granularity)] = struct{}{}
	}
	buckets := make([]time.Time, 0, len(axis))
	for bucket := range axis {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	position := make(map[time.Time]int, len(buckets))
	dates := make([]string, len(buckets))
	for i, bucket := range buckets {
		position[bucket] = i
		dates[i] = BucketLabel(bucket, granularity)
	}

	top := DomainStats(cells)
	if len(top) > TopSeriesDomains {
		top = top[:TopSeriesDomains]
	}
	seriesIndex := make(map[uint64]int, len(top))
	series := make([]dto.DomainSeries, len(top))
	for i, stats := range top {
		seriesIndex[stats.DomainID] = i
		series[i] = dto.DomainSeries{
			DomainID:   stats.DomainID,
			DomainName: stats.DomainName,
			Values:     make([]int64, len(buckets)),
		}
	}

	passed := make([]int64, len(buckets))
	failed := make([]int64, len(buckets))
	for _, c := range cells {
		slot := position[BucketStart(c.Bucket, granularity)]
		if c.DMARCPass() {
			passed[slot] += c.MessageCount
		} else {
			failed[slot] += c.MessageCount
		}
		if i, ok := seriesIndex[c.DomainID]; ok {
			series[i].Values[slot] += c.MessageCount
		}
	}

	return dto.TimeSeries{
		Granularity: granularity.String(),
		Dates:       dates,
		Series:      series,
		Passed:      passed,
		Failed:      failed,
	}
}

// Overview combines the folds over one set of cells bucketed at granularity.
func Overview(cells []models.AggregateCell, begin, end time.Time, granularity enum.Granularity, threatIPs int) dto.Overview {
	return dto.Overview{
		Window:        dto.Window{Begin: begin, End: end},
		Global:        GlobalStats(cells),
		Domains:       DomainStats(cells),
		TimeSeries:    TimeSeries(cells, granularity),
		ThreatIPCount: threatIPs,
	}
}
