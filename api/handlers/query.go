package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	api_errors "github.com/customeros/dmarcstack/api/errors"
	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/services/analytics"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// parseWindow reads either begin+end (RFC 3339) or a period preset.
// An explicit range wins over period.
func parseWindow(c *gin.Context, now time.Time, validation *api_errors.MultiErrors) dto.Window {
	beginRaw, endRaw := strings.TrimSpace(c.Query("begin")), strings.TrimSpace(c.Query("end"))
	if beginRaw != "" || endRaw != "" {
		begin, beginErr := time.Parse(time.RFC3339, beginRaw)
		if beginErr != nil {
			validation.Add("begin", "must be an RFC 3339 timestamp", beginErr)
		}
		end, endErr := time.Parse(time.RFC3339, endRaw)
		if endErr != nil {
			validation.Add("end", "must be an RFC 3339 timestamp", endErr)
		}
		if beginErr == nil && endErr == nil && !begin.Before(end) {
			validation.Add("end", "must be after begin", nil)
		}
		return dto.Window{Begin: begin.UTC(), End: end.UTC()}
	}

	period := strings.ToLower(strings.TrimSpace(c.Query("period")))
	if period == "" {
		period = analytics.DefaultPeriod
	}
	begin, end, ok := analytics.PeriodWindow(period, now)
	if !ok {
		validation.Add("period", "must be one of 7d, 30d, 90d, all", nil)
	}
	return dto.Window{Begin: begin, End: end, Period: period}
}

func parseGranularity(c *gin.Context, validation *api_errors.MultiErrors) enum.Granularity {
	granularity, ok := enum.ParseGranularity(c.Query("granularity"))
	if !ok {
		validation.Add("granularity", "must be one of day, week, month", nil)
	}
	return granularity
}

func parseLimit(c *gin.Context, validation *api_errors.MultiErrors) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultPageSize
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxPageSize {
		validation.Add("limit", "must be between 1 and "+strconv.Itoa(maxPageSize), err)
		return defaultPageSize
	}
	return limit
}

func parseOffset(c *gin.Context, validation *api_errors.MultiErrors) int {
	raw := c.Query("offset")
	if raw == "" {
		return 0
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		validation.Add("offset", "must be a non-negative integer", err)
		return 0
	}
	return offset
}

func parseID(c *gin.Context, validation *api_errors.MultiErrors) uint64 {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		validation.Add("id", "must be a positive integer", err)
	}
	return id
}
