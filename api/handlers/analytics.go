package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	api_errors "github.com/customeros/dmarcstack/api/errors"
	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/models"
	"github.com/customeros/dmarcstack/internal/tracing"
)

type AnalyticsHandler struct {
	analytics interfaces.AnalyticsService
	now       clock
}

func NewAnalyticsHandler(analytics interfaces.AnalyticsService, now clock) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, now: now}
}

type GlobalStatsResponse struct {
	Window dto.Window      `json:"window"`
	Global dto.GlobalStats `json:"global"`
}

type DomainStatsResponse struct {
	Window  dto.Window        `json:"window"`
	Domains []dto.DomainStats `json:"domains"`
}

type TimeSeriesResponse struct {
	Window     dto.Window     `json:"window"`
	TimeSeries dto.TimeSeries `json:"timeSeries"`
}

type ThreatCountResponse struct {
	Window        dto.Window `json:"window"`
	ThreatIPCount int        `json:"threatIpCount"`
}

type ThreatsResponse struct {
	Window  dto.Window                   `json:"window"`
	Threats []*models.AggregateReportRow `json:"threats"`
}

type DomainRowsResponse struct {
	Window dto.Window                   `json:"window"`
	Domain *models.MonitoredDomain      `json:"domain"`
	Rows   []*models.AggregateReportRow `json:"rows"`
	Total  int64                        `json:"total"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

// startSpan also moves the request onto the span's context.
func (h *AnalyticsHandler) startSpan(c *gin.Context, operation string) opentracing.Span {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), operation)
	tracing.SetDefaultRestSpanTags(ctx, span)
	c.Request = c.Request.WithContext(ctx)
	return span
}

// Overview returns every dashboard aggregate for one window.
func (h *AnalyticsHandler) Overview() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := h.startSpan(c, "AnalyticsHandler.Overview")
		defer span.Finish()

		validation := api_errors.NewMultiErrors()
		window := parseWindow(c, h.now(), validation)
		granularity := parseGranularity(c, validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		overview, err := h.analytics.Overview(c.Request.Context(), window.Begin, window.End, granularity)
		if err != nil {
			respondError(c, span, err)
			return
		}
		overview.Window.Period = window.Period
		c.JSON(http.StatusOK, overview)
	}
}

func (h *AnalyticsHandler) GlobalStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := h.startSpan(c, "AnalyticsHandler.GlobalStats")
		defer span.Finish()

		validation := api_errors.NewMultiErrors()
		window := parseWindow(c, h.now(), validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		stats, err := h.analytics.GlobalStats(c.Request.Context(), window.Begin, window.End)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, GlobalStatsResponse{Window: window, Global: *stats})
	}
}

func (h *AnalyticsHandler) DomainStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := h.startSpan(c, "AnalyticsHandler.DomainStats")
		defer span.Finish()

		validation := api_errors.NewMultiErrors()
		window := parseWindow(c, h.now(), validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		domains, err := h.analytics.DomainStats(c.Request.Context(), window.Begin, window.End)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, DomainStatsResponse{Window: window, Domains: domains})
	}
}

func (h *AnalyticsHandler) TimeSeries() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := h.startSpan(c, "AnalyticsHandler.TimeSeries")
		defer span.Finish()

		validation := api_errors.NewMultiErrors()
		window := parseWindow(c, h.now(), validation)
		granularity := parseGranularity(c, validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		series, err := h.analytics.TimeSeries(c.Request.Context(), window.Begin, window.End, granularity)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, TimeSeriesResponse{Window: window, TimeSeries: *series})
	}
}

func (h *AnalyticsHandler) ThreatIPCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := h.startSpan(c, "AnalyticsHandler.ThreatIPCount")
		defer span.Finish()

		validation := api_errors.NewMultiErrors()
		window := parseWindow(c, h.now(), validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		count, err := h.analytics.ThreatIPCount(c.Request.Context(), window.Begin, window.End)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, ThreatCountResponse{Window: window, ThreatIPCount: count})
	}
}

// ActiveThreats lists unreviewed rows that failed both alignments, newest first.
func (h *AnalyticsHandler) ActiveThreats() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := h.startSpan(c, "AnalyticsHandler.ActiveThreats")
		defer span.Finish()

		validation := api_errors.NewMultiErrors()
		window := parseWindow(c, h.now(), validation)
		limit := parseLimit(c, validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		threats, err := h.analytics.ActiveThreats(c.Request.Context(), window.Begin, window.End, limit)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, ThreatsResponse{Window: window, Threats: threats})
	}
}

func (h *AnalyticsHandler) DomainRows() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := h.startSpan(c, "AnalyticsHandler.DomainRows")
		defer span.Finish()

		validation := api_errors.NewMultiErrors()
		domainID := parseID(c, validation)
		window := parseWindow(c, h.now(), validation)
		limit := parseLimit(c, validation)
		offset := parseOffset(c, validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		domain, rows, total, err := h.analytics.DomainRows(c.Request.Context(), domainID, window.Begin, window.End, limit, offset)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, DomainRowsResponse{
			Window: window,
			Domain: domain,
			Rows:   rows,
			Total:  total,
			Limit:  limit,
			Offset: offset,
		})
	}
}
