package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	api_errors "github.com/customeros/dmarcstack/api/errors"
	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/models"
	"github.com/customeros/dmarcstack/internal/tracing"
	"github.com/customeros/dmarcstack/services/threat"
)

type RowsHandler struct {
	analytics interfaces.AnalyticsService
}

func NewRowsHandler(analytics interfaces.AnalyticsService) *RowsHandler {
	return &RowsHandler{analytics: analytics}
}

type RowDetailResponse struct {
	Row            *models.AggregateReportRow `json:"row"`
	Classification threat.Classification      `json:"classification"`
}

type ReviewResponse struct {
	ID         uint64 `json:"id"`
	IsReviewed bool   `json:"isReviewed"`
}

// GetRow returns one row together with its threat classification.
func (h *RowsHandler) GetRow() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RowsHandler.GetRow")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		validation := api_errors.NewMultiErrors()
		id := parseID(c, validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		row, err := h.analytics.GetRow(ctx, id)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, RowDetailResponse{Row: row, Classification: threat.Classify(row)})
	}
}

func (h *RowsHandler) ToggleReviewed() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RowsHandler.ToggleReviewed")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		validation := api_errors.NewMultiErrors()
		id := parseID(c, validation)
		if validation.HasErrors() {
			respondValidation(c, span, validation)
			return
		}

		reviewed, err := h.analytics.ToggleReviewed(ctx, id)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, ReviewResponse{ID: id, IsReviewed: reviewed})
	}
}
