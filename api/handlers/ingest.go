package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	api_errors "github.com/customeros/dmarcstack/api/errors"
	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/interfaces"
	internal_errors "github.com/customeros/dmarcstack/internal/errors"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/tracing"
	"github.com/customeros/dmarcstack/services/source"
)

type IngestHandler struct {
	log            logger.Logger
	ingestion      interfaces.IngestionService
	maxBodyReports int
	maxBodyBytes   int64
}

func NewIngestHandler(log logger.Logger, ingestion interfaces.IngestionService, maxBodyReports int, maxBodyBytes int64) *IngestHandler {
	return &IngestHandler{
		log:            log,
		ingestion:      ingestion,
		maxBodyReports: maxBodyReports,
		maxBodyBytes:   maxBodyBytes,
	}
}

// Ingest runs the pipeline on the reports in the body and returns the run
// summary. Partial results are returned alongside a store failure.
func (h *IngestHandler) Ingest() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "IngestHandler.Ingest")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		if h.maxBodyBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
		}
		reports, err := source.DecodeReports(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				tracing.TraceErr(span, err)
				c.JSON(http.StatusRequestEntityTooLarge, api_errors.NewErrorResponse("Request body too large"))
				return
			}
			respondError(c, span, errors.Wrap(internal_errors.ErrInvalidInput, err.Error()))
			return
		}
		if len(reports) == 0 {
			respondError(c, span, errors.Wrap(internal_errors.ErrInvalidInput, "no reports in body"))
			return
		}
		if h.maxBodyReports > 0 && len(reports) > h.maxBodyReports {
			tracing.TraceErr(span, errors.Errorf("%d reports over limit %d", len(reports), h.maxBodyReports))
			c.JSON(http.StatusRequestEntityTooLarge, api_errors.NewErrorResponse("Too many reports in one request"))
			return
		}
		span.LogKV("reports", len(reports))

		result, err := h.ingestion.Run(ctx, reports)
		if err != nil {
			if result != nil && !errors.Is(err, internal_errors.ErrIngestionInProgress) {
				tracing.TraceErr(span, err)
				h.log.Errorf("Ingest request stopped early: %v", err)
				c.JSON(http.StatusInternalServerError, IngestFailureResponse{
					ErrorResponse: api_errors.NewErrorResponse("Ingestion stopped early"),
					Result:        result,
				})
				return
			}
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type IngestFailureResponse struct {
	api_errors.ErrorResponse
	Result *dto.IngestionResult `json:"result"`
}
