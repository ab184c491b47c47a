package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	api_errors "github.com/customeros/dmarcstack/api/errors"
	internal_errors "github.com/customeros/dmarcstack/internal/errors"
	"github.com/customeros/dmarcstack/internal/tracing"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, internal_errors.ErrInvalidInput), errors.Is(err, internal_errors.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, internal_errors.ErrDomainNotFound), errors.Is(err, internal_errors.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, internal_errors.ErrIngestionInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError hides internal error text behind a generic message on 500.
func respondError(c *gin.Context, span opentracing.Span, err error) {
	tracing.TraceErr(span, err)
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal error"
	}
	c.JSON(status, api_errors.NewErrorResponse(message))
}

func respondValidation(c *gin.Context, span opentracing.Span, validation *api_errors.MultiErrors) {
	tracing.TraceErr(span, validation)
	response := api_errors.NewErrorResponse("Invalid request")
	response.Fields = validation.Fields()
	c.JSON(http.StatusBadRequest, response)
}
