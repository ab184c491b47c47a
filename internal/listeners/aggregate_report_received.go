package listeners

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/interfaces"
	internal_errors "github.com/customeros/dmarcstack/internal/errors"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/tracing"
	"github.com/customeros/dmarcstack/services/events"
)

const busyRetryWindow = 2 * time.Minute

type AggregateReportReceivedListener struct {
	events.BaseEventListener
	ingestion  interfaces.IngestionService
	newBackOff func() backoff.BackOff
}

func NewAggregateReportReceivedListener(log logger.Logger, ingestion interfaces.IngestionService) interfaces.EventListener {
	return &AggregateReportReceivedListener{
		BaseEventListener: events.NewBaseEventListener(
			log,
			events.GetEventType[dto.AggregateReportReceived](),
			events.QueueAggregateReports,
		),
		ingestion: ingestion,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = busyRetryWindow
			return bo
		},
	}
}

// Handle runs the pipeline on the reports carried by the event. A run already
// in progress is waited out; any other failure rejects the message.
func (l *AggregateReportReceivedListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AggregateReportReceivedListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, validatedEvent.Event.Id)

	payload, err := events.DecodeEventData[dto.AggregateReportReceived](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.LogKV("source", payload.Source, "reports", len(payload.Reports))

	var result *dto.IngestionResult
	var runErr error
	operation := func() error {
		result, runErr = l.ingestion.Run(ctx, payload.Reports)
		if errors.Is(runErr, internal_errors.ErrIngestionInProgress) {
			return runErr
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		l.Logger().Infof("Ingestion busy, retrying event %s in %s", validatedEvent.Event.Id, wait)
	}
	if err = backoff.RetryNotify(operation, l.newBackOff(), notify); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "ingestion stayed busy")
	}
	if runErr != nil {
		tracing.TraceErr(span, runErr)
		return runErr
	}

	tracing.LogObjectAsJson(span, "result", result)
	return nil
}
