package worker

import (
	"context"

	appcheckout "github.com/facebouk/salepoint/internal/application/checkout"
	domcapture "github.com/facebouk/salepoint/internal/domain/capture"
	domoutbox "github.com/facebouk/salepoint/internal/domain/outbox"
	"github.com/facebouk/salepoint/internal/observability"
	"github.com/facebouk/salepoint/internal/observability/logctx"
	workerpresentation "github.com/facebouk/salepoint/internal/presentation/worker"
	"go.opentelemetry.io/otel/trace"
)

const workerService = "checkout-worker"

// Worker feeds normalized capture results from the bus into the payment
// controller.
type Worker struct {
	subscriber domoutbox.Subscriber
	controller *appcheckout.Controller
	log        observability.Logger
}

func New(subscriber domoutbox.Subscriber, controller *appcheckout.Controller, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		subscriber: subscriber,
		controller: controller,
		log:        logger.With(observability.F("service", workerService)),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.controller == nil {
		return
	}
	w.subscriber.Subscribe(domcapture.SucceededEvent{}.EventName(), w.handleSucceeded)
	w.subscriber.Subscribe(domcapture.FailedEvent{}.EventName(), w.handleFailed)
	w.subscriber.Subscribe(domcapture.CancelledEvent{}.EventName(), w.handleCancelled)
}

// eventContext scopes the handler's logger to this event delivery.
func (w *Worker) eventContext(ctx context.Context, eventName string) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	return workerpresentation.WithEventContext(ctx, w.log, nil, sc.TraceID(), sc.SpanID(), map[string]string{
		"event": eventName,
	})
}

func (w *Worker) handleSucceeded(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcapture.SucceededEvent)
	if !ok {
		return nil
	}
	ctx = w.eventContext(ctx, e.EventName())
	if err := w.controller.HandleCaptureSucceeded(ctx, evt); err != nil {
		logctx.FromOr(ctx, w.log).Warn("capture_succeeded_handling_failed",
			observability.F("session", uint64(evt.Session)),
			observability.F("error", err.Error()),
		)
		return err
	}
	return nil
}

func (w *Worker) handleFailed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcapture.FailedEvent)
	if !ok {
		return nil
	}
	return w.controller.HandleCaptureFailed(w.eventContext(ctx, e.EventName()), evt)
}

func (w *Worker) handleCancelled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcapture.CancelledEvent)
	if !ok {
		return nil
	}
	return w.controller.HandleCaptureCancelled(w.eventContext(ctx, e.EventName()), evt)
}
