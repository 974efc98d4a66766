package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/facebouk/salepoint/internal/application"
	appsettlement "github.com/facebouk/salepoint/internal/application/settlement"
	"github.com/facebouk/salepoint/internal/domain/amount"
	domcapture "github.com/facebouk/salepoint/internal/domain/capture"
	domcheckout "github.com/facebouk/salepoint/internal/domain/checkout"
	dommerchant "github.com/facebouk/salepoint/internal/domain/merchant"
	domsettle "github.com/facebouk/salepoint/internal/domain/settlement"
	"github.com/facebouk/salepoint/internal/observability"
	"github.com/facebouk/salepoint/internal/observability/logctx"
	"github.com/facebouk/salepoint/internal/presentation/status"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	controllerService = "payment-controller"
	spanPrefix        = "UC."

	useCaseSelectMethod = "checkout.select_method"
	useCaseCaptureEvent = "checkout.capture_event"
	useCaseAcknowledge  = "checkout.acknowledge"

	titleSuccess       = "Payment Successful"
	titlePaymentFailed = "Payment Failed"
	titleCaptureFailed = "Capture Failed"
)

// Bridge is the controller's view of the capture bridge.
type Bridge interface {
	OpenBiometric(ctx context.Context, mode domcapture.Mode, meta domcapture.UserMetadata) (domcapture.SessionID, error)
	OpenScanner(ctx context.Context) (domcapture.SessionID, error)
	CloseActive(ctx context.Context) error
	SwitchToAuthenticate(ctx context.Context) (domcapture.SessionID, error)
}

// Submitter issues exactly one settlement submission per call.
type Submitter = application.UseCase[appsettlement.SubmitInput, *appsettlement.SubmitResult]

// ContextResolver resolves and invalidates the session's merchant context.
type ContextResolver interface {
	Resolve(ctx context.Context, sessionToken string) (dommerchant.Context, error)
	Invalidate(ctx context.Context, sessionToken string) error
}

// Options fixes the per-terminal policies of the controller.
type Options struct {
	SessionToken string
	// BiometricMode selects enroll or authenticate for face captures.
	BiometricMode domcapture.Mode
	Metadata      domcapture.UserMetadata
	// ClearAmountOnFailure decides whether a failed settlement clears the
	// entered amount. Success always clears.
	ClearAmountOnFailure bool
}

// Snapshot is the externally visible controller state.
type Snapshot struct {
	Phase         domcheckout.Phase
	Method        domcapture.Method
	Amount        string
	FailureReason string
	SwitchOffered bool
	Notice        *status.Notice
}

// Controller is the payment orchestration state machine: amount entry →
// capture → submission → presentation → reset. All state mutation is
// serialized on one mutex; the mutex is released across the settlement
// await, where the submitting state itself is the guard against a second
// submission for the same capture.
type Controller struct {
	mu      sync.Mutex
	attempt *domcheckout.Attempt
	amount  *amount.Editor

	merchant      dommerchant.Context
	switchOffered bool

	bridge    Bridge
	submitter Submitter
	resolver  ContextResolver
	presenter *status.Presenter
	opts      Options

	tel        observability.Observability
	log        observability.Logger
	reqCounter observability.Counter
	durHist    observability.Histogram
}

func NewController(
	bridge Bridge,
	submitter Submitter,
	resolver ContextResolver,
	presenter *status.Presenter,
	opts Options,
	tel observability.Observability,
) *Controller {
	if tel == nil {
		tel = observability.Nop()
	}
	if opts.BiometricMode == "" {
		opts.BiometricMode = domcapture.ModeAuthenticate
	}
	return &Controller{
		attempt:    domcheckout.NewAttempt(),
		amount:     amount.NewEditor(),
		bridge:     bridge,
		submitter:  submitter,
		resolver:   resolver,
		presenter:  presenter,
		opts:       opts,
		tel:        tel,
		log:        tel.Logger().With(observability.F("service", controllerService)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
		durHist:    tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// PressKey applies one keypad press to the amount. Presses while a
// submission is in flight or a result is showing are dropped; amount
// edits are only meaningful before a capture is confirmed.
func (c *Controller) PressKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch phase := c.attempt.Phase(); phase {
	case domcheckout.PhaseSubmitting, domcheckout.PhasePresenting:
		return
	default:
	}

	switch key {
	case ".":
		c.amount.AppendDecimal()
	case "delete":
		c.amount.DeleteLast()
	case "clear":
		c.amount.Clear()
	default:
		if len(key) == 1 {
			c.amount.AppendDigit(key[0])
		}
	}
}

// SelectFace begins a biometric capture. The amount guard runs before the
// subsystem opens: opening the widget is costly and user-visible, so a
// zero amount never gets that far.
func (c *Controller) SelectFace(ctx context.Context) error {
	return c.selectMethod(ctx, domcapture.MethodFace)
}

// SelectCode begins a code-scan capture. No amount guard: the scanned
// payload supplies the amount itself.
func (c *Controller) SelectCode(ctx context.Context) error {
	return c.selectMethod(ctx, domcapture.MethodCode)
}

func (c *Controller) selectMethod(ctx context.Context, method domcapture.Method) (err error) {
	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("use_case", useCaseSelectMethod),
		observability.F("method", string(method)),
	)
	ctx, span := c.tel.Tracer().Start(ctx, spanPrefix+"SelectMethod",
		attribute.String("use_case", useCaseSelectMethod),
		attribute.String("capture.method", string(method)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()
		c.count(useCaseSelectMethod, outcome, start)
		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", statusText),
		)
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt.Phase() != domcheckout.PhaseIdle {
		outcome, statusText = "error", "NOT_IDLE"
		return domcheckout.ErrInvalidStateTransition
	}
	if method == domcapture.MethodFace && !c.amount.IsPositive() {
		outcome, statusText = "error", "AMOUNT_REQUIRED"
		return domcheckout.ErrAmountRequired
	}

	if c.merchant.IsZero() {
		mc, resolveErr := c.resolver.Resolve(ctx, c.opts.SessionToken)
		if resolveErr != nil {
			outcome, statusText = "error", "MERCHANT_CONTEXT_FAILED"
			return resolveErr
		}
		c.merchant = mc
	}

	var session domcapture.SessionID
	if method == domcapture.MethodFace {
		session, err = c.bridge.OpenBiometric(ctx, c.opts.BiometricMode, c.opts.Metadata)
	} else {
		session, err = c.bridge.OpenScanner(ctx)
	}
	if err != nil {
		outcome, statusText = "error", "CAPTURE_OPEN_FAILED"
		return err
	}

	if err = c.attempt.MethodSelected(method, session); err != nil {
		outcome, statusText = "error", "STATE_TRANSITION_FAILED"
		return err
	}
	c.switchOffered = false
	return nil
}

// CancelCapture closes the open capture subsystem. The state reset rides
// the resulting cancellation event.
func (c *Controller) CancelCapture(ctx context.Context) error {
	return c.bridge.CloseActive(ctx)
}

// SwitchToAuthenticate accepts the already-enrolled offer and reopens the
// biometric subsystem in authentication mode.
func (c *Controller) SwitchToAuthenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.switchOffered || c.attempt.Phase() != domcheckout.PhaseAwaitingCapture {
		return domcheckout.ErrInvalidStateTransition
	}
	session, err := c.bridge.SwitchToAuthenticate(ctx)
	if err != nil {
		return err
	}
	c.attempt.Session = session
	c.attempt.FailureReason = ""
	c.switchOffered = false
	return nil
}

// Acknowledge dismisses the visible result. The presenter hides first,
// then runs the reset exactly once.
func (c *Controller) Acknowledge(ctx context.Context) error {
	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("use_case", useCaseAcknowledge),
	)
	start := time.Now()
	if err := c.presenter.Acknowledge(); err != nil {
		c.count(useCaseAcknowledge, "error", start)
		return err
	}
	c.count(useCaseAcknowledge, "success", start)
	logger.Info("use_case_done", observability.F("outcome", "success"))
	return nil
}

// Logout invalidates the cached merchant context for the session.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.merchant = dommerchant.Context{}
	c.mu.Unlock()
	return c.resolver.Invalidate(ctx, c.opts.SessionToken)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Phase:         c.attempt.Phase(),
		Method:        c.attempt.Method,
		Amount:        c.amount.Value(),
		FailureReason: c.attempt.FailureReason,
		SwitchOffered: c.switchOffered,
	}
	c.mu.Unlock()

	if notice, visible := c.presenter.Snapshot(); visible {
		snap.Notice = &notice
	}
	return snap
}

// HandleCaptureSucceeded drives the capture → submission → presentation
// leg. The transition into submitting happens under the lock, so a
// duplicate succeeded event for the same capture finds the attempt
// already submitting and is rejected; the settlement endpoint is hit
// exactly once per confirmed capture.
func (c *Controller) HandleCaptureSucceeded(ctx context.Context, evt domcapture.SucceededEvent) (err error) {
	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("use_case", useCaseCaptureEvent),
		observability.F("event", evt.EventName()),
		observability.F("session", uint64(evt.Session)),
	)
	ctx, span := c.tel.Tracer().Start(ctx, spanPrefix+"CaptureSucceeded",
		attribute.String("use_case", useCaseCaptureEvent),
		attribute.String("capture.method", string(evt.Method)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()
		c.count(useCaseCaptureEvent, outcome, start)
		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", statusText),
		)
	}()

	c.mu.Lock()
	if evt.Session != c.attempt.Session {
		c.mu.Unlock()
		outcome, statusText = "ignored", "SESSION_MISMATCH"
		logger.Warn("capture_event_session_mismatch")
		return nil
	}
	if err = c.attempt.CaptureSucceeded(); err != nil {
		c.mu.Unlock()
		outcome, statusText = "ignored", "DUPLICATE_CAPTURE"
		logger.Warn("duplicate_capture_event_dropped")
		return nil
	}

	input := appsettlement.SubmitInput{
		Method:   evt.Method,
		Merchant: c.merchant,
	}
	switch evt.Method {
	case domcapture.MethodFace:
		c.attempt.IdentityToken = evt.IdentityToken
		input.IdentityToken = evt.IdentityToken
		input.Amount = c.amount.Value()
	case domcapture.MethodCode:
		c.attempt.PayerID = evt.Code.PayerID
		input.PayerID = evt.Code.PayerID
		input.Amount = evt.Code.Amount.String()
	}
	c.mu.Unlock()

	// The lock is not held across the settlement await; the submitting
	// state is the in-flight guard.
	result, submitErr := c.submitter.Execute(ctx, input)
	var settled domsettle.Outcome
	if submitErr != nil {
		settled = domsettle.Rejected(submitErr.Error())
	} else {
		settled = result.Outcome
	}

	c.mu.Lock()
	if err = c.attempt.SubmissionResolved(settled); err != nil {
		c.mu.Unlock()
		outcome, statusText = "error", "STATE_TRANSITION_FAILED"
		return err
	}
	c.mu.Unlock()

	if settled.Status == domsettle.StatusSettled {
		statusText = "SETTLED"
		return c.present(status.KindSuccess, titleSuccess, successMessage(settled.Receipt), true)
	}
	outcome, statusText = "rejected", "REJECTED"
	return c.present(status.KindFailure, titlePaymentFailed, settled.Reason, c.opts.ClearAmountOnFailure)
}

// HandleCaptureFailed surfaces a capture failure. Recoverable failures
// (rejected scan payload, already-enrolled offer) keep the attempt in
// awaiting-capture so the user retries in place; terminal failures go to
// the presenter.
func (c *Controller) HandleCaptureFailed(ctx context.Context, evt domcapture.FailedEvent) error {
	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("use_case", useCaseCaptureEvent),
		observability.F("event", evt.EventName()),
		observability.F("reason", string(evt.Reason)),
	)
	start := time.Now()

	c.mu.Lock()
	if evt.Session != c.attempt.Session {
		c.mu.Unlock()
		c.count(useCaseCaptureEvent, "ignored", start)
		logger.Warn("capture_event_session_mismatch")
		return nil
	}
	if err := c.attempt.CaptureFailed(string(evt.Reason), evt.Recoverable); err != nil {
		c.mu.Unlock()
		c.count(useCaseCaptureEvent, "ignored", start)
		logger.Warn("capture_failure_dropped", observability.F("error", err.Error()))
		return nil
	}
	if evt.SwitchToAuthenticate {
		c.switchOffered = true
	}
	recoverable := evt.Recoverable
	c.mu.Unlock()

	c.count(useCaseCaptureEvent, "failure", start)
	logger.Info("capture_failed",
		observability.F("recoverable", recoverable),
	)
	if recoverable {
		return nil
	}
	return c.present(status.KindFailure, titleCaptureFailed, failureMessage(evt), c.opts.ClearAmountOnFailure)
}

// HandleCaptureCancelled returns the controller to idle. The entered
// amount survives a cancel; only a settled or presented outcome clears it.
func (c *Controller) HandleCaptureCancelled(ctx context.Context, evt domcapture.CancelledEvent) error {
	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("use_case", useCaseCaptureEvent),
		observability.F("event", evt.EventName()),
	)
	start := time.Now()

	c.mu.Lock()
	if evt.Session != c.attempt.Session {
		c.mu.Unlock()
		c.count(useCaseCaptureEvent, "ignored", start)
		return nil
	}
	err := c.attempt.CaptureCancelled()
	c.switchOffered = false
	c.mu.Unlock()

	if err != nil {
		c.count(useCaseCaptureEvent, "ignored", start)
		return nil
	}
	c.count(useCaseCaptureEvent, "cancelled", start)
	logger.Info("capture_cancelled")
	return nil
}

// present shows the outcome and arms the deferred reset. The reset runs
// after the notice is hidden and always clears the transient per-attempt
// fields; clearAmount additionally wipes the entered amount.
func (c *Controller) present(kind status.Kind, title, message string, clearAmount bool) error {
	onAck := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.attempt.Acknowledged(); err != nil {
			c.log.Error("acknowledge_transition_failed",
				observability.F("error", err.Error()),
			)
			return
		}
		c.switchOffered = false
		if clearAmount {
			c.amount.Clear()
		}
	}
	if err := c.presenter.Present(kind, title, message, onAck); err != nil {
		c.log.Error("present_failed", observability.F("error", err.Error()))
		return err
	}
	return nil
}

func (c *Controller) count(useCase, outcome string, start time.Time) {
	c.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
	c.durHist.Observe(time.Since(start).Seconds(),
		observability.L("use_case", useCase),
	)
}

func successMessage(receipt string) string {
	if receipt == "" {
		return "Payment completed successfully."
	}
	return "Payment completed successfully. Receipt " + receipt
}

func failureMessage(evt domcapture.FailedEvent) string {
	if evt.Message != "" {
		return evt.Message
	}
	return string(evt.Reason)
}
