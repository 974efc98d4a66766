package capture

import (
	"context"
	"sync"
	"time"

	domcapture "github.com/facebouk/salepoint/internal/domain/capture"
	domoutbox "github.com/facebouk/salepoint/internal/domain/outbox"
	"github.com/facebouk/salepoint/internal/observability"
	"github.com/facebouk/salepoint/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	bridgeService = "capture-bridge"
	spanPrefix    = "Bridge."
)

// Rearmer re-enables a scan session after a rejected payload.
type Rearmer interface {
	Rearm(id domcapture.SessionID)
}

// Bridge normalizes the two capture subsystems into one result shape.
// Raw provider events arrive over the bus; validated results leave over
// the bus. Events tagged with anything but the currently open session are
// discarded so a late message from a closed subsystem can never drive a
// state transition.
type Bridge struct {
	mu          sync.Mutex
	session     domcapture.SessionID
	method      domcapture.Method
	mode        domcapture.Mode
	metadata    domcapture.UserMetadata
	active      bool
	switchOffer bool

	face      domcapture.Provider
	scan      domcapture.Provider
	rearm     Rearmer
	publisher domoutbox.Publisher
	tel       observability.Observability

	log   observability.Logger
	stale observability.Counter
}

func NewBridge(
	face domcapture.Provider,
	scan domcapture.Provider,
	rearm Rearmer,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Bridge {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Bridge{
		face:      face,
		scan:      scan,
		rearm:     rearm,
		publisher: publisher,
		tel:       tel,
		log:       tel.Logger().With(observability.F("service", bridgeService)),
		stale:     tel.Metrics().Counter(observability.MCaptureEventsStale),
	}
}

// Start registers the bridge on the bus for raw provider events.
func (b *Bridge) Start(subscriber domoutbox.Subscriber) {
	subscriber.Subscribe(domcapture.BiometricTerminalEvent{}.EventName(), b.handleBiometricTerminal)
	subscriber.Subscribe(domcapture.ScanEvent{}.EventName(), b.handleScan)
}

// OpenBiometric opens a biometric capture session in the given mode.
func (b *Bridge) OpenBiometric(ctx context.Context, mode domcapture.Mode, meta domcapture.UserMetadata) (domcapture.SessionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active {
		return 0, domcapture.ErrSessionBusy
	}
	id, err := b.face.Open(ctx, domcapture.OpenConfig{Mode: mode, Metadata: meta})
	if err != nil {
		return 0, err
	}
	b.session = id
	b.method = domcapture.MethodFace
	b.mode = mode
	b.metadata = meta
	b.active = true
	b.switchOffer = false
	return id, nil
}

// OpenScanner opens a code-scan session.
func (b *Bridge) OpenScanner(ctx context.Context) (domcapture.SessionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active {
		return 0, domcapture.ErrSessionBusy
	}
	id, err := b.scan.Open(ctx, domcapture.OpenConfig{})
	if err != nil {
		return 0, err
	}
	b.session = id
	b.method = domcapture.MethodCode
	b.active = true
	b.switchOffer = false
	return id, nil
}

// CloseActive closes whichever capture session is open and emits a
// cancellation. Close does not wait for the subsystem; late events are
// dropped by the staleness rule.
func (b *Bridge) CloseActive(ctx context.Context) error {
	b.mu.Lock()
	if !b.active && !b.switchOffer {
		b.mu.Unlock()
		return domcapture.ErrNoActiveSession
	}
	session, method := b.session, b.method
	wasActive := b.active
	b.active = false
	b.switchOffer = false
	b.mu.Unlock()

	if wasActive {
		b.provider(method).Close(ctx, session)
	}
	return b.publisher.Publish(ctx, domcapture.CancelledEvent{
		Session:    session,
		Method:     method,
		OccurredAt: time.Now().UTC(),
	})
}

// SwitchToAuthenticate reopens the biometric subsystem in authenticate
// mode after an already-enrolled failure during enrollment. This is the
// one user-facing branch of the bridge.
func (b *Bridge) SwitchToAuthenticate(ctx context.Context) (domcapture.SessionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.switchOffer {
		return 0, domcapture.ErrNoActiveSession
	}
	id, err := b.face.Open(ctx, domcapture.OpenConfig{
		Mode:     domcapture.ModeAuthenticate,
		Metadata: b.metadata,
	})
	if err != nil {
		return 0, err
	}
	b.session = id
	b.mode = domcapture.ModeAuthenticate
	b.active = true
	b.switchOffer = false
	return id, nil
}

func (b *Bridge) provider(m domcapture.Method) domcapture.Provider {
	if m == domcapture.MethodCode {
		return b.scan
	}
	return b.face
}

func (b *Bridge) handleBiometricTerminal(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcapture.BiometricTerminalEvent)
	if !ok {
		return nil
	}

	ctx, span := b.tel.Tracer().Start(ctx, spanPrefix+"BiometricTerminal",
		attribute.Int64("capture.session", int64(evt.Session)),
		attribute.Bool("capture.success", evt.Success),
	)
	defer span.End()
	logger := logctx.FromOr(ctx, b.log).With(
		observability.F("session", uint64(evt.Session)),
	)

	b.mu.Lock()
	if !b.active || b.session != evt.Session {
		b.mu.Unlock()
		b.stale.Add(1, observability.L("provider", "biometric"))
		logger.Warn("stale_biometric_event_dropped")
		return nil
	}

	if evt.Success {
		b.active = false
		b.mu.Unlock()
		logger.Info("biometric_capture_succeeded")
		return b.publisher.Publish(ctx, domcapture.SucceededEvent{
			Session:       evt.Session,
			Method:        domcapture.MethodFace,
			IdentityToken: evt.IdentityToken,
			OccurredAt:    time.Now().UTC(),
		})
	}

	reason := domcapture.ClassifyWidgetError(evt.ErrorCode, evt.Mode)
	failed := domcapture.FailedEvent{
		Session:    evt.Session,
		Method:     domcapture.MethodFace,
		Reason:     reason,
		Message:    evt.ErrorMessage,
		OccurredAt: time.Now().UTC(),
	}
	if reason == domcapture.ReasonAlreadyEnrolled && evt.Mode == domcapture.ModeEnroll {
		// Instead of failing outright, offer the user a switch to
		// authentication. The attempt stays open until they decide.
		b.active = false
		b.switchOffer = true
		failed.Recoverable = true
		failed.SwitchToAuthenticate = true
	} else {
		b.active = false
		b.switchOffer = false
	}
	b.mu.Unlock()

	logger.Info("biometric_capture_failed",
		observability.F("reason", string(reason)),
		observability.F("recoverable", failed.Recoverable),
	)
	return b.publisher.Publish(ctx, failed)
}

func (b *Bridge) handleScan(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcapture.ScanEvent)
	if !ok {
		return nil
	}

	ctx, span := b.tel.Tracer().Start(ctx, spanPrefix+"Scan",
		attribute.Int64("capture.session", int64(evt.Session)),
	)
	defer span.End()
	logger := logctx.FromOr(ctx, b.log).With(
		observability.F("session", uint64(evt.Session)),
	)

	b.mu.Lock()
	if !b.active || b.session != evt.Session {
		b.mu.Unlock()
		b.stale.Add(1, observability.L("provider", "scan"))
		logger.Warn("stale_scan_event_dropped")
		return nil
	}
	b.mu.Unlock()

	payload, err := domcapture.ParseCodePayload(evt.Payload)
	if err != nil {
		// Invalid payloads never reach the submitter. Re-arm so the user
		// can retry without closing the session.
		if b.rearm != nil {
			b.rearm.Rearm(evt.Session)
		}
		logger.Info("scan_payload_rejected", observability.F("error", err.Error()))
		return b.publisher.Publish(ctx, domcapture.FailedEvent{
			Session:     evt.Session,
			Method:      domcapture.MethodCode,
			Reason:      domcapture.ReasonInvalidPayload,
			Message:     err.Error(),
			Recoverable: true,
			OccurredAt:  time.Now().UTC(),
		})
	}

	b.mu.Lock()
	b.active = false
	b.mu.Unlock()
	b.scan.Close(ctx, evt.Session)

	logger.Info("scan_capture_succeeded", observability.F("payer_id", payload.PayerID))
	return b.publisher.Publish(ctx, domcapture.SucceededEvent{
		Session:    evt.Session,
		Method:     domcapture.MethodCode,
		Code:       payload,
		OccurredAt: time.Now().UTC(),
	})
}
