package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/facebouk/salepoint/internal/domain/capture"
	domoutbox "github.com/facebouk/salepoint/internal/domain/outbox"
	"github.com/facebouk/salepoint/internal/observability"
)

const componentScanner = "scan_provider"

// Provider adapts the camera-driven code scanner. One payload is accepted
// per armed session; further scans are dropped until Rearm (after a
// recoverable validation failure) or a fresh session.
type Provider struct {
	mu      sync.Mutex
	current capture.SessionID
	open    bool
	armed   bool

	sessions  *capture.SessionCounter
	publisher domoutbox.Publisher
	log       observability.Logger
	events    observability.Counter
	stale     observability.Counter
}

func New(sessions *capture.SessionCounter, publisher domoutbox.Publisher, obs observability.Observability) *Provider {
	if obs == nil {
		obs = observability.Nop()
	}
	return &Provider{
		sessions:  sessions,
		publisher: publisher,
		log:       obs.Logger().With(observability.F("component", componentScanner)),
		events:    obs.Metrics().Counter(observability.MCaptureEvents),
		stale:     obs.Metrics().Counter(observability.MCaptureEventsStale),
	}
}

func (p *Provider) Open(ctx context.Context, cfg capture.OpenConfig) (capture.SessionID, error) {
	_ = ctx
	_ = cfg // the scanner takes no parameters

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return 0, capture.ErrSessionBusy
	}
	p.current = p.sessions.Next()
	p.open = true
	p.armed = true

	p.log.Info("scan_session_opened", observability.F("session", uint64(p.current)))
	return p.current, nil
}

func (p *Provider) Close(ctx context.Context, id capture.SessionID) {
	_ = ctx

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open && p.current == id {
		p.open = false
		p.armed = false
		p.log.Info("scan_session_closed", observability.F("session", uint64(id)))
	}
}

// Rearm re-enables scanning for the given session after a rejected
// payload, so the user can retry without closing the scanner.
func (p *Provider) Rearm(id capture.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open && p.current == id {
		p.armed = true
	}
}

// Deliver feeds one scanned payload. Scans while disarmed are dropped.
func (p *Provider) Deliver(ctx context.Context, payload string) error {
	p.mu.Lock()
	if !p.open || !p.armed || payload == "" {
		p.mu.Unlock()
		p.stale.Add(1, observability.L("provider", "scan"))
		p.log.Debug("scan_dropped")
		return nil
	}
	session := p.current
	p.armed = false
	p.mu.Unlock()

	p.events.Add(1,
		observability.L("provider", "scan"),
		observability.L("terminal", "payload"),
	)
	return p.publisher.Publish(ctx, capture.ScanEvent{
		Session:    session,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
}
