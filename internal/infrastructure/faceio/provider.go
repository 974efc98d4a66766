package faceio

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/facebouk/salepoint/internal/domain/capture"
	domoutbox "github.com/facebouk/salepoint/internal/domain/outbox"
	"github.com/facebouk/salepoint/internal/observability"
)

const componentBiometric = "biometric_provider"

// Provider adapts the embedded biometric widget. The widget talks through
// an opaque JSON message channel; besides the single terminal message per
// session it also emits status and log chatter, which is dropped here so
// only the terminal event ever reaches the bus.
type Provider struct {
	mu       sync.Mutex
	current  capture.SessionID
	mode     capture.Mode
	open     bool
	terminal bool

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
		log:       obs.Logger().With(observability.F("component", componentBiometric)),
		events:    obs.Metrics().Counter(observability.MCaptureEvents),
		stale:     obs.Metrics().Counter(observability.MCaptureEventsStale),
	}
}

func (p *Provider) Open(ctx context.Context, cfg capture.OpenConfig) (capture.SessionID, error) {
	_ = ctx

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return 0, capture.ErrSessionBusy
	}
	p.current = p.sessions.Next()
	p.mode = cfg.Mode
	p.open = true
	p.terminal = false

	p.log.Info("biometric_session_opened",
		observability.F("session", uint64(p.current)),
		observability.F("mode", string(cfg.Mode)),
	)
	return p.current, nil
}

// Close is unconditional and immediate; the widget is not asked to
// acknowledge. Any message it still emits for this session is dropped.
func (p *Provider) Close(ctx context.Context, id capture.SessionID) {
	_ = ctx

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open && p.current == id {
		p.open = false
		p.log.Info("biometric_session_closed", observability.F("session", uint64(id)))
	}
}

// envelope is the widget's wire format.
type envelope struct {
	Type    string `json:"type"`
	Data    data   `json:"data"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type data struct {
	FacialID string `json:"facialId"`
}

// Deliver feeds one raw widget message into the provider. Non-terminal
// messages are ignored; the first terminal message ends the session and
// is published; anything after that is dropped as stale.
func (p *Provider) Deliver(ctx context.Context, raw []byte) error {
	var msg envelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		p.log.Warn("biometric_message_malformed", observability.F("error", err.Error()))
		return err
	}

	switch msg.Type {
	case "status", "log":
		p.log.Debug("biometric_message_ignored", observability.F("type", msg.Type))
		return nil
	case "success", "error":
	default:
		p.log.Debug("biometric_message_ignored", observability.F("type", msg.Type))
		return nil
	}

	p.mu.Lock()
	if !p.open || p.terminal {
		p.mu.Unlock()
		p.stale.Add(1, observability.L("provider", "biometric"))
		p.log.Debug("biometric_message_dropped_no_session")
		return nil
	}
	session := p.current
	mode := p.mode
	p.terminal = true
	p.open = false
	p.mu.Unlock()

	evt := capture.BiometricTerminalEvent{
		Session:       session,
		Mode:          mode,
		Success:       msg.Type == "success",
		IdentityToken: msg.Data.FacialID,
		ErrorCode:     msg.Code,
		ErrorMessage:  msg.Error,
		OccurredAt:    time.Now().UTC(),
	}
	p.events.Add(1,
		observability.L("provider", "biometric"),
		observability.L("terminal", msg.Type),
	)
	return p.publisher.Publish(ctx, evt)
}
