package status

import (
	"errors"
	"sync"

	"github.com/facebouk/salepoint/internal/observability"
)

var (
	ErrAlreadyPresenting = errors.New("status: a notice is already visible")
	ErrNothingPresented  = errors.New("status: no notice is visible")
)

// Kind classifies the single modal-like notice.
type Kind string

const (
	KindSuccess Kind = "SUCCESS"
	KindFailure Kind = "FAILURE"
)

// Notice is what the operator sees until they acknowledge it.
type Notice struct {
	Kind    Kind
	Title   string
	Message string
}

// Presenter owns the one result notice and its deferred acknowledge
// action. Presenting while a notice is visible is rejected; the previous
// notice must be acknowledged first.
type Presenter struct {
	mu       sync.Mutex
	visible  bool
	current  Notice
	deferred func()

	log observability.Logger
}

func NewPresenter(logger observability.Logger) *Presenter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Presenter{
		log: logger.With(observability.F("component", "status_presenter")),
	}
}

// Present shows a notice. onAcknowledge runs exactly once, after the
// notice is hidden; it is required because it carries the state reset
// that must happen whatever the outcome was.
func (p *Presenter) Present(kind Kind, title, message string, onAcknowledge func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.visible {
		p.log.Warn("notice_rejected_already_visible",
			observability.F("kind", string(kind)),
		)
		return ErrAlreadyPresenting
	}
	p.visible = true
	p.current = Notice{Kind: kind, Title: title, Message: message}
	p.deferred = onAcknowledge

	p.log.Info("notice_presented",
		observability.F("kind", string(kind)),
		observability.F("title", title),
	)
	return nil
}

// Acknowledge hides the notice first and only then runs the deferred
// action. The two phases are sequenced explicitly; nothing depends on a
// timed delay.
func (p *Presenter) Acknowledge() error {
	p.mu.Lock()
	if !p.visible {
		p.mu.Unlock()
		return ErrNothingPresented
	}
	p.visible = false
	p.current = Notice{}
	deferred := p.deferred
	p.deferred = nil
	p.mu.Unlock()

	if deferred != nil {
		deferred()
	}
	p.log.Info("notice_acknowledged")
	return nil
}

// Snapshot reports the visible notice, if any.
func (p *Presenter) Snapshot() (Notice, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.visible
}
