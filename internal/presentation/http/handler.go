package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	appcheckout "github.com/facebouk/salepoint/internal/application/checkout"
	domcapture "github.com/facebouk/salepoint/internal/domain/capture"
	domcheckout "github.com/facebouk/salepoint/internal/domain/checkout"
	"github.com/facebouk/salepoint/internal/observability"
	"github.com/facebouk/salepoint/internal/observability/logctx"
	"github.com/facebouk/salepoint/internal/presentation/status"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const componentHTTPHandler = "http_server"

// BiometricFeed accepts raw messages posted by the embedded biometric widget.
type BiometricFeed interface {
	Deliver(ctx context.Context, raw []byte) error
}

// ScanFeed accepts payloads read by the code scanner camera.
type ScanFeed interface {
	Deliver(ctx context.Context, payload string) error
}

// Handler exposes the terminal control surface: keypad input, payment
// method selection, capture-subsystem callbacks, and result acknowledgement.
type Handler struct {
	controller *appcheckout.Controller
	biometric  BiometricFeed
	scan       ScanFeed
	log        observability.Logger
	tel        observability.Observability
}

func NewHandler(
	controller *appcheckout.Controller,
	biometric BiometricFeed,
	scan ScanFeed,
	logger observability.Logger,
	tel observability.Observability,
) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		controller: controller,
		biometric:  biometric,
		scan:       scan,
		log:        logger.With(observability.F("component", componentHTTPHandler)),
		tel:        tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Wire middlewares: Trace → Request Logger + Metrics → Access Log → Handler
	r.Use(h.withTrace)
	r.Use(ObservabilityMiddleware(h.log, h.tel))
	r.Use(h.withAccessLog)

	r.Get("/health", h.handleHealth)
	r.Get("/session", h.handleSession)
	r.Post("/keypad", h.handleKeypad)
	r.Post("/payment/face", h.handleSelectFace)
	r.Post("/payment/code", h.handleSelectCode)
	r.Post("/capture/cancel", h.handleCancelCapture)
	r.Post("/capture/switch-auth", h.handleSwitchAuth)
	r.Post("/capture/biometric/message", h.handleBiometricMessage)
	r.Post("/capture/scan", h.handleScan)
	r.Post("/result/acknowledge", h.handleAcknowledge)
	r.Post("/logout", h.handleLogout)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type sessionResponse struct {
	Phase         domcheckout.Phase `json:"phase"`
	Method        string            `json:"method,omitempty"`
	Amount        string            `json:"amount"`
	FailureReason string            `json:"failure_reason,omitempty"`
	SwitchOffered bool              `json:"switch_offered,omitempty"`
	Notice        *noticeResponse   `json:"notice,omitempty"`
}

type noticeResponse struct {
	Kind    status.Kind `json:"kind"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

func (h *Handler) handleSession(w http.ResponseWriter, _ *http.Request) {
	snap := h.controller.Snapshot()
	resp := sessionResponse{
		Phase:         snap.Phase,
		Method:        string(snap.Method),
		Amount:        snap.Amount,
		FailureReason: snap.FailureReason,
		SwitchOffered: snap.SwitchOffered,
	}
	if snap.Notice != nil {
		resp.Notice = &noticeResponse{
			Kind:    snap.Notice.Kind,
			Title:   snap.Notice.Title,
			Message: snap.Notice.Message,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type keypadRequest struct {
	Key string `json:"key"`
}

type keypadResponse struct {
	Amount string `json:"amount"`
}

func (h *Handler) handleKeypad(w http.ResponseWriter, r *http.Request) {
	var req keypadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.controller.PressKey(req.Key)
	writeJSON(w, http.StatusOK, keypadResponse{Amount: h.controller.Snapshot().Amount})
}

type phaseResponse struct {
	Phase domcheckout.Phase `json:"phase"`
}

func (h *Handler) handleSelectFace(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.SelectFace(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, phaseResponse{Phase: domcheckout.PhaseAwaitingCapture})
}

func (h *Handler) handleSelectCode(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.SelectCode(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, phaseResponse{Phase: domcheckout.PhaseAwaitingCapture})
}

func (h *Handler) handleCancelCapture(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.CancelCapture(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleSwitchAuth(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.SwitchToAuthenticate(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleBiometricMessage forwards the widget's raw postMessage body. The
// provider owns envelope parsing; malformed bodies surface here as 400s.
func (h *Handler) handleBiometricMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.biometric.Deliver(r.Context(), raw); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type scanRequest struct {
	Payload string `json:"payload"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.scan.Deliver(r.Context(), req.Payload); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Acknowledge(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Logout(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routePattern(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("salepoint.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctxWithSpan, span := tracer.Start(parentCtx,
			r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	writeJSON(w, statusCode, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domcheckout.ErrAmountRequired):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domcheckout.ErrInvalidStateTransition),
		errors.Is(err, domcapture.ErrSessionBusy),
		errors.Is(err, status.ErrAlreadyPresenting):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domcapture.ErrNoActiveSession),
		errors.Is(err, status.ErrNothingPresented):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
