package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcapture "github.com/facebouk/salepoint/internal/application/capture"
	appcheckout "github.com/facebouk/salepoint/internal/application/checkout"
	appmerchant "github.com/facebouk/salepoint/internal/application/merchant"
	appsettlement "github.com/facebouk/salepoint/internal/application/settlement"
	"github.com/facebouk/salepoint/internal/config"
	domcapture "github.com/facebouk/salepoint/internal/domain/capture"
	checkoutworker "github.com/facebouk/salepoint/internal/infrastructure/checkout/worker"
	"github.com/facebouk/salepoint/internal/infrastructure/faceio"
	"github.com/facebouk/salepoint/internal/infrastructure/identity"
	"github.com/facebouk/salepoint/internal/infrastructure/memory"
	obsprovider "github.com/facebouk/salepoint/internal/infrastructure/observability"
	"github.com/facebouk/salepoint/internal/infrastructure/observability/oteltrace"
	"github.com/facebouk/salepoint/internal/infrastructure/observability/prometrics"
	"github.com/facebouk/salepoint/internal/infrastructure/observability/zaplogger"
	"github.com/facebouk/salepoint/internal/infrastructure/outbox"
	"github.com/facebouk/salepoint/internal/infrastructure/profileapi"
	"github.com/facebouk/salepoint/internal/infrastructure/scanner"
	"github.com/facebouk/salepoint/internal/infrastructure/settlementapi"
	"github.com/facebouk/salepoint/internal/observability"
	"github.com/facebouk/salepoint/internal/pkg/logging"
	httppresentation "github.com/facebouk/salepoint/internal/presentation/http"
	"github.com/facebouk/salepoint/internal/presentation/status"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	tel := newTelemetry(cfg.ServiceName)
	log := tel.Logger()

	// In-memory event bus carries normalized capture events to the controller.
	bus := outbox.NewBus(log, tel)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	sessions := domcapture.NewSessionCounter()
	biometric := faceio.New(sessions, bus, tel)
	codeScanner := scanner.New(sessions, bus, tel)

	bridge := appcapture.NewBridge(biometric, codeScanner, codeScanner, bus, tel)
	bridge.Start(bus)

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	token := func() string { return cfg.SessionToken }
	profiles := profileapi.New(cfg.AuthBaseURL, httpClient, token, tel)
	settlements := settlementapi.New(cfg.TransactionBaseURL, httpClient, token, tel)

	resolver := appmerchant.NewResolver(memory.NewMerchantStore(), identity.OperatorID, profiles, tel)
	submitter := appsettlement.NewSubmitUseCase(settlements, cfg.SubmitTimeout, tel)
	presenter := status.NewPresenter(log)

	controller := appcheckout.NewController(bridge, submitter, resolver, presenter, appcheckout.Options{
		SessionToken:         cfg.SessionToken,
		BiometricMode:        cfg.BiometricMode,
		ClearAmountOnFailure: cfg.ClearAmountOnFailure,
	}, tel)

	worker := checkoutworker.New(bus, controller, log)
	worker.Start()

	handler := httppresentation.NewHandler(controller, biometric, codeScanner, log, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

// newTelemetry registers every metric vector once and assembles the
// tracer/logger/metrics provider the rest of the process shares.
func newTelemetry(serviceName string) observability.Observability {
	metrics := prometrics.New(serviceName, "")

	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: metrics.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: metrics.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests served.",
			"method", "route", "status",
		),
		observability.MExternalRequests: metrics.Counter(
			string(observability.MExternalRequests),
			"Total number of outbound API calls.",
			"target", "route", "outcome",
		),
		observability.MCaptureEvents: metrics.Counter(
			string(observability.MCaptureEvents),
			"Terminal capture events received from providers.",
			"provider", "terminal",
		),
		observability.MCaptureEventsStale: metrics.Counter(
			string(observability.MCaptureEventsStale),
			"Capture events discarded because their session was stale.",
			"provider",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: metrics.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			nil,
			"use_case",
		),
		observability.MHTTPRequestDuration: metrics.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			nil,
			"method", "route", "status",
		),
		observability.MExternalRequestDuration: metrics.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of outbound API calls in seconds.",
			nil,
			"target", "route",
		),
	}

	return obsprovider.New(
		oteltrace.New(serviceName),
		zaplogger.New(observability.F("service", serviceName)),
		counters,
		histograms,
	)
}
