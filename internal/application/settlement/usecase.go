package settlement

import (
	"context"
	"errors"
	"time"

	domcapture "github.com/facebouk/salepoint/internal/domain/capture"
	"github.com/facebouk/salepoint/internal/domain/merchant"
	domsettle "github.com/facebouk/salepoint/internal/domain/settlement"
	"github.com/facebouk/salepoint/internal/observability"
	"github.com/facebouk/salepoint/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	submitterService = "transaction-submitter"
	useCaseSubmit    = "settlement.submit"
	spanPrefix       = "UC."
	submitSpanName   = "SubmitTransaction"
)

var ErrUnknownMethod = errors.New("settlement: unknown capture method")

type SubmitInput struct {
	Method        domcapture.Method
	Amount        string
	Merchant      merchant.Context
	IdentityToken string
	PayerID       string
}

type SubmitResult struct {
	Outcome domsettle.Outcome
}

// SubmitUseCase builds the immutable submission request and issues
// exactly one settlement call per confirmed capture. It never retries:
// a second submission requires a fresh capture, which keeps a
// non-idempotent settlement endpoint from double-charging.
type SubmitUseCase struct {
	gateway Gateway
	timeout time.Duration
	tel     observability.Observability
	log     observability.Logger

	reqCounter observability.Counter
	durHist    observability.Histogram
}

func NewSubmitUseCase(gateway Gateway, timeout time.Duration, tel observability.Observability) *SubmitUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &SubmitUseCase{
		gateway:    gateway,
		timeout:    timeout,
		tel:        tel,
		log:        tel.Logger().With(observability.F("service", submitterService)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
		durHist:    tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Execute submits one transaction and classifies the result. Transport
// failures and service rejections come back as a Rejected outcome, not an
// error: the error return is reserved for requests that were invalid
// before any network activity.
func (uc *SubmitUseCase) Execute(ctx context.Context, cmd SubmitInput) (_ *SubmitResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseSubmit),
		observability.F("method", string(cmd.Method)),
		observability.F("amount", cmd.Amount),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+submitSpanName,
		attribute.String("use_case", useCaseSubmit),
		attribute.String("settlement.method", string(cmd.Method)),
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

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseSubmit),
			observability.L("outcome", outcome),
		)
		uc.durHist.Observe(latency,
			observability.L("use_case", useCaseSubmit),
		)
		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		)
	}()

	req, err := uc.buildRequest(cmd)
	if err != nil {
		outcome, statusText = "error", "REQUEST_INVALID"
		return nil, err
	}

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	var receipt string
	switch req.Method {
	case domcapture.MethodFace:
		receipt, err = uc.gateway.SubmitFace(ctx, req)
	case domcapture.MethodCode:
		receipt, err = uc.gateway.SubmitCode(ctx, req)
	}

	if err != nil {
		var svcErr *domsettle.ServiceError
		if errors.As(err, &svcErr) {
			outcome, statusText = "rejected", "SERVICE_REJECTION"
			logger.Warn("settlement_rejected", observability.F("reason", svcErr.Message))
			return &SubmitResult{Outcome: domsettle.Rejected(svcErr.Message)}, nil
		}
		outcome, statusText = "rejected", "TRANSPORT_FAILURE"
		logger.Warn("settlement_transport_failed", observability.F("error", err.Error()))
		return &SubmitResult{Outcome: domsettle.Rejected(domsettle.ReasonTransport)}, nil
	}

	return &SubmitResult{Outcome: domsettle.Settled(receipt)}, nil
}

func (uc *SubmitUseCase) buildRequest(cmd SubmitInput) (domsettle.Request, error) {
	switch cmd.Method {
	case domcapture.MethodFace:
		return domsettle.NewFaceRequest(cmd.Amount, cmd.Merchant, cmd.IdentityToken)
	case domcapture.MethodCode:
		return domsettle.NewCodeRequest(cmd.Amount, cmd.Merchant, cmd.PayerID)
	default:
		return domsettle.Request{}, ErrUnknownMethod
	}
}
