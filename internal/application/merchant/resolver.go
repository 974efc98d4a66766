package merchant

import (
	"context"
	"errors"
	"time"

	dommerchant "github.com/facebouk/salepoint/internal/domain/merchant"
	"github.com/facebouk/salepoint/internal/observability"
	"github.com/facebouk/salepoint/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	resolverService = "merchant-resolver"
	useCaseResolve  = "merchant.resolve"
	spanPrefix      = "UC."
)

var ErrNoSessionToken = errors.New("merchant: session token is required")

// IdentityDecoder extracts the operator id from the session token.
type IdentityDecoder func(token string) (string, error)

// BusinessLookup fetches the business a given operator belongs to,
// returning its identifier.
type BusinessLookup interface {
	BusinessID(ctx context.Context, associateID string) (string, error)
}

// Resolver produces the merchant context for the current session: cache
// first, then a remote profile lookup keyed on the decoded session
// identity, written back to the cache. The context is immutable for the
// session once resolved; only logout invalidates it.
type Resolver struct {
	store  dommerchant.Store
	decode IdentityDecoder
	lookup BusinessLookup
	tel    observability.Observability
	log    observability.Logger

	reqCounter observability.Counter
	durHist    observability.Histogram
}

func NewResolver(store dommerchant.Store, decode IdentityDecoder, lookup BusinessLookup, tel observability.Observability) *Resolver {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Resolver{
		store:      store,
		decode:     decode,
		lookup:     lookup,
		tel:        tel,
		log:        tel.Logger().With(observability.F("service", resolverService)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
		durHist:    tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

func (r *Resolver) Resolve(ctx context.Context, sessionToken string) (_ dommerchant.Context, err error) {
	logger := logctx.FromOr(ctx, r.log).With(
		observability.F("use_case", useCaseResolve),
	)

	ctx, span := r.tel.Tracer().Start(ctx, spanPrefix+"ResolveMerchantContext",
		attribute.String("use_case", useCaseResolve),
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

		r.reqCounter.Add(1,
			observability.L("use_case", useCaseResolve),
			observability.L("outcome", outcome),
		)
		r.durHist.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseResolve),
		)
	}()

	if sessionToken == "" {
		outcome, statusText = "error", "TOKEN_REQUIRED"
		return dommerchant.Context{}, ErrNoSessionToken
	}

	if cached, cacheErr := r.store.Get(ctx, sessionToken); cacheErr == nil {
		statusText = "CACHE_HIT"
		logger.Debug("merchant_context_cached")
		return cached, nil
	}

	associateID, err := r.decode(sessionToken)
	if err != nil {
		outcome, statusText = "error", "TOKEN_DECODE_FAILED"
		return dommerchant.Context{}, err
	}

	receiverID, err := r.lookup.BusinessID(ctx, associateID)
	if err != nil {
		outcome, statusText = "error", "PROFILE_LOOKUP_FAILED"
		logger.Error("merchant_profile_lookup_failed",
			observability.F("error", err.Error()),
		)
		return dommerchant.Context{}, err
	}

	mc := dommerchant.Context{ReceiverID: receiverID, AssociateID: associateID}
	if putErr := r.store.Put(ctx, sessionToken, mc); putErr != nil {
		// The resolution itself succeeded; a cache write failure only
		// costs a lookup next session.
		logger.Warn("merchant_context_cache_write_failed",
			observability.F("error", putErr.Error()),
		)
	}

	logger.Info("merchant_context_resolved",
		observability.F("receiver_id", mc.ReceiverID),
		observability.F("associate_id", mc.AssociateID),
	)
	return mc, nil
}

// Invalidate drops the cached context for the session. Called on logout.
func (r *Resolver) Invalidate(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return ErrNoSessionToken
	}
	return r.store.Delete(ctx, sessionToken)
}
