package checkout

import (
	"context"
	"errors"
	"testing"

	appsettlement "github.com/facebouk/salepoint/internal/application/settlement"
	domcapture "github.com/facebouk/salepoint/internal/domain/capture"
	domcheckout "github.com/facebouk/salepoint/internal/domain/checkout"
	dommerchant "github.com/facebouk/salepoint/internal/domain/merchant"
	domsettle "github.com/facebouk/salepoint/internal/domain/settlement"
	"github.com/facebouk/salepoint/internal/presentation/status"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	sessions domcapture.SessionCounter

	openMode   domcapture.Mode
	openErr    error
	closeCalls int
	lastOpen   domcapture.SessionID
}

func (b *fakeBridge) OpenBiometric(_ context.Context, mode domcapture.Mode, _ domcapture.UserMetadata) (domcapture.SessionID, error) {
	if b.openErr != nil {
		return 0, b.openErr
	}
	b.openMode = mode
	b.lastOpen = b.sessions.Next()
	return b.lastOpen, nil
}

func (b *fakeBridge) OpenScanner(context.Context) (domcapture.SessionID, error) {
	if b.openErr != nil {
		return 0, b.openErr
	}
	b.lastOpen = b.sessions.Next()
	return b.lastOpen, nil
}

func (b *fakeBridge) CloseActive(context.Context) error {
	b.closeCalls++
	return nil
}

func (b *fakeBridge) SwitchToAuthenticate(context.Context) (domcapture.SessionID, error) {
	b.openMode = domcapture.ModeAuthenticate
	b.lastOpen = b.sessions.Next()
	return b.lastOpen, nil
}

type fakeSubmitter struct {
	calls  int
	inputs []appsettlement.SubmitInput
	result *appsettlement.SubmitResult
	err    error
}

func (s *fakeSubmitter) Execute(_ context.Context, cmd appsettlement.SubmitInput) (*appsettlement.SubmitResult, error) {
	s.calls++
	s.inputs = append(s.inputs, cmd)
	return s.result, s.err
}

type fakeResolver struct {
	resolveCalls    int
	invalidateCalls int
	mc              dommerchant.Context
	err             error
}

func (r *fakeResolver) Resolve(context.Context, string) (dommerchant.Context, error) {
	r.resolveCalls++
	return r.mc, r.err
}

func (r *fakeResolver) Invalidate(context.Context, string) error {
	r.invalidateCalls++
	return nil
}

type fixture struct {
	controller *Controller
	bridge     *fakeBridge
	submitter  *fakeSubmitter
	resolver   *fakeResolver
	presenter  *status.Presenter
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	if opts.SessionToken == "" {
		opts.SessionToken = "token-1"
	}
	bridge := &fakeBridge{}
	submitter := &fakeSubmitter{result: &appsettlement.SubmitResult{Outcome: domsettle.Settled("R-1")}}
	resolver := &fakeResolver{mc: dommerchant.Context{ReceiverID: "B1", AssociateID: "A1"}}
	presenter := status.NewPresenter(nil)
	return &fixture{
		controller: NewController(bridge, submitter, resolver, presenter, opts, nil),
		bridge:     bridge,
		submitter:  submitter,
		resolver:   resolver,
		presenter:  presenter,
	}
}

func pressAll(c *Controller, keys ...string) {
	for _, k := range keys {
		c.PressKey(k)
	}
}

func TestFacePaymentEndToEnd(t *testing.T) {
	f := newFixture(t, Options{ClearAmountOnFailure: true})
	ctx := context.Background()

	pressAll(f.controller, "1", "2", ".", "5")
	assert.Equal(t, "12.5", f.controller.Snapshot().Amount)

	require.NoError(t, f.controller.SelectFace(ctx))
	snap := f.controller.Snapshot()
	assert.Equal(t, domcheckout.PhaseAwaitingCapture, snap.Phase)
	assert.Equal(t, domcapture.MethodFace, snap.Method)
	assert.Equal(t, 1, f.resolver.resolveCalls)

	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, domcapture.SucceededEvent{
		Session:       f.bridge.lastOpen,
		Method:        domcapture.MethodFace,
		IdentityToken: "facial-token",
	}))

	require.Equal(t, 1, f.submitter.calls)
	input := f.submitter.inputs[0]
	assert.Equal(t, "12.5", input.Amount)
	assert.Equal(t, "facial-token", input.IdentityToken)
	assert.Equal(t, "B1", input.Merchant.ReceiverID)

	snap = f.controller.Snapshot()
	assert.Equal(t, domcheckout.PhasePresenting, snap.Phase)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, status.KindSuccess, snap.Notice.Kind)

	require.NoError(t, f.controller.Acknowledge(ctx))
	snap = f.controller.Snapshot()
	assert.Equal(t, domcheckout.PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Notice)
	assert.Empty(t, snap.Amount, "success always clears the amount")
}

func TestSelectFaceRequiresAmount(t *testing.T) {
	f := newFixture(t, Options{})
	err := f.controller.SelectFace(context.Background())
	assert.ErrorIs(t, err, domcheckout.ErrAmountRequired)
	assert.Equal(t, domcheckout.PhaseIdle, f.controller.Snapshot().Phase)
}

func TestSelectWhileNotIdleRejected(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.controller.SelectCode(ctx))
	err := f.controller.SelectCode(ctx)
	assert.ErrorIs(t, err, domcheckout.ErrInvalidStateTransition)
}

func TestSelectFaceMerchantResolutionFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.resolver.err = errors.New("profile service down")

	pressAll(f.controller, "5")
	err := f.controller.SelectFace(context.Background())
	assert.ErrorIs(t, err, f.resolver.err)
	assert.Equal(t, domcheckout.PhaseIdle, f.controller.Snapshot().Phase)
}

func TestCodePaymentUsesScannedAmount(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.controller.SelectCode(ctx))

	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, domcapture.SucceededEvent{
		Session: f.bridge.lastOpen,
		Method:  domcapture.MethodCode,
		Code: &domcapture.CodePayload{
			Kind:    "PAYMENT",
			Amount:  decimal.NewFromInt(5),
			PayerID: "U9",
		},
	}))

	require.Equal(t, 1, f.submitter.calls)
	input := f.submitter.inputs[0]
	assert.Equal(t, "5", input.Amount, "the scanned payload supplies the amount")
	assert.Equal(t, "U9", input.PayerID)
	assert.Empty(t, input.IdentityToken)
}

func TestTransportFailurePresentsRejection(t *testing.T) {
	f := newFixture(t, Options{ClearAmountOnFailure: true})
	ctx := context.Background()
	f.submitter.result = &appsettlement.SubmitResult{Outcome: domsettle.Rejected(domsettle.ReasonTransport)}

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))
	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, domcapture.SucceededEvent{
		Session:       f.bridge.lastOpen,
		Method:        domcapture.MethodFace,
		IdentityToken: "tok",
	}))

	snap := f.controller.Snapshot()
	require.NotNil(t, snap.Notice)
	assert.Equal(t, status.KindFailure, snap.Notice.Kind)
	assert.Equal(t, domsettle.ReasonTransport, snap.Notice.Message)

	require.NoError(t, f.controller.Acknowledge(ctx))
	assert.Empty(t, f.controller.Snapshot().Amount)
	assert.Equal(t, 1, f.submitter.calls, "a failed submission is never retried automatically")
}

func TestFailurePolicyKeepsAmount(t *testing.T) {
	f := newFixture(t, Options{ClearAmountOnFailure: false})
	ctx := context.Background()
	f.submitter.result = &appsettlement.SubmitResult{Outcome: domsettle.Rejected("Insufficient funds")}

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))
	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, domcapture.SucceededEvent{
		Session:       f.bridge.lastOpen,
		Method:        domcapture.MethodFace,
		IdentityToken: "tok",
	}))
	require.NoError(t, f.controller.Acknowledge(ctx))

	assert.Equal(t, "9", f.controller.Snapshot().Amount, "the operator retries without re-entering")
}

func TestDuplicateCaptureSubmitsOnce(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))

	evt := domcapture.SucceededEvent{
		Session:       f.bridge.lastOpen,
		Method:        domcapture.MethodFace,
		IdentityToken: "tok",
	}
	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, evt))
	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, evt), "the duplicate is dropped, not an error")

	assert.Equal(t, 1, f.submitter.calls)
}

func TestStaleCaptureEventIgnored(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))

	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, domcapture.SucceededEvent{
		Session:       f.bridge.lastOpen + 50,
		Method:        domcapture.MethodFace,
		IdentityToken: "tok",
	}))

	assert.Zero(t, f.submitter.calls)
	assert.Equal(t, domcheckout.PhaseAwaitingCapture, f.controller.Snapshot().Phase)
}

func TestRecoverableFailureKeepsAwaiting(t *testing.T) {
	f := newFixture(t, Options{BiometricMode: domcapture.ModeEnroll})
	ctx := context.Background()

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))

	require.NoError(t, f.controller.HandleCaptureFailed(ctx, domcapture.FailedEvent{
		Session:              f.bridge.lastOpen,
		Method:               domcapture.MethodFace,
		Reason:               domcapture.ReasonAlreadyEnrolled,
		Recoverable:          true,
		SwitchToAuthenticate: true,
	}))

	snap := f.controller.Snapshot()
	assert.Equal(t, domcheckout.PhaseAwaitingCapture, snap.Phase)
	assert.True(t, snap.SwitchOffered)
	assert.Nil(t, snap.Notice)

	// accepting the offer rebinds the attempt to the new session
	prev := f.bridge.lastOpen
	require.NoError(t, f.controller.SwitchToAuthenticate(ctx))
	snap = f.controller.Snapshot()
	assert.False(t, snap.SwitchOffered)
	assert.NotEqual(t, prev, f.bridge.lastOpen)

	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, domcapture.SucceededEvent{
		Session:       f.bridge.lastOpen,
		Method:        domcapture.MethodFace,
		IdentityToken: "tok",
	}))
	assert.Equal(t, 1, f.submitter.calls)
}

func TestSwitchWithoutOfferRejected(t *testing.T) {
	f := newFixture(t, Options{})
	err := f.controller.SwitchToAuthenticate(context.Background())
	assert.ErrorIs(t, err, domcheckout.ErrInvalidStateTransition)
}

func TestTerminalCaptureFailurePresents(t *testing.T) {
	f := newFixture(t, Options{ClearAmountOnFailure: true})
	ctx := context.Background()

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))

	require.NoError(t, f.controller.HandleCaptureFailed(ctx, domcapture.FailedEvent{
		Session: f.bridge.lastOpen,
		Method:  domcapture.MethodFace,
		Reason:  domcapture.ReasonTimeout,
		Message: "No face detected in time",
	}))

	snap := f.controller.Snapshot()
	assert.Equal(t, domcheckout.PhasePresenting, snap.Phase)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, status.KindFailure, snap.Notice.Kind)
	assert.Equal(t, "No face detected in time", snap.Notice.Message)
	assert.Zero(t, f.submitter.calls)
}

func TestCancelKeepsAmount(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	pressAll(f.controller, "4", "2")
	require.NoError(t, f.controller.SelectFace(ctx))

	require.NoError(t, f.controller.CancelCapture(ctx))
	assert.Equal(t, 1, f.bridge.closeCalls)

	require.NoError(t, f.controller.HandleCaptureCancelled(ctx, domcapture.CancelledEvent{
		Session: f.bridge.lastOpen,
		Method:  domcapture.MethodFace,
	}))

	snap := f.controller.Snapshot()
	assert.Equal(t, domcheckout.PhaseIdle, snap.Phase)
	assert.Equal(t, "42", snap.Amount, "a cancel never wipes the entered amount")
}

func TestKeypadDroppedWhilePresenting(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))
	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, domcapture.SucceededEvent{
		Session:       f.bridge.lastOpen,
		Method:        domcapture.MethodFace,
		IdentityToken: "tok",
	}))
	require.Equal(t, domcheckout.PhasePresenting, f.controller.Snapshot().Phase)

	pressAll(f.controller, "7")
	assert.Equal(t, "9", f.controller.Snapshot().Amount)
}

func TestSubmitterErrorPresentsFailure(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.submitter.result = nil
	f.submitter.err = errors.New("settlement: unknown capture method")

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))
	require.NoError(t, f.controller.HandleCaptureSucceeded(ctx, domcapture.SucceededEvent{
		Session:       f.bridge.lastOpen,
		Method:        domcapture.MethodFace,
		IdentityToken: "tok",
	}))

	snap := f.controller.Snapshot()
	require.NotNil(t, snap.Notice)
	assert.Equal(t, status.KindFailure, snap.Notice.Kind)
}

func TestLogoutInvalidatesMerchantContext(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	pressAll(f.controller, "9")
	require.NoError(t, f.controller.SelectFace(ctx))
	require.NoError(t, f.controller.CancelCapture(ctx))
	require.NoError(t, f.controller.HandleCaptureCancelled(ctx, domcapture.CancelledEvent{
		Session: f.bridge.lastOpen,
	}))

	require.NoError(t, f.controller.Logout(ctx))
	assert.Equal(t, 1, f.resolver.invalidateCalls)

	// the next selection resolves the context again
	require.NoError(t, f.controller.SelectFace(ctx))
	assert.Equal(t, 2, f.resolver.resolveCalls)
}
