package settlement

import (
	"testing"

	"github.com/facebouk/salepoint/internal/domain/capture"
	"github.com/facebouk/salepoint/internal/domain/merchant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mc = merchant.Context{ReceiverID: "B1", AssociateID: "A1"}

func TestNewFaceRequest(t *testing.T) {
	req, err := NewFaceRequest("12.5", mc, "facial-token")
	require.NoError(t, err)
	assert.Equal(t, capture.MethodFace, req.Method)
	assert.Equal(t, "12.5", req.Amount)
	assert.Equal(t, "B1", req.ReceiverID)
	assert.Equal(t, "facial-token", req.IdentityToken)
	assert.Empty(t, req.PayerID)
}

func TestNewCodeRequest(t *testing.T) {
	req, err := NewCodeRequest("5", mc, "U9")
	require.NoError(t, err)
	assert.Equal(t, capture.MethodCode, req.Method)
	assert.Equal(t, "U9", req.PayerID)
	assert.Empty(t, req.IdentityToken)
}

func TestRequestValidation(t *testing.T) {
	_, err := NewFaceRequest("", mc, "tok")
	assert.ErrorIs(t, err, ErrAmountRequired)

	_, err = NewFaceRequest("1", merchant.Context{}, "tok")
	assert.ErrorIs(t, err, ErrContextRequired)

	_, err = NewFaceRequest("1", mc, "")
	assert.ErrorIs(t, err, ErrIdentityRequired)

	_, err = NewCodeRequest("1", mc, "")
	assert.ErrorIs(t, err, ErrPayerRequired)
}

func TestOutcomes(t *testing.T) {
	settled := Settled("R-7")
	assert.Equal(t, StatusSettled, settled.Status)
	assert.Equal(t, "R-7", settled.Receipt)

	rejected := Rejected("Insufficient funds")
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "Insufficient funds", rejected.Reason)
}
