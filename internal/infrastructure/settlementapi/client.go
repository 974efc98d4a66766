package settlementapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/facebouk/salepoint/internal/domain/capture"
	"github.com/facebouk/salepoint/internal/domain/settlement"
	"github.com/facebouk/salepoint/internal/observability"
)

const (
	facePath = "/transaction/business/faceId"
	codePath = "/transaction/business/qrcode"

	componentSettlementClient = "settlement_client"
)

// TokenSource supplies the bearer session token attached to every request.
type TokenSource func() string

// Client is the HTTP gateway to the remote settlement service. It issues
// exactly one request per call and classifies the result; retrying is the
// caller's decision (and per contract requires a fresh capture).
type Client struct {
	base  string
	http  *http.Client
	token TokenSource
	log   observability.Logger
	reqs  observability.Counter
	dur   observability.Histogram
}

func New(base string, hc *http.Client, token TokenSource, obs observability.Observability) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if obs == nil {
		obs = observability.Nop()
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		http:  hc,
		token: token,
		log:   obs.Logger().With(observability.F("component", componentSettlementClient)),
		reqs:  obs.Metrics().Counter(observability.MExternalRequests),
		dur:   obs.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

type faceRequest struct {
	Amount      string `json:"amount"`
	Method      string `json:"method"`
	ReceiverID  string `json:"receiverId"`
	AssociateID string `json:"associateId"`
	FaceID      string `json:"faceId"`
}

type codeRequest struct {
	Amount      string `json:"amount"`
	Method      string `json:"method"`
	ReceiverID  string `json:"receiverId"`
	AssociateID string `json:"associateId"`
	PayerID     string `json:"payerId"`
}

type response struct {
	Status       string `json:"status"`
	Receipt      string `json:"receipt"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) SubmitFace(ctx context.Context, req settlement.Request) (string, error) {
	return c.post(ctx, facePath, faceRequest{
		Amount:      req.Amount,
		Method:      "FACEID",
		ReceiverID:  req.ReceiverID,
		AssociateID: req.AssociateID,
		FaceID:      req.IdentityToken,
	})
}

func (c *Client) SubmitCode(ctx context.Context, req settlement.Request) (string, error) {
	return c.post(ctx, codePath, codeRequest{
		Amount:      req.Amount,
		Method:      string(capture.MethodCode),
		ReceiverID:  req.ReceiverID,
		AssociateID: req.AssociateID,
		PayerID:     req.PayerID,
	})
}

func (c *Client) post(ctx context.Context, path string, body any) (receipt string, err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		c.reqs.Add(1,
			observability.L("target", "settlement"),
			observability.L("route", path),
			observability.L("outcome", outcome),
		)
		c.dur.Observe(time.Since(start).Seconds(),
			observability.L("target", "settlement"),
			observability.L("route", path),
		)
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		outcome = "error"
		return "", &settlement.TransportError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		outcome = "error"
		return "", &settlement.TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if t := c.token(); t != "" {
			httpReq.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		outcome = "error"
		c.log.Warn("settlement_request_failed",
			observability.F("route", path),
			observability.F("error", err.Error()),
		)
		return "", &settlement.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded response
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode/100 != 2 {
		outcome = "rejected"
		if decodeErr == nil && decoded.ErrorMessage != "" {
			return "", &settlement.ServiceError{StatusCode: resp.StatusCode, Message: decoded.ErrorMessage}
		}
		// Non-2xx without a structured body is indistinguishable from a
		// broken transport.
		return "", &settlement.TransportError{Err: errStatus(resp.StatusCode)}
	}
	if decodeErr != nil {
		outcome = "error"
		return "", &settlement.TransportError{Err: decodeErr}
	}

	c.log.Info("settlement_request_done",
		observability.F("route", path),
		observability.F("status", decoded.Status),
	)
	return decoded.Receipt, nil
}

type errStatus int

func (e errStatus) Error() string {
	return fmt.Sprintf("unexpected status %d", int(e))
}
