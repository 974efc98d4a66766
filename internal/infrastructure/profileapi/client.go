package profileapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/facebouk/salepoint/internal/observability"
)

const componentProfileClient = "profile_client"

type TokenSource func() string

// Client resolves operator and business profiles from the auth service.
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
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if obs == nil {
		obs = observability.Nop()
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		http:  hc,
		token: token,
		log:   obs.Logger().With(observability.F("component", componentProfileClient)),
		reqs:  obs.Metrics().Counter(observability.MExternalRequests),
		dur:   obs.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Profile is the operator record attached to a business.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// Business identifies the merchant a terminal collects for.
type Business struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProfileByAssociate fetches the operator profile for the given identity.
func (c *Client) ProfileByAssociate(ctx context.Context, associateID string) (*Profile, error) {
	var out Profile
	if err := c.get(ctx, "/business/associate/"+associateID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type businessEnvelope struct {
	Business Business `json:"business"`
}

// BusinessByAssociate fetches the business the given operator belongs to.
func (c *Client) BusinessByAssociate(ctx context.Context, associateID string) (*Business, error) {
	var out businessEnvelope
	if err := c.get(ctx, "/business/associate/"+associateID+"/business", &out); err != nil {
		return nil, err
	}
	return &out.Business, nil
}

// BusinessID resolves just the business identifier for an operator.
func (c *Client) BusinessID(ctx context.Context, associateID string) (string, error) {
	b, err := c.BusinessByAssociate(ctx, associateID)
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) (err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		c.reqs.Add(1,
			observability.L("target", "profile"),
			observability.L("route", path),
			observability.L("outcome", outcome),
		)
		c.dur.Observe(time.Since(start).Seconds(),
			observability.L("target", "profile"),
			observability.L("route", path),
		)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		outcome = "error"
		return fmt.Errorf("profile request: %w", err)
	}
	if c.token != nil {
		if t := c.token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "error"
		c.log.Warn("profile_request_failed",
			observability.F("route", path),
			observability.F("error", err.Error()),
		)
		return fmt.Errorf("profile request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		outcome = "error"
		return fmt.Errorf("profile request: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		outcome = "error"
		return fmt.Errorf("decode profile response: %w", err)
	}
	return nil
}
