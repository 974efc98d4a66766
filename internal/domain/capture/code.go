package capture

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPayloadMalformed  = errors.New("capture: payload is not valid JSON")
	ErrPayloadIncomplete = errors.New("capture: payload is missing required fields")
	ErrPayloadAmount     = errors.New("capture: payload amount must be a positive number")
	ErrPayloadTimestamp  = errors.New("capture: payload timestamp is not parseable")
	ErrPayloadKind       = errors.New("capture: payload transaction kind is not recognized")
)

// Recognized transaction-intent tags a scanned code may carry.
var recognizedKinds = map[string]struct{}{
	"PAYMENT":  {},
	"transfer": {},
	"request":  {},
}

// CodePayload is the validated content of a scanned code.
type CodePayload struct {
	Kind     string
	Amount   decimal.Decimal
	PayerID  string
	IssuedAt time.Time
}

type rawCodePayload struct {
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// ParseCodePayload parses and validates one scanned payload. Invalid
// payloads never reach the submitter; callers surface the error and
// re-arm the scanner.
func ParseCodePayload(raw string) (*CodePayload, error) {
	var p rawCodePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, ErrPayloadMalformed
	}
	if p.Type == "" || p.Amount == "" || p.UserID == "" || p.Timestamp == "" {
		return nil, ErrPayloadIncomplete
	}
	amt, err := decimal.NewFromString(p.Amount)
	if err != nil || !amt.IsPositive() {
		return nil, ErrPayloadAmount
	}
	issued, err := time.Parse(time.RFC3339, p.Timestamp)
	if err != nil {
		return nil, ErrPayloadTimestamp
	}
	if _, ok := recognizedKinds[p.Type]; !ok {
		return nil, ErrPayloadKind
	}
	return &CodePayload{
		Kind:     p.Type,
		Amount:   amt,
		PayerID:  p.UserID,
		IssuedAt: issued,
	}, nil
}
