package amount

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxFractionDigits caps the fractional part entered through the keypad.
const MaxFractionDigits = 3

const separator = "."

// Editor holds the decimal string being entered via a keypad. The empty
// string means "unset". Every operation is total: bad input is a no-op,
// never an error.
type Editor struct {
	raw string
}

func NewEditor() *Editor { return &Editor{} }

// AppendDigit appends a single digit. It is a no-op when d is not 0-9 or
// when the fractional part already holds MaxFractionDigits digits.
func (e *Editor) AppendDigit(d byte) {
	if d < '0' || d > '9' {
		return
	}
	if idx := strings.Index(e.raw, separator); idx >= 0 {
		if len(e.raw)-idx-1 >= MaxFractionDigits {
			return
		}
	}
	e.raw += string(d)
}

// AppendDecimal inserts the fractional separator. A second separator is a
// no-op; on an empty amount it seeds "0.".
func (e *Editor) AppendDecimal() {
	if strings.Contains(e.raw, separator) {
		return
	}
	if e.raw == "" {
		e.raw = "0" + separator
		return
	}
	e.raw += separator
}

// DeleteLast removes the last entered character. Deleting past empty
// leaves the amount empty.
func (e *Editor) DeleteLast() {
	if e.raw == "" {
		return
	}
	e.raw = e.raw[:len(e.raw)-1]
}

func (e *Editor) Clear() { e.raw = "" }

func (e *Editor) Value() string { return e.raw }

// Decimal parses the entered amount. An unset amount parses as zero so
// guards can treat "" and "0" uniformly.
func (e *Editor) Decimal() (decimal.Decimal, error) {
	if e.raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(e.raw)
}

// IsPositive reports whether the entered amount parses to a value
// strictly greater than zero.
func (e *Editor) IsPositive() bool {
	d, err := e.Decimal()
	if err != nil {
		return false
	}
	return d.IsPositive()
}
