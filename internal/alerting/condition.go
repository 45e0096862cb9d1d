package alerting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCondition = errors.New("invalid alert condition")
	ErrUnknownOperator  = errors.New("unknown condition operator")
)

type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
)

// PriceTolerance is the absolute difference under which two prices are
// considered equal by the "=" operator.
var PriceTolerance = decimal.New(1, -4)

// Condition is the decoded alert condition payload.
type Condition struct {
	Operator  Operator        `json:"operator"`
	Threshold decimal.Decimal `json:"threshold"`
	Timeframe string          `json:"timeframe,omitempty"`
}

type rawCondition struct {
	Operator  string           `json:"operator"`
	Threshold *decimal.Decimal `json:"threshold"`
	Timeframe string           `json:"timeframe"`
}

// ParseCondition decodes and validates a stored condition.
func ParseCondition(raw []byte) (Condition, error) {
	if len(raw) == 0 {
		return Condition{}, fmt.Errorf("%w: empty payload", ErrInvalidCondition)
	}
	var rc rawCondition
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Condition{}, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if rc.Threshold == nil {
		return Condition{}, fmt.Errorf("%w: threshold missing", ErrInvalidCondition)
	}
	op, err := ParseOperator(rc.Operator)
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Operator:  op,
		Threshold: *rc.Threshold,
		Timeframe: strings.TrimSpace(rc.Timeframe),
	}, nil
}

func ParseOperator(raw string) (Operator, error) {
	switch op := Operator(strings.TrimSpace(raw)); op {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual:
		return op, nil
	case "==":
		return OpEqual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, raw)
	}
}

// Compare applies op to value and threshold. Equality uses tolerance as an
// absolute bound.
func (op Operator) Compare(value, threshold, tolerance decimal.Decimal) bool {
	switch op {
	case OpGreater:
		return value.GreaterThan(threshold)
	case OpLess:
		return value.LessThan(threshold)
	case OpGreaterEqual:
		return value.GreaterThanOrEqual(threshold)
	case OpLessEqual:
		return value.LessThanOrEqual(threshold)
	case OpEqual:
		return value.Sub(threshold).Abs().LessThanOrEqual(tolerance)
	default:
		return false
	}
}

// Describe renders the condition for humans, e.g. "BTCUSDT price > 100000".
func (c Condition) Describe(subject, quantity string) string {
	var b strings.Builder
	if subject != "" {
		b.WriteString(subject)
		b.WriteString(" ")
	}
	b.WriteString(quantity)
	b.WriteString(" ")
	b.WriteString(string(c.Operator))
	b.WriteString(" ")
	b.WriteString(c.Threshold.String())
	if c.Timeframe != "" {
		b.WriteString(" (")
		b.WriteString(c.Timeframe)
		b.WriteString(")")
	}
	return b.String()
}
