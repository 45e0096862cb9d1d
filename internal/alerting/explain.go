package alerting

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"marketalert/internal/models"
)

// FallbackExplanation is sent when no explanation can be produced.
const FallbackExplanation = "No additional analysis is available for this alert."

type Explainer interface {
	Explain(ctx context.Context, alert models.Alert, ev Evaluation) (string, error)
}

// TemplateExplainer describes how far the value moved past the threshold.
type TemplateExplainer struct{}

func (TemplateExplainer) Explain(_ context.Context, alert models.Alert, ev Evaluation) (string, error) {
	subject := alert.Symbol()
	if subject == "" {
		return "", fmt.Errorf("alert %s has no ticker", alert.ID)
	}
	threshold := ev.Condition.Threshold
	diff := ev.Value.Sub(threshold)

	var direction string
	switch diff.Sign() {
	case 1:
		direction = "above"
	case -1:
		direction = "below"
	default:
		direction = "at"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s is %s, %s the threshold of %s", subject, ev.Quantity, ev.Value.String(), direction, threshold.String())
	if diff.Sign() != 0 {
		fmt.Fprintf(&b, " by %s", diff.Abs().String())
		if !threshold.IsZero() {
			pct := diff.Abs().Div(threshold.Abs()).Mul(decimal.NewFromInt(100))
			fmt.Fprintf(&b, " (%s%%)", pct.StringFixed(2))
		}
	}
	b.WriteString(".")
	return b.String(), nil
}

// explain never fails: errors and empty output fall back to a fixed text.
func explain(ctx context.Context, e Explainer, alert models.Alert, ev Evaluation) string {
	if e == nil {
		return FallbackExplanation
	}
	text, err := e.Explain(ctx, alert, ev)
	if err != nil || strings.TrimSpace(text) == "" {
		return FallbackExplanation
	}
	return text
}
