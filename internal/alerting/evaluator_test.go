package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"marketalert/internal/models"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func alertOf(kind models.AlertKind, condition string) models.Alert {
	return models.Alert{
		UserID:    "u1",
		Kind:      kind,
		Condition: datatypes.JSON(condition),
		IsActive:  true,
		Ticker:    &models.StockTicker{Symbol: "BTCUSDT"},
	}
}

func TestEvaluate_Price(t *testing.T) {
	cases := []struct {
		name      string
		condition string
		price     string
		want      bool
	}{
		{"above", `{"operator":">","threshold":100000}`, "105000", true},
		{"below threshold", `{"operator":">","threshold":100000}`, "95000", false},
		{"strict at threshold", `{"operator":">","threshold":100000}`, "100000", false},
		{"less than", `{"operator":"<","threshold":50}`, "49.99", true},
		{"greater equal", `{"operator":">=","threshold":"10.5"}`, "10.5", true},
		{"less equal", `{"operator":"<=","threshold":"10.5"}`, "10.51", false},
		{"equal within tolerance", `{"operator":"=","threshold":"1.2345"}`, "1.23455", true},
		{"equal outside tolerance", `{"operator":"=","threshold":"1.2345"}`, "1.2347", false},
		{"double equals", `{"operator":"==","threshold":"7"}`, "7", true},
	}
	for _, tc := range cases {
		snap := MarketSnapshot{Symbol: "BTCUSDT", Price: dec(tc.price)}
		ev := Evaluate(alertOf(models.AlertKindPrice, tc.condition), snap)
		if ev.Err != nil {
			t.Fatalf("%s: err=%v", tc.name, ev.Err)
		}
		if ev.Triggered != tc.want {
			t.Fatalf("%s: triggered=%v want %v", tc.name, ev.Triggered, tc.want)
		}
		if ev.Quantity != "price" || !ev.Value.Equal(*dec(tc.price)) {
			t.Fatalf("%s: quantity=%s value=%s", tc.name, ev.Quantity, ev.Value)
		}
	}
}

func TestEvaluate_VolumeIsWholeUnitsStrictlyGreater(t *testing.T) {
	cases := []struct {
		volume string
		op     string
		want   bool
	}{
		{"1001", ">", true},
		{"1000.9", ">", false},
		{"1000", ">=", false},
		{"5000", "<", true},
	}
	for _, tc := range cases {
		a := alertOf(models.AlertKindVolume, `{"operator":"`+tc.op+`","threshold":1000}`)
		ev := Evaluate(a, MarketSnapshot{Volume: dec(tc.volume)})
		if ev.Triggered != tc.want {
			t.Fatalf("volume=%s op=%s triggered=%v want %v", tc.volume, tc.op, ev.Triggered, tc.want)
		}
	}
}

func TestEvaluate_NeverTriggers(t *testing.T) {
	snap := MarketSnapshot{Price: dec("105000"), Volume: dec("1")}
	cases := []struct {
		name    string
		alert   models.Alert
		snap    MarketSnapshot
		wantErr error
	}{
		{"sentiment", alertOf(models.AlertKindSentiment, `{"operator":">","threshold":0}`), snap, nil},
		{"technical indicator", alertOf(models.AlertKindTechnicalIndicator, `{"operator":">","threshold":0}`), snap, nil},
		{"volatility", alertOf(models.AlertKindVolatility, `{"operator":">","threshold":0}`), snap, nil},
		{"unknown kind", alertOf("astrology", `{"operator":">","threshold":0}`), snap, nil},
		{"missing price", alertOf(models.AlertKindPrice, `{"operator":">","threshold":1}`), MarketSnapshot{}, nil},
		{"missing volume", alertOf(models.AlertKindVolume, `{"operator":">","threshold":1}`), MarketSnapshot{}, nil},
		{"malformed json", alertOf(models.AlertKindPrice, `{"operator":`), snap, ErrInvalidCondition},
		{"missing threshold", alertOf(models.AlertKindPrice, `{"operator":">"}`), snap, ErrInvalidCondition},
		{"empty payload", alertOf(models.AlertKindPrice, ``), snap, ErrInvalidCondition},
		{"bad operator", alertOf(models.AlertKindPrice, `{"operator":"~","threshold":1}`), snap, ErrUnknownOperator},
	}
	for _, tc := range cases {
		ev := Evaluate(tc.alert, tc.snap)
		if ev.Triggered {
			t.Fatalf("%s: triggered", tc.name)
		}
		if tc.wantErr == nil && ev.Err != nil {
			t.Fatalf("%s: err=%v", tc.name, ev.Err)
		}
		if tc.wantErr != nil && !errors.Is(ev.Err, tc.wantErr) {
			t.Fatalf("%s: err=%v want %v", tc.name, ev.Err, tc.wantErr)
		}
	}
}

func TestHasComparator(t *testing.T) {
	if !HasComparator(models.AlertKindPrice) || !HasComparator(models.AlertKindVolume) {
		t.Fatalf("price and volume must be evaluable")
	}
	if HasComparator(models.AlertKindSentiment) {
		t.Fatalf("sentiment has no comparator")
	}
}

func TestSnapshotFromTicker_Copies(t *testing.T) {
	ticker := &models.StockTicker{Symbol: "ETHUSDT", CurrentPrice: dec("10"), Volume: dec("3")}
	snap := SnapshotFromTicker(ticker)
	*ticker.CurrentPrice = decimal.NewFromInt(99)
	if !snap.Price.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("snapshot aliases the ticker: %s", snap.Price)
	}
	if empty := SnapshotFromTicker(nil); empty.Price != nil || empty.Volume != nil {
		t.Fatalf("nil ticker should give empty snapshot")
	}
}

func TestCondition_Describe(t *testing.T) {
	c, err := ParseCondition([]byte(`{"operator":">","threshold":100000,"timeframe":" 1h "}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := c.Describe("BTCUSDT", "price"); got != "BTCUSDT price > 100000 (1h)" {
		t.Fatalf("describe=%q", got)
	}
	c.Timeframe = ""
	if got := c.Describe("", "volume"); got != "volume > 100000" {
		t.Fatalf("describe=%q", got)
	}
}

type failingExplainer struct{}

func (failingExplainer) Explain(context.Context, models.Alert, Evaluation) (string, error) {
	return "", errors.New("model unavailable")
}

func TestExplain(t *testing.T) {
	a := alertOf(models.AlertKindPrice, `{"operator":">","threshold":100000}`)
	ev := Evaluate(a, MarketSnapshot{Price: dec("105000")})

	got := explain(context.Background(), TemplateExplainer{}, a, ev)
	if !strings.Contains(got, "BTCUSDT price is 105000, above the threshold of 100000 by 5000 (5.00%)") {
		t.Fatalf("explanation=%q", got)
	}
	if got := explain(context.Background(), failingExplainer{}, a, ev); got != FallbackExplanation {
		t.Fatalf("failing explainer=%q", got)
	}
	if got := explain(context.Background(), nil, a, ev); got != FallbackExplanation {
		t.Fatalf("nil explainer=%q", got)
	}
	a.Ticker = nil
	if got := explain(context.Background(), TemplateExplainer{}, a, ev); got != FallbackExplanation {
		t.Fatalf("no ticker=%q", got)
	}
}
