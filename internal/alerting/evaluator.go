package alerting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketalert/internal/models"
)

// MarketSnapshot is the ticker state one alert is evaluated against. It is
// copied out of the loaded row and never written back.
type MarketSnapshot struct {
	Symbol string
	Price  *decimal.Decimal
	Volume *decimal.Decimal
	AsOf   time.Time
}

func SnapshotFromTicker(t *models.StockTicker) MarketSnapshot {
	if t == nil {
		return MarketSnapshot{}
	}
	snap := MarketSnapshot{Symbol: t.Symbol, AsOf: t.UpdatedAt}
	if t.PriceUpdatedAt != nil {
		snap.AsOf = *t.PriceUpdatedAt
	}
	if t.CurrentPrice != nil {
		p := *t.CurrentPrice
		snap.Price = &p
	}
	if t.Volume != nil {
		v := *t.Volume
		snap.Volume = &v
	}
	return snap
}

// Evaluation is the result of checking one alert.
type Evaluation struct {
	Triggered bool
	Value     decimal.Decimal
	Condition Condition
	Quantity  string
	Err       error
}

// comparator checks one kind of alert. ok is false when the snapshot has no
// value for the quantity.
type comparator struct {
	quantity string
	check    func(c Condition, snap MarketSnapshot) (value decimal.Decimal, triggered bool, ok bool)
}

// comparators lists the kinds that can trigger. Kinds without an entry
// never trigger.
var comparators = map[models.AlertKind]comparator{
	models.AlertKindPrice:  {quantity: "price", check: comparePrice},
	models.AlertKindVolume: {quantity: "volume", check: compareVolume},
}

func comparePrice(c Condition, snap MarketSnapshot) (decimal.Decimal, bool, bool) {
	if snap.Price == nil {
		return decimal.Zero, false, false
	}
	return *snap.Price, c.Operator.Compare(*snap.Price, c.Threshold, PriceTolerance), true
}

// compareVolume uses whole units and is always strictly greater-than,
// whatever operator the condition carries.
func compareVolume(c Condition, snap MarketSnapshot) (decimal.Decimal, bool, bool) {
	if snap.Volume == nil {
		return decimal.Zero, false, false
	}
	v := decimal.NewFromInt(snap.Volume.IntPart())
	return v, v.GreaterThan(c.Threshold), true
}

// HasComparator reports whether alerts of kind can ever trigger.
func HasComparator(kind models.AlertKind) bool {
	_, ok := comparators[kind]
	return ok
}

// Evaluate checks alert against snap. It never panics: unknown kinds,
// malformed conditions and missing data all yield an untriggered result.
func Evaluate(alert models.Alert, snap MarketSnapshot) (ev Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			ev = Evaluation{Err: panicError{value: r}}
		}
	}()

	cmp, ok := comparators[alert.Kind]
	if !ok {
		return Evaluation{}
	}
	cond, err := ParseCondition(alert.Condition)
	if err != nil {
		return Evaluation{Err: err}
	}
	value, triggered, ok := cmp.check(cond, snap)
	ev = Evaluation{Condition: cond, Quantity: cmp.quantity, Value: value}
	if !ok {
		return ev
	}
	ev.Triggered = triggered
	return ev
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("evaluation panicked: %v", p.value)
}
