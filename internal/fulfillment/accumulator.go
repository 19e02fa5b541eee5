package fulfillment

import (
	"github.com/shopspring/decimal"

	"github.com/warelane/warelane/internal/policy"
)

var hundred = decimal.NewFromInt(100)

// ApplyDelta projects a requested delta onto the accumulated quantity of one
// line and checks it against the quantity policy. Pure: no side effects, no
// persistence. Returns the new fulfilled quantity and, for over-fulfillment
// within tolerance, a warning.
func ApplyDelta(lineID int64, base, fulfilled, delta decimal.Decimal, pol policy.Policy) (decimal.Decimal, *Warning, error) {
	if delta.Sign() <= 0 {
		return decimal.Decimal{}, nil, &QuantityError{LineID: lineID, Qty: delta}
	}

	projected := fulfilled.Add(delta)
	if projected.LessThanOrEqual(base) {
		return projected, nil, nil
	}

	if !pol.AllowOverFulfillment {
		return decimal.Decimal{}, nil, &OverFulfillmentError{LineID: lineID, Projected: projected, Ordered: base}
	}
	// Percentage excess over a zero baseline is undefined; any excess there
	// is unbounded and rejected outright.
	if base.Sign() <= 0 {
		return decimal.Decimal{}, nil, &OverFulfillmentError{LineID: lineID, Projected: projected, Ordered: base}
	}

	overPct := projected.Sub(base).Div(base).Mul(hundred)
	if overPct.GreaterThan(pol.TolerancePct) {
		return decimal.Decimal{}, nil, &ToleranceError{LineID: lineID, OverPct: overPct, TolerancePct: pol.TolerancePct}
	}
	warn := &Warning{LineID: lineID, Code: WarnOverFulfillment, OverPct: overPct}
	return projected, warn, nil
}
