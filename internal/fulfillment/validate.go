package fulfillment

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warelane/warelane/internal/policy"
)

// Validate checks a proposed transaction against policy and current line
// state. Pure: no clock, no persistence; the same inputs always yield the
// same outcome. Checks run in a fixed order and short-circuit on the first
// failure. A single failing line rejects the whole transaction; nothing is
// ever partially accepted.
func Validate(order Order, lines []Line, req TransactionRequest, pol policy.Policy) (ValidatedTransaction, error) {
	if err := checkHeaderState(order, req.Kind); err != nil {
		return ValidatedTransaction{}, err
	}

	if len(req.Lines) == 0 {
		return ValidatedTransaction{}, ErrEmptyTransaction
	}

	lineByID := make(map[int64]Line, len(lines))
	for _, l := range lines {
		lineByID[l.ID] = l
	}
	for _, d := range req.Lines {
		if _, ok := lineByID[d.LineID]; !ok {
			return ValidatedTransaction{}, &LineNotFoundError{LineID: d.LineID}
		}
	}

	// Running fulfilled quantities, so repeated deltas against the same line
	// within one request accumulate before the tolerance check.
	running := make(map[int64]decimal.Decimal, len(req.Lines))
	vt := ValidatedTransaction{
		Kind:       req.Kind,
		OccurredAt: req.OccurredAt,
		Note:       req.Note,
		Deltas:     make([]AcceptedDelta, 0, len(req.Lines)),
	}
	for _, d := range req.Lines {
		line := lineByID[d.LineID]
		base, fulfilled := line.Progress(order.Kind, req.Kind)
		if prev, ok := running[d.LineID]; ok {
			fulfilled = prev
		}
		projected, warn, err := ApplyDelta(d.LineID, base, fulfilled, d.DeltaQty, pol)
		if err != nil {
			return ValidatedTransaction{}, err
		}
		running[d.LineID] = projected
		accepted := AcceptedDelta{
			LineID:       d.LineID,
			ProductID:    line.ProductID,
			UOM:          line.UOM,
			Delta:        d.DeltaQty,
			NewFulfilled: projected,
			BatchNumber:  d.BatchNumber,
			ExpiryDate:   d.ExpiryDate,
			LocationID:   d.LocationID,
		}
		if warn != nil {
			accepted.OverFulfilled = true
			accepted.OverPct = warn.OverPct
			vt.Warnings = append(vt.Warnings, *warn)
		}
		vt.Deltas = append(vt.Deltas, accepted)
	}

	if req.Kind == TxnReceive && pol.RequireBatch {
		for _, d := range req.Lines {
			if strings.TrimSpace(d.BatchNumber) == "" {
				return ValidatedTransaction{}, &BatchRequiredError{LineID: d.LineID}
			}
		}
	}
	if req.Kind == TxnReceive && pol.RequireExpiry {
		for _, d := range req.Lines {
			if d.ExpiryDate == nil {
				return ValidatedTransaction{}, &ExpiryRequiredError{LineID: d.LineID}
			}
		}
	}

	return vt, nil
}

func checkHeaderState(order Order, txn TxnKind) error {
	switch txn {
	case TxnShip:
		if order.Kind == KindTransfer && order.Status.CanShip() {
			return nil
		}
	case TxnReceive:
		if order.Kind == KindTransfer && order.Status.CanReceiveTransfer() {
			return nil
		}
		if order.Kind == KindPurchase && order.Status.CanReceivePurchase() {
			return nil
		}
	}
	return &HeaderStateError{Kind: order.Kind, Status: order.Status, Attempted: string(txn)}
}
