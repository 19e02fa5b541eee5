package fulfillment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the rejection taxonomy. Typed rejection structs below
// match these via errors.Is while carrying structured data for callers.
var (
	// ErrNotFound indicates the requested order was not found.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidHeaderState rejects transactions against a status that does
	// not permit them.
	ErrInvalidHeaderState = errors.New("order status does not permit this transaction")
	// ErrEmptyTransaction rejects transactions without line items.
	ErrEmptyTransaction = errors.New("transaction requires at least one line")
	// ErrInvalidQuantity rejects zero or negative deltas.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrLineNotFound rejects deltas referencing lines of another order.
	ErrLineNotFound = errors.New("order line not found")
	// ErrOverFulfillmentNotAllowed rejects any excess when policy forbids it.
	ErrOverFulfillmentNotAllowed = errors.New("over-fulfillment not allowed by policy")
	// ErrToleranceExceeded rejects excess beyond the policy tolerance.
	ErrToleranceExceeded = errors.New("over-fulfillment exceeds tolerance")
	// ErrBatchNumberRequired rejects receipts missing a mandatory batch.
	ErrBatchNumberRequired = errors.New("batch number required by policy")
	// ErrExpiryDateRequired rejects receipts missing a mandatory expiry date.
	ErrExpiryDateRequired = errors.New("expiry date required by policy")
	// ErrConcurrentModification surfaces lock or version conflicts at commit
	// time. It is the only retry-worthy rejection.
	ErrConcurrentModification = errors.New("order was modified concurrently")
)

// Retryable reports whether the caller may safely retry the same request.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// HeaderStateError describes which status blocked which transaction kind.
type HeaderStateError struct {
	Kind      OrderKind
	Status    Status
	Attempted string
}

func (e *HeaderStateError) Error() string {
	return fmt.Sprintf("%s order in status %s does not permit %s", e.Kind, e.Status, e.Attempted)
}

func (e *HeaderStateError) Is(target error) bool { return target == ErrInvalidHeaderState }

// QuantityError carries the offending delta.
type QuantityError struct {
	LineID int64
	Qty    decimal.Decimal
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("line %d: quantity %s must be greater than zero", e.LineID, e.Qty)
}

func (e *QuantityError) Is(target error) bool { return target == ErrInvalidQuantity }

// LineNotFoundError identifies the dangling line reference.
type LineNotFoundError struct {
	LineID int64
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("line %d does not belong to this order", e.LineID)
}

func (e *LineNotFoundError) Is(target error) bool { return target == ErrLineNotFound }

// OverFulfillmentError rejects excess quantity when policy disallows it.
type OverFulfillmentError struct {
	LineID    int64
	Projected decimal.Decimal
	Ordered   decimal.Decimal
}

func (e *OverFulfillmentError) Error() string {
	return fmt.Sprintf("line %d: projected %s exceeds ordered %s and over-fulfillment is not allowed",
		e.LineID, e.Projected, e.Ordered)
}

func (e *OverFulfillmentError) Is(target error) bool { return target == ErrOverFulfillmentNotAllowed }

// ToleranceError rejects excess beyond the configured tolerance percentage.
type ToleranceError struct {
	LineID       int64
	OverPct      decimal.Decimal
	TolerancePct decimal.Decimal
}

func (e *ToleranceError) Error() string {
	return fmt.Sprintf("line %d: over-fulfillment %s%% exceeds tolerance %s%%",
		e.LineID, e.OverPct, e.TolerancePct)
}

func (e *ToleranceError) Is(target error) bool { return target == ErrToleranceExceeded }

// BatchRequiredError identifies the line missing a batch number.
type BatchRequiredError struct {
	LineID int64
}

func (e *BatchRequiredError) Error() string {
	return fmt.Sprintf("line %d: batch number required for receipt", e.LineID)
}

func (e *BatchRequiredError) Is(target error) bool { return target == ErrBatchNumberRequired }

// ExpiryRequiredError identifies the line missing an expiry date.
type ExpiryRequiredError struct {
	LineID int64
}

func (e *ExpiryRequiredError) Error() string {
	return fmt.Sprintf("line %d: expiry date required for receipt", e.LineID)
}

func (e *ExpiryRequiredError) Is(target error) bool { return target == ErrExpiryDateRequired }
