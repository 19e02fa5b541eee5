// Package fulfillment tracks incremental shipment and receipt of multi-line
// orders. It owns the quantity-conservation rules: per-line fulfilled
// quantities only ever grow, header status derives from line states, and a
// transaction either applies to every requested line or to none.
package fulfillment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warelane/warelane/internal/policy"
)

// OrderKind distinguishes the two fulfillable order variants.
type OrderKind string

const (
	// KindTransfer is an inter-warehouse transfer order: shipped from the
	// source warehouse, then received at the destination.
	KindTransfer OrderKind = "TRANSFER"
	// KindPurchase is a purchase order received into goods-receipt records.
	KindPurchase OrderKind = "PURCHASE"
)

// TxnKind enumerates fulfillment transaction directions.
type TxnKind string

const (
	TxnShip    TxnKind = "SHIP"
	TxnReceive TxnKind = "RECEIVE"
)

// Status represents the lifecycle of a fulfillable order. The alphabet is
// split per order kind; see ValidFor.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPlanned           Status = "PLANNED"
	StatusPartiallyShipped  Status = "PARTIALLY_SHIPPED"
	StatusShipped           Status = "SHIPPED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusReceived          Status = "RECEIVED"
	StatusConfirmed         Status = "CONFIRMED"
	StatusPartial           Status = "PARTIAL"
	StatusClosed            Status = "CLOSED"
	StatusCancelled         Status = "CANCELLED"
)

// ValidFor checks membership in the kind-specific alphabet.
func (s Status) ValidFor(kind OrderKind) bool {
	switch kind {
	case KindTransfer:
		switch s {
		case StatusDraft, StatusPlanned, StatusPartiallyShipped, StatusShipped,
			StatusPartiallyReceived, StatusReceived, StatusCancelled:
			return true
		}
	case KindPurchase:
		switch s {
		case StatusDraft, StatusConfirmed, StatusPartial, StatusClosed, StatusCancelled:
			return true
		}
	}
	return false
}

// CanShip checks if a transfer order accepts a ship transaction.
func (s Status) CanShip() bool {
	return s == StatusPlanned || s == StatusPartiallyShipped || s == StatusShipped
}

// CanReceiveTransfer checks if a transfer order accepts a receive
// transaction. Receive-side states are only reachable after shipment began.
func (s Status) CanReceiveTransfer() bool {
	return s == StatusPartiallyShipped || s == StatusShipped || s == StatusPartiallyReceived
}

// CanReceivePurchase checks if a purchase order accepts a receive transaction.
func (s Status) CanReceivePurchase() bool {
	return s == StatusConfirmed || s == StatusPartial
}

// CanCancel checks if the status still permits cancellation. Orders with any
// fulfillment are additionally guarded in the service.
func (s Status) CanCancel(kind OrderKind) bool {
	switch kind {
	case KindTransfer:
		return s == StatusDraft || s == StatusPlanned
	case KindPurchase:
		return s == StatusDraft || s == StatusConfirmed
	}
	return false
}

// LineState classifies the fulfillment progress of a single line.
type LineState string

const (
	LineNotStarted LineState = "NOT_STARTED"
	LinePartial    LineState = "PARTIAL"
	LineComplete   LineState = "COMPLETE"
)

// Order is the header of a transfer or purchase order. It owns its lines;
// lines are never persisted without their header.
type Order struct {
	ID     int64     `json:"id"`
	OrgID  int64     `json:"org_id"`
	Number string    `json:"number"`
	Kind   OrderKind `json:"kind"`
	Status Status    `json:"status"`

	// Transfer orders move stock between two warehouses; purchase orders
	// receive from a supplier into one.
	SrcWarehouseID *int64 `json:"src_warehouse_id,omitempty"`
	DstWarehouseID *int64 `json:"dst_warehouse_id,omitempty"`
	SupplierID     *int64 `json:"supplier_id,omitempty"`
	WarehouseID    int64  `json:"warehouse_id"`
	LocationID     int64  `json:"location_id"`

	PlannedShipDate    *time.Time `json:"planned_ship_date,omitempty"`
	PlannedReceiveDate *time.Time `json:"planned_receive_date,omitempty"`
	// Actual dates are stamped once, by the first transaction of the
	// matching kind, and never overwritten.
	ActualShipDate    *time.Time `json:"actual_ship_date,omitempty"`
	ActualReceiveDate *time.Time `json:"actual_receive_date,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []Line `json:"lines,omitempty"`
}

// Line is one product/quantity entry on an order. OrderedQty is fixed at
// creation; the fulfilled quantities accumulate monotonically.
type Line struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	UOM         string          `json:"uom"`
	OrderedQty  decimal.Decimal `json:"ordered_qty"`
	ShippedQty  decimal.Decimal `json:"shipped_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	LineOrder   int             `json:"line_order"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Progress returns the baseline and accumulated quantity for one fulfillment
// direction. Transfer receiving accumulates against what was shipped, not
// against what was ordered.
func (l Line) Progress(kind OrderKind, txn TxnKind) (base, fulfilled decimal.Decimal) {
	if txn == TxnShip {
		return l.OrderedQty, l.ShippedQty
	}
	if kind == KindTransfer {
		return l.ShippedQty, l.ReceivedQty
	}
	return l.OrderedQty, l.ReceivedQty
}

// Remaining computes the open quantity, clamped at zero so over-fulfillment
// never reports negative remainders.
func Remaining(base, fulfilled decimal.Decimal) decimal.Decimal {
	rem := base.Sub(fulfilled)
	if rem.Sign() < 0 {
		return decimal.Zero
	}
	return rem
}

// StateOf derives the line state from baseline and fulfilled quantity.
func StateOf(base, fulfilled decimal.Decimal) LineState {
	if fulfilled.Sign() == 0 {
		return LineNotStarted
	}
	if Remaining(base, fulfilled).Sign() == 0 {
		return LineComplete
	}
	return LinePartial
}

// LineDelta is one requested quantity movement within a transaction.
type LineDelta struct {
	LineID      int64
	DeltaQty    decimal.Decimal
	BatchNumber string
	ExpiryDate  *time.Time
	// LocationID overrides the order's default receiving location; zero
	// keeps the default.
	LocationID int64
}

// TransactionRequest is a proposed ship or receive event across one or more
// lines of a single order.
type TransactionRequest struct {
	Kind       TxnKind
	OccurredAt time.Time
	Note       string
	Lines      []LineDelta
}

// WarningCode labels non-blocking validation findings.
type WarningCode string

// WarnOverFulfillment flags a delta that exceeds the ordered quantity within
// the policy tolerance.
const WarnOverFulfillment WarningCode = "over_fulfillment"

// Warning is returned alongside a successful result; it never blocks.
type Warning struct {
	LineID  int64           `json:"line_id"`
	Code    WarningCode     `json:"code"`
	OverPct decimal.Decimal `json:"over_pct"`
}

// AcceptedDelta is a per-line delta that passed validation, carrying the
// projected fulfilled quantity the executor will persist.
type AcceptedDelta struct {
	LineID        int64
	ProductID     int64
	UOM           string
	Delta         decimal.Decimal
	NewFulfilled  decimal.Decimal
	OverFulfilled bool
	OverPct       decimal.Decimal
	BatchNumber   string
	ExpiryDate    *time.Time
	LocationID    int64
}

// ValidatedTransaction is the validator's accepted output, ready for the
// executor. No partial acceptance exists: either every requested line is
// present here or validation failed as a whole.
type ValidatedTransaction struct {
	Kind       TxnKind
	OccurredAt time.Time
	Note       string
	Deltas     []AcceptedDelta
	Warnings   []Warning
}

// Transaction is the immutable audit record of an applied fulfillment event.
type Transaction struct {
	ID         int64             `json:"id"`
	OrderID    int64             `json:"order_id"`
	Kind       TxnKind           `json:"kind"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorID    int64             `json:"actor_id"`
	RefID      string            `json:"ref_id"`
	Note       string            `json:"note,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Lines      []TransactionLine `json:"lines,omitempty"`
}

// TransactionLine captures the exact delta applied to one order line.
type TransactionLine struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	LineID        int64           `json:"line_id"`
	DeltaQty      decimal.Decimal `json:"delta_qty"`
	BatchNumber   string          `json:"batch_number,omitempty"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	LocationID    int64           `json:"location_id,omitempty"`
	OverFulfilled bool            `json:"over_fulfilled"`
	OverPct       decimal.Decimal `json:"over_pct"`
}

// InventoryLot is the license plate created for each received line delta.
// Its later movement lifecycle belongs to warehouse operations, not here.
type InventoryLot struct {
	ID            int64                `json:"id"`
	Number        string               `json:"number"`
	OrgID         int64                `json:"org_id"`
	ProductID     int64                `json:"product_id"`
	Quantity      decimal.Decimal      `json:"quantity"`
	UOM           string               `json:"uom"`
	WarehouseID   int64                `json:"warehouse_id"`
	LocationID    int64                `json:"location_id"`
	BatchNumber   string               `json:"batch_number,omitempty"`
	ExpiryDate    *time.Time           `json:"expiry_date,omitempty"`
	QualityStatus policy.QualityStatus `json:"quality_status"`
	TransactionID int64                `json:"transaction_id"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Result is returned by the executor after a committed transaction.
type Result struct {
	Order       Order
	Lines       []Line
	Lots        []InventoryLot
	Transaction Transaction
	Warnings    []Warning
}
