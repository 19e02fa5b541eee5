package fulfillment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warelane/warelane/internal/shared"
)

// FulfillRequest is the transport payload for one ship or receive event.
type FulfillRequest struct {
	Kind       TxnKind          `json:"kind" validate:"required,oneof=SHIP RECEIVE"`
	OccurredAt *time.Time       `json:"occurred_at,omitempty"`
	Note       string           `json:"note,omitempty" validate:"max=500"`
	Lines      []FulfillLineReq `json:"lines" validate:"required,min=1,dive"`
}

// FulfillLineReq is one requested line delta.
type FulfillLineReq struct {
	LineID      int64           `json:"line_id" validate:"required,gt=0"`
	DeltaQty    decimal.Decimal `json:"delta_qty" validate:"required"`
	BatchNumber string          `json:"batch_number,omitempty" validate:"max=100"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	LocationID  int64           `json:"location_id,omitempty" validate:"gte=0"`
}

// ToRequest maps the payload onto the core transaction request.
func (r FulfillRequest) ToRequest() TransactionRequest {
	req := TransactionRequest{Kind: r.Kind, Note: r.Note}
	if r.OccurredAt != nil {
		req.OccurredAt = *r.OccurredAt
	}
	for _, l := range r.Lines {
		req.Lines = append(req.Lines, LineDelta{
			LineID:      l.LineID,
			DeltaQty:    l.DeltaQty,
			BatchNumber: l.BatchNumber,
			ExpiryDate:  l.ExpiryDate,
			LocationID:  l.LocationID,
		})
	}
	return req
}

// ListRequest filters order listings.
type ListRequest struct {
	OrgID  int64      `json:"org_id" validate:"required,gt=0"`
	Kind   *OrderKind `json:"kind,omitempty"`
	Status *Status    `json:"status,omitempty"`
	Search *string    `json:"search,omitempty"`
	Limit  int        `json:"limit" validate:"gte=0,lte=200"`
	Offset int        `json:"offset" validate:"gte=0"`
}

// LineView augments a line with its derived quantities.
type LineView struct {
	Line
	RemainingQty decimal.Decimal `json:"remaining_qty"`
	State        LineState       `json:"state"`
}

// OrderResponse is the detail payload for one order.
type OrderResponse struct {
	Order Order      `json:"order"`
	Lines []LineView `json:"lines"`
}

// NewOrderResponse derives the per-line view for the order's primary
// direction: ordered-vs-shipped for transfer orders still shipping,
// otherwise ordered-vs-received.
func NewOrderResponse(order Order, lines []Line) OrderResponse {
	txn := TxnReceive
	if order.Kind == KindTransfer && order.ActualReceiveDate == nil {
		txn = TxnShip
	}
	views := make([]LineView, 0, len(lines))
	for _, l := range lines {
		base, fulfilled := l.Progress(order.Kind, txn)
		views = append(views, LineView{
			Line:         l,
			RemainingQty: Remaining(base, fulfilled),
			State:        StateOf(base, fulfilled),
		})
	}
	return OrderResponse{Order: order, Lines: views}
}

// FulfillResponse is returned after a committed transaction.
type FulfillResponse struct {
	Order         Order          `json:"order"`
	Lines         []LineView     `json:"lines"`
	Lots          []InventoryLot `json:"lots,omitempty"`
	TransactionID int64          `json:"transaction_id"`
	Warnings      []Warning      `json:"warnings,omitempty"`
}

// ListResponse is the paginated listing payload.
type ListResponse struct {
	Orders     []Order           `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

// ErrorResponse carries a structured rejection to the client. Retryable is
// true only for concurrent-modification conflicts; everything else needs the
// input fixed first.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}
