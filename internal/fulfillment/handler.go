package fulfillment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warelane/warelane/internal/policy"
	"github.com/warelane/warelane/internal/shared"
)

// HeaderIdempotencyKey carries the caller-supplied deduplication key.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler manages fulfillment HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Post("/{id}/fulfill", h.fulfill)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := shared.IdentityFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit := 20
	req := ListRequest{OrgID: id.OrgID, Limit: limit, Offset: (page - 1) * limit}
	if s := r.URL.Query().Get("kind"); s != "" {
		kind := OrderKind(s)
		req.Kind = &kind
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := Status(s)
		req.Status = &status
	}
	if s := r.URL.Query().Get("search"); s != "" {
		req.Search = &s
	}

	orders, total, err := h.service.List(ctx, req)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, ListResponse{
		Orders:     orders,
		Pagination: shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := shared.IdentityFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	order, lines, err := h.service.GetOrderWithLines(ctx, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if order.OrgID != identity.OrgID {
		h.writeError(w, ErrNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, NewOrderResponse(order, lines))
}

// fulfill handles the single ship-or-receive entry point.
func (h *Handler) fulfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := shared.IdentityFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req FulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    "invalid_request",
			Message: err.Error(),
		})
		return
	}

	result, err := h.service.ShipOrReceive(ctx, orderID, req.ToRequest(), identity, r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, FulfillResponse{
		Order:         result.Order,
		Lines:         NewOrderResponse(result.Order, result.Lines).Lines,
		Lots:          result.Lots,
		TransactionID: result.Transaction.ID,
		Warnings:      result.Warnings,
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := shared.IdentityFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	order, err := h.service.Cancel(ctx, orderID, identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewOrderResponse(order, order.Lines))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("encode response", slog.Any("error", err))
	}
}

// writeError maps rejection kinds to HTTP status codes with structured detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Message: err.Error(), Retryable: Retryable(err)}
	status := http.StatusUnprocessableEntity

	var headerErr *HeaderStateError
	var qtyErr *QuantityError
	var lineErr *LineNotFoundError
	var overErr *OverFulfillmentError
	var tolErr *ToleranceError
	var batchErr *BatchRequiredError
	var expiryErr *ExpiryRequiredError

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, policy.ErrPolicyNotFound):
		status = http.StatusNotFound
		resp.Code = "not_found"
	case errors.As(err, &headerErr):
		status = http.StatusConflict
		resp.Code = "invalid_header_state"
		resp.Details = map[string]any{"kind": headerErr.Kind, "status": headerErr.Status, "attempted": headerErr.Attempted}
	case errors.Is(err, ErrConcurrentModification):
		status = http.StatusConflict
		resp.Code = "concurrent_modification"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		status = http.StatusConflict
		resp.Code = "duplicate_request"
	case errors.Is(err, ErrEmptyTransaction):
		status = http.StatusBadRequest
		resp.Code = "empty_transaction"
	case errors.As(err, &qtyErr):
		status = http.StatusBadRequest
		resp.Code = "invalid_quantity"
		resp.Details = map[string]any{"line_id": qtyErr.LineID, "qty": qtyErr.Qty}
	case errors.As(err, &lineErr):
		resp.Code = "line_not_found"
		resp.Details = map[string]any{"line_id": lineErr.LineID}
	case errors.Is(err, shared.ErrReferenceNotFound):
		resp.Code = "reference_not_found"
	case errors.As(err, &overErr):
		resp.Code = "over_fulfillment_not_allowed"
		resp.Details = map[string]any{"line_id": overErr.LineID, "projected": overErr.Projected, "ordered": overErr.Ordered}
	case errors.As(err, &tolErr):
		resp.Code = "tolerance_exceeded"
		resp.Details = map[string]any{"line_id": tolErr.LineID, "over_pct": tolErr.OverPct, "tolerance_pct": tolErr.TolerancePct}
	case errors.As(err, &batchErr):
		resp.Code = "batch_number_required"
		resp.Details = map[string]any{"line_id": batchErr.LineID}
	case errors.As(err, &expiryErr):
		resp.Code = "expiry_date_required"
		resp.Details = map[string]any{"line_id": expiryErr.LineID}
	default:
		h.logger.Error("fulfillment request failed", slog.Any("error", err))
		status = http.StatusInternalServerError
		resp.Code = "internal_error"
		resp.Message = http.StatusText(http.StatusInternalServerError)
	}

	h.writeJSON(w, status, resp)
}
