package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warelane/warelane/internal/policy"
	"github.com/warelane/warelane/internal/shared"
)

// PolicyPort resolves the fulfillment policy in effect for an organization.
type PolicyPort interface {
	Get(ctx context.Context, orgID int64) (policy.Policy, error)
}

// MasterDataPort resolves external references. Lookup failures surface as
// shared.ErrReferenceNotFound without retry.
type MasterDataPort interface {
	LocationExists(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates fulfillment transactions. It is safe for concurrent
// use: transactions against different orders proceed in parallel, while the
// repository's header lock serialises transactions against the same order.
type Service struct {
	repo        Repository
	policies    PolicyPort
	masterdata  MasterDataPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService builds Service.
func NewService(repo Repository, policies PolicyPort, masterdata MasterDataPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, policies: policies, masterdata: masterdata, audit: audit, idempotency: idem}
}

// GetOrderWithLines returns an order and its lines. This read does not take
// the aggregate lock and may trail an in-flight transaction slightly.
func (s *Service) GetOrderWithLines(ctx context.Context, orderID int64) (Order, []Line, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// List returns order headers for an organization.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	return s.repo.List(ctx, req)
}

// GetPolicy exposes the policy resolver to callers.
func (s *Service) GetPolicy(ctx context.Context, orgID int64) (policy.Policy, error) {
	return s.policies.Get(ctx, orgID)
}

// ShipOrReceive validates and applies one fulfillment transaction. The policy
// snapshot taken here is reused through to commit; the header lock taken
// inside the repository transaction guarantees no other transaction on the
// same order interleaves. idemKey is the caller-supplied deduplication key;
// empty skips the check, since each call is otherwise a new transaction.
func (s *Service) ShipOrReceive(ctx context.Context, orderID int64, req TransactionRequest, actor shared.Identity, idemKey string) (Result, error) {
	// Defaulted here so Validate stays a pure function of its inputs.
	if req.OccurredAt.IsZero() {
		req.OccurredAt = time.Now().UTC()
	}

	pol, err := s.policies.Get(ctx, actor.OrgID)
	if err != nil {
		return Result{}, err
	}

	if req.Kind == TxnReceive && s.masterdata != nil {
		for _, d := range req.Lines {
			if d.LocationID == 0 {
				continue
			}
			if err := s.masterdata.LocationExists(ctx, d.LocationID); err != nil {
				return Result{}, fmt.Errorf("line %d location %d: %w", d.LineID, d.LocationID, err)
			}
		}
	}

	insertedKey := false
	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "fulfillment"); err != nil {
			return Result{}, err
		}
		insertedKey = true
	}

	var result Result
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.OrgID != actor.OrgID {
			return ErrNotFound
		}
		lines, err := tx.GetLines(ctx, orderID)
		if err != nil {
			return err
		}

		vt, err := Validate(order, lines, req, pol)
		if err != nil {
			return err
		}

		return s.apply(ctx, tx, order, lines, vt, pol, actor, &result)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Result{}, err
	}

	s.recordAudit(ctx, actor.ActorID, auditAction(result.Transaction.Kind), result.Order.ID, map[string]any{
		"number":      result.Order.Number,
		"status":      result.Order.Status,
		"transaction": result.Transaction.ID,
		"warnings":    result.Warnings,
	})
	return result, nil
}

// apply performs the executor steps inside the already-locked transaction:
// line accumulators, lots, status recompute, first-occurrence stamping, and
// the immutable audit transaction.
func (s *Service) apply(ctx context.Context, tx TxRepository, order Order, lines []Line, vt ValidatedTransaction, pol policy.Policy, actor shared.Identity, result *Result) error {
	lineByID := make(map[int64]*Line, len(lines))
	for i := range lines {
		lineByID[lines[i].ID] = &lines[i]
	}
	for _, d := range vt.Deltas {
		line := lineByID[d.LineID]
		if vt.Kind == TxnShip {
			line.ShippedQty = d.NewFulfilled
		} else {
			line.ReceivedQty = d.NewFulfilled
		}
	}
	for _, d := range vt.Deltas {
		if err := tx.UpdateLineQuantities(ctx, *lineByID[d.LineID]); err != nil {
			return err
		}
	}

	txn := Transaction{
		OrderID:    order.ID,
		Kind:       vt.Kind,
		OccurredAt: vt.OccurredAt,
		ActorID:    actor.ActorID,
		RefID:      uuid.NewString(),
		Note:       vt.Note,
	}
	txnID, err := tx.InsertTransaction(ctx, txn)
	if err != nil {
		return err
	}
	txn.ID = txnID
	for _, d := range vt.Deltas {
		tl := TransactionLine{
			TransactionID: txnID,
			LineID:        d.LineID,
			DeltaQty:      d.Delta,
			BatchNumber:   d.BatchNumber,
			ExpiryDate:    d.ExpiryDate,
			LocationID:    d.LocationID,
			OverFulfilled: d.OverFulfilled,
			OverPct:       d.OverPct,
		}
		if err := tx.InsertTransactionLine(ctx, tl); err != nil {
			return err
		}
		txn.Lines = append(txn.Lines, tl)
	}

	lots := MaterializeLots(order, vt, pol, time.Now().UTC())
	for i := range lots {
		lots[i].TransactionID = txnID
		lotID, err := tx.InsertLot(ctx, lots[i])
		if err != nil {
			return err
		}
		lots[i].ID = lotID
	}

	newStatus := DeriveStatus(order.Kind, order.Status, lines)
	updates := map[string]interface{}{"status": newStatus}
	// Stamped once per order lifetime, by the first transaction of the kind.
	if vt.Kind == TxnShip && order.ActualShipDate == nil {
		updates["actual_ship_date"] = vt.OccurredAt
		stamp := vt.OccurredAt
		order.ActualShipDate = &stamp
	}
	if vt.Kind == TxnReceive && order.ActualReceiveDate == nil {
		updates["actual_receive_date"] = vt.OccurredAt
		stamp := vt.OccurredAt
		order.ActualReceiveDate = &stamp
	}
	if err := tx.UpdateOrder(ctx, order.ID, updates); err != nil {
		return err
	}
	order.Status = newStatus
	order.Lines = lines

	result.Order = order
	result.Lines = lines
	result.Lots = lots
	result.Transaction = txn
	result.Warnings = vt.Warnings
	return nil
}

// Cancel voids an order that has seen no fulfillment. Attempting to cancel a
// partially fulfilled order fails with a header-state rejection and leaves
// the order untouched.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor shared.Identity) (Order, error) {
	var cancelled Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.OrgID != actor.OrgID {
			return ErrNotFound
		}
		lines, err := tx.GetLines(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanCancel(order.Kind) {
			return &HeaderStateError{Kind: order.Kind, Status: order.Status, Attempted: "cancel"}
		}
		for _, l := range lines {
			if l.ShippedQty.Sign() > 0 || l.ReceivedQty.Sign() > 0 {
				return &HeaderStateError{Kind: order.Kind, Status: order.Status, Attempted: "cancel"}
			}
		}
		if err := tx.UpdateOrder(ctx, orderID, map[string]interface{}{"status": StatusCancelled}); err != nil {
			return err
		}
		order.Status = StatusCancelled
		order.Lines = lines
		cancelled = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actor.ActorID, "ORDER_CANCEL", cancelled.ID, map[string]any{"number": cancelled.Number})
	return cancelled, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "fulfillment.order",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       time.Now().UTC(),
	})
}

func auditAction(kind TxnKind) string {
	if kind == TxnShip {
		return "ORDER_SHIP"
	}
	return "ORDER_RECEIVE"
}
