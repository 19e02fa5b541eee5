package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/warelane/warelane/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service copies routing template operations onto orders.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListOperations returns the operations attached to an order.
func (s *Service) ListOperations(ctx context.Context, orderID int64) ([]OrderOperation, error) {
	return s.repo.ListOrderOperations(ctx, orderID)
}

// Snapshot copies the template's operations onto the order. The copy is
// idempotent by explicit check: each operation is inserted only when its
// sequence number is not already present on the order, and re-applying a
// fully applied template succeeds with zero creations. The order header lock
// taken first serializes concurrent snapshots of the same order, including
// the first application where no operation rows exist yet.
func (s *Service) Snapshot(ctx context.Context, orderID, templateID int64, actor shared.Identity) (SnapshotResult, error) {
	result := SnapshotResult{OrderID: orderID, TemplateID: templateID}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		ops, err := tx.GetTemplateOperations(ctx, templateID)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			return ErrTemplateNotFound
		}
		existing, err := tx.ExistingSeqs(ctx, orderID)
		if err != nil {
			return err
		}
		for _, op := range ops {
			if _, ok := existing[op.Seq]; ok {
				result.AlreadyPresent++
				continue
			}
			_, err := tx.InsertOrderOperation(ctx, OrderOperation{
				OrderID:    orderID,
				Seq:        op.Seq,
				Name:       op.Name,
				WorkCenter: op.WorkCenter,
				Duration:   op.Duration,
			})
			if err != nil {
				return err
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return SnapshotResult{}, err
	}

	if s.audit != nil && result.Created > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ActorID,
			Action:   "ROUTING_SNAPSHOT",
			Entity:   "fulfillment.order",
			EntityID: fmt.Sprintf("%d", orderID),
			Meta: map[string]any{
				"template_id":     templateID,
				"created":         result.Created,
				"already_present": result.AlreadyPresent,
			},
			At: time.Now().UTC(),
		})
	}
	return result, nil
}
