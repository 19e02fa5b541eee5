package routing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence for routing snapshots.
type Repository interface {
	ListOrderOperations(ctx context.Context, orderID int64) ([]OrderOperation, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the transactional operations of a snapshot. LockOrder
// must be the first call so concurrent snapshots of the same order serialize.
type TxRepository interface {
	LockOrder(ctx context.Context, orderID int64) error
	GetTemplateOperations(ctx context.Context, templateID int64) ([]TemplateOperation, error)
	ExistingSeqs(ctx context.Context, orderID int64) (map[int]struct{}, error)
	InsertOrderOperation(ctx context.Context, op OrderOperation) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ListOrderOperations returns the operations currently attached to an order.
func (r *repository) ListOrderOperations(ctx context.Context, orderID int64) ([]OrderOperation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, seq, name, work_center, duration, created_at
		FROM order_operations
		WHERE order_id = $1
		ORDER BY seq
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []OrderOperation
	for rows.Next() {
		var op OrderOperation
		if err := rows.Scan(&op.ID, &op.OrderID, &op.Seq, &op.Name, &op.WorkCenter, &op.Duration, &op.CreatedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// GetTemplateOperations loads the template's operations ordered by sequence.
func (t *txRepository) GetTemplateOperations(ctx context.Context, templateID int64) ([]TemplateOperation, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, template_id, seq, name, work_center, duration
		FROM routing_template_operations
		WHERE template_id = $1
		ORDER BY seq
	`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []TemplateOperation
	for rows.Next() {
		var op TemplateOperation
		if err := rows.Scan(&op.ID, &op.TemplateID, &op.Seq, &op.Name, &op.WorkCenter, &op.Duration); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// LockOrder takes the order header lock for the rest of the transaction. Row
// locks on order_operations alone cannot serialize the first snapshot of an
// order, since there are no rows to lock yet; the header row always exists.
func (t *txRepository) LockOrder(ctx context.Context, orderID int64) error {
	var id int64
	if err := t.tx.QueryRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

// ExistingSeqs returns the sequence numbers already present on the order.
// Runs under the header lock taken by LockOrder.
func (t *txRepository) ExistingSeqs(ctx context.Context, orderID int64) (map[int]struct{}, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT seq FROM order_operations WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seqs := make(map[int]struct{})
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		seqs[seq] = struct{}{}
	}
	return seqs, rows.Err()
}

// InsertOrderOperation copies one operation onto the order.
func (t *txRepository) InsertOrderOperation(ctx context.Context, op OrderOperation) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_operations (order_id, seq, name, work_center, duration)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, op.OrderID, op.Seq, op.Name, op.WorkCenter, op.Duration).Scan(&id)
	return id, err
}
