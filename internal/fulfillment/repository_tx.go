package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetOrderForUpdate locks the order header for the remainder of the
// transaction. The header plus its lines is the unit of locking; once the
// header row is held, line reads below see a serialised view.
func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 FOR UPDATE`, orderColumns)
	o, err := scanOrder(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// GetLines loads the order's lines inside the transaction.
func (t *txRepository) GetLines(ctx context.Context, orderID int64) ([]Line, error) {
	return getLines(ctx, t.tx, orderID)
}

// UpdateLineQuantities persists the accumulated quantities of one line.
func (t *txRepository) UpdateLineQuantities(ctx context.Context, line Line) error {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE order_lines
		SET shipped_qty = $1, received_qty = $2, updated_at = $3
		WHERE id = $4
	`, line.ShippedQty, line.ReceivedQty, time.Now(), line.ID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return &LineNotFoundError{LineID: line.ID}
	}
	return nil
}

// UpdateOrder updates header fields.
func (t *txRepository) UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	var setClauses []string
	var args []interface{}
	argPos := 1

	for field, value := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now())
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)

	cmdTag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertTransaction creates the immutable audit header of a fulfillment
// event. There is no corresponding update or delete.
func (t *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO fulfillment_transactions (order_id, kind, occurred_at, actor_id, ref_id, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, txn.OrderID, txn.Kind, txn.OccurredAt, txn.ActorID, txn.RefID, txn.Note).Scan(&id)
	return id, err
}

// InsertTransactionLine records one applied delta.
func (t *txRepository) InsertTransactionLine(ctx context.Context, tl TransactionLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO fulfillment_transaction_lines (
			transaction_id, line_id, delta_qty, batch_number, expiry_date,
			location_id, over_fulfilled, over_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tl.TransactionID, tl.LineID, tl.DeltaQty, nullString(tl.BatchNumber), tl.ExpiryDate,
		nullInt64(tl.LocationID), tl.OverFulfilled, tl.OverPct)
	return err
}

// InsertLot persists a lot created by a receiving transaction.
func (t *txRepository) InsertLot(ctx context.Context, lot InventoryLot) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO inventory_lots (
			number, org_id, product_id, quantity, uom, warehouse_id, location_id,
			batch_number, expiry_date, quality_status, transaction_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, lot.Number, lot.OrgID, lot.ProductID, lot.Quantity, lot.UOM, lot.WarehouseID,
		lot.LocationID, nullString(lot.BatchNumber), lot.ExpiryDate, lot.QualityStatus,
		lot.TransactionID).Scan(&id)
	return id, err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
