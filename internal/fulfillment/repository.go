package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the interface for order persistence.
type Repository interface {
	// Read operations. Status reads do not take the aggregate lock and may
	// observe a slightly stale snapshot.
	GetOrder(ctx context.Context, id int64) (Order, []Line, error)
	List(ctx context.Context, req ListRequest) ([]Order, int, error)

	// WithTx runs fn inside one transaction; every write of a fulfillment
	// event goes through it so the commit is all-or-nothing.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations. GetOrderForUpdate must be
// the first call so the header lock serialises concurrent transactions
// against the same order.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	GetLines(ctx context.Context, orderID int64) ([]Line, error)
	UpdateLineQuantities(ctx context.Context, line Line) error
	UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error
	InsertTransaction(ctx context.Context, txn Transaction) (int64, error)
	InsertTransactionLine(ctx context.Context, tl TransactionLine) error
	InsertLot(ctx context.Context, lot InventoryLot) (int64, error)
}

// repository implements Repository using pgxpool.
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

// WithTx wraps the callback in a repeatable-read transaction. Serialization
// and lock failures surface as ErrConcurrentModification so callers can
// distinguish the one retry-worthy rejection.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return translateConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translateConflict(err)
	}
	return nil
}

func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected,
		// 55P03 lock_not_available
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", ErrConcurrentModification, pgErr.Code)
		}
	}
	return err
}

const orderColumns = `id, org_id, number, kind, status, src_warehouse_id, dst_warehouse_id,
	       supplier_id, warehouse_id, location_id, planned_ship_date, planned_receive_date,
	       actual_ship_date, actual_receive_date, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrgID, &o.Number, &o.Kind, &o.Status, &o.SrcWarehouseID, &o.DstWarehouseID,
		&o.SupplierID, &o.WarehouseID, &o.LocationID, &o.PlannedShipDate, &o.PlannedReceiveDate,
		&o.ActualShipDate, &o.ActualReceiveDate, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// GetOrder retrieves an order header with its lines.
func (r *repository) GetOrder(ctx context.Context, id int64) (Order, []Line, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrNotFound
		}
		return Order{}, nil, err
	}
	lines, err := getLines(ctx, r.pool, id)
	if err != nil {
		return Order{}, nil, err
	}
	o.Lines = lines
	return o, lines, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getLines(ctx context.Context, q queryer, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, uom, ordered_qty, shipped_qty, received_qty,
		       line_order, created_at, updated_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_order, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.ProductID, &l.UOM, &l.OrderedQty, &l.ShippedQty,
			&l.ReceivedQty, &l.LineOrder, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// List returns order headers matching the filter plus the total count.
func (r *repository) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	conds := []string{"org_id = $1"}
	args := []any{req.OrgID}
	if req.Kind != nil {
		args = append(args, *req.Kind)
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.Search != nil && *req.Search != "" {
		args = append(args, "%"+*req.Search+"%")
		conds = append(conds, fmt.Sprintf("number ILIKE $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM orders WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}
