package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warelane/warelane/internal/shared"
)

// Repository resolves master data records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct loads a product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, org_id, sku, name, uom, created_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.UOM, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrReferenceNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetLocation loads a location by id.
func (r *Repository) GetLocation(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx,
		`SELECT id, warehouse_id, code FROM locations WHERE id = $1`, id,
	).Scan(&l.ID, &l.WarehouseID, &l.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, shared.ErrReferenceNotFound
		}
		return Location{}, err
	}
	return l, nil
}

// GetWarehouse loads a warehouse by id.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx,
		`SELECT id, org_id, code, name FROM warehouses WHERE id = $1`, id,
	).Scan(&w.ID, &w.OrgID, &w.Code, &w.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, shared.ErrReferenceNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

// LocationExists reports whether the location id resolves.
func (r *Repository) LocationExists(ctx context.Context, id int64) error {
	_, err := r.GetLocation(ctx, id)
	return err
}

// ProductExists reports whether the product id resolves.
func (r *Repository) ProductExists(ctx context.Context, id int64) error {
	_, err := r.GetProduct(ctx, id)
	return err
}
