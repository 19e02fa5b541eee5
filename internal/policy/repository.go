package policy

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads policy rows from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Resolve loads the policy for an organization. Missing settings fall back to
// system defaults; a missing organization is the only failure case.
func (r *Repository) Resolve(ctx context.Context, orgID int64) (Policy, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)`, orgID).Scan(&exists); err != nil {
		return Policy{}, err
	}
	if !exists {
		return Policy{}, ErrPolicyNotFound
	}

	p := Default(orgID)
	err := r.pool.QueryRow(ctx, `
		SELECT tolerance_pct, allow_over_fulfillment, require_batch,
		       require_expiry, require_quality_check, default_quality_status
		FROM fulfillment_policies
		WHERE org_id = $1
	`, orgID).Scan(
		&p.TolerancePct, &p.AllowOverFulfillment, &p.RequireBatch,
		&p.RequireExpiry, &p.RequireQualityCheck, &p.DefaultQualityStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Default(orgID), nil
		}
		return Policy{}, err
	}
	if !p.DefaultQualityStatus.IsValid() {
		p.DefaultQualityStatus = QualityApproved
	}
	return p, nil
}
