// Package policy resolves the fulfillment policy for an organization.
// The policy is read-mostly; the in-effect snapshot is taken once per
// fulfillment transaction and reused through to commit.
package policy

import (
	"errors"

	"github.com/shopspring/decimal"
)

// QualityStatus is the disposition assigned to newly received lots.
type QualityStatus string

const (
	QualityApproved QualityStatus = "approved"
	QualityPending  QualityStatus = "pending"
	QualityPassed   QualityStatus = "passed"
	QualityBlocked  QualityStatus = "blocked"
)

// IsValid checks if the status is a known disposition.
func (q QualityStatus) IsValid() bool {
	switch q {
	case QualityApproved, QualityPending, QualityPassed, QualityBlocked:
		return true
	default:
		return false
	}
}

// Policy controls quantity tolerance and data-completeness rules applied
// during each fulfillment event.
type Policy struct {
	OrgID                int64           `json:"org_id"`
	TolerancePct         decimal.Decimal `json:"tolerance_pct"`
	AllowOverFulfillment bool            `json:"allow_over_fulfillment"`
	RequireBatch         bool            `json:"require_batch"`
	RequireExpiry        bool            `json:"require_expiry"`
	RequireQualityCheck  bool            `json:"require_quality_check"`
	DefaultQualityStatus QualityStatus   `json:"default_quality_status"`
}

// Default returns the system-wide policy used when an organization has no
// stored settings row.
func Default(orgID int64) Policy {
	return Policy{
		OrgID:                orgID,
		TolerancePct:         decimal.Zero,
		AllowOverFulfillment: false,
		RequireBatch:         false,
		RequireExpiry:        false,
		RequireQualityCheck:  false,
		DefaultQualityStatus: QualityApproved,
	}
}

// ErrPolicyNotFound indicates the organization itself does not exist.
var ErrPolicyNotFound = errors.New("policy: organization not found")
