package fulfillment

import (
	"fmt"
	"time"

	"github.com/warelane/warelane/internal/policy"
)

// MaterializeLots builds one inventory lot per accepted delta of a receiving
// transaction. Ship transactions produce no lots. Location falls back to the
// order's default when the delta carries no override.
func MaterializeLots(order Order, vt ValidatedTransaction, pol policy.Policy, now time.Time) []InventoryLot {
	if vt.Kind != TxnReceive {
		return nil
	}
	quality := lotQualityStatus(pol)
	lots := make([]InventoryLot, 0, len(vt.Deltas))
	for i, d := range vt.Deltas {
		locationID := d.LocationID
		if locationID == 0 {
			locationID = order.LocationID
		}
		lots = append(lots, InventoryLot{
			Number:        lotNumber(now, i),
			OrgID:         order.OrgID,
			ProductID:     d.ProductID,
			Quantity:      d.Delta,
			UOM:           d.UOM,
			WarehouseID:   order.WarehouseID,
			LocationID:    locationID,
			BatchNumber:   d.BatchNumber,
			ExpiryDate:    d.ExpiryDate,
			QualityStatus: quality,
		})
	}
	return lots
}

// lotQualityStatus picks the disposition for a new lot. Without a mandatory
// quality check the lot is released immediately as passed.
func lotQualityStatus(pol policy.Policy) policy.QualityStatus {
	if !pol.RequireQualityCheck {
		return policy.QualityPassed
	}
	if pol.DefaultQualityStatus.IsValid() {
		return pol.DefaultQualityStatus
	}
	return policy.QualityPending
}

func lotNumber(now time.Time, seq int) string {
	return fmt.Sprintf("LP-%d-%02d", now.UnixNano(), seq+1)
}
