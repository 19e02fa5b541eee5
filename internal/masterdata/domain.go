// Package masterdata exposes read-only lookups of products, warehouses and
// locations. Master data maintenance lives in another system; this service
// only resolves references by id.
package masterdata

import "time"

// Product is the catalogue entry referenced by order lines.
type Product struct {
	ID        int64
	OrgID     int64
	SKU       string
	Name      string
	UOM       string
	CreatedAt time.Time
}

// Warehouse groups storage locations.
type Warehouse struct {
	ID    int64
	OrgID int64
	Code  string
	Name  string
}

// Location is a physical slot inside a warehouse where lots are placed.
type Location struct {
	ID          int64
	WarehouseID int64
	Code        string
}
