package routing

import (
	"errors"
	"time"
)

// ErrTemplateNotFound is returned when the referenced routing template does
// not exist or has no operations.
var ErrTemplateNotFound = errors.New("routing: template not found")

// ErrOrderNotFound is returned when the target order does not exist.
var ErrOrderNotFound = errors.New("routing: order not found")

// TemplateOperation is one step of a routing template.
type TemplateOperation struct {
	ID         int64         `json:"id"`
	TemplateID int64         `json:"template_id"`
	Seq        int           `json:"seq"`
	Name       string        `json:"name"`
	WorkCenter string        `json:"work_center"`
	Duration   time.Duration `json:"duration"`
}

// OrderOperation is a template operation copied onto an order.
type OrderOperation struct {
	ID         int64         `json:"id"`
	OrderID    int64         `json:"order_id"`
	Seq        int           `json:"seq"`
	Name       string        `json:"name"`
	WorkCenter string        `json:"work_center"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SnapshotResult reports what a snapshot call did. Applying the same template
// to the same order twice is not an error; the second call reports every
// operation as already present.
type SnapshotResult struct {
	OrderID        int64 `json:"order_id"`
	TemplateID     int64 `json:"template_id"`
	Created        int   `json:"created"`
	AlreadyPresent int   `json:"already_present"`
}

// Count returns the total number of operations the order carries after the
// snapshot.
func (r SnapshotResult) Count() int {
	return r.Created + r.AlreadyPresent
}
