package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warelane/warelane/internal/policy"
	"github.com/warelane/warelane/internal/shared"
)

type memoryRepo struct {
	orders map[int64]Order
	lines  map[int64][]Line
	txns   map[int64]Transaction
	lots   []InventoryLot
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders: make(map[int64]Order),
		lines:  make(map[int64][]Line),
		txns:   make(map[int64]Transaction),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (Order, []Line, error) {
	o, ok := r.orders[id]
	if !ok {
		return Order{}, nil, ErrNotFound
	}
	return o, append([]Line(nil), r.lines[id]...), nil
}

func (r *memoryRepo) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	var out []Order
	for _, o := range r.orders {
		if o.OrgID == req.OrgID {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (tx *memoryTx) id() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, ok := tx.repo.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (tx *memoryTx) GetLines(ctx context.Context, orderID int64) ([]Line, error) {
	return append([]Line(nil), tx.repo.lines[orderID]...), nil
}

func (tx *memoryTx) UpdateLineQuantities(ctx context.Context, line Line) error {
	lines := tx.repo.lines[line.OrderID]
	for i := range lines {
		if lines[i].ID == line.ID {
			lines[i].ShippedQty = line.ShippedQty
			lines[i].ReceivedQty = line.ReceivedQty
			return nil
		}
	}
	return &LineNotFoundError{LineID: line.ID}
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error {
	o, ok := tx.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	for field, value := range updates {
		switch field {
		case "status":
			o.Status = value.(Status)
		case "actual_ship_date":
			at := value.(time.Time)
			o.ActualShipDate = &at
		case "actual_receive_date":
			at := value.(time.Time)
			o.ActualReceiveDate = &at
		}
	}
	tx.repo.orders[id] = o
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	txn.ID = tx.id()
	tx.repo.txns[txn.ID] = txn
	return txn.ID, nil
}

func (tx *memoryTx) InsertTransactionLine(ctx context.Context, tl TransactionLine) error {
	return nil
}

func (tx *memoryTx) InsertLot(ctx context.Context, lot InventoryLot) (int64, error) {
	lot.ID = tx.id()
	tx.repo.lots = append(tx.repo.lots, lot)
	return lot.ID, nil
}

type stubPolicies struct {
	pol policy.Policy
}

func (s stubPolicies) Get(ctx context.Context, orgID int64) (policy.Policy, error) {
	return s.pol, nil
}

type stubMasterData struct {
	missing map[int64]bool
}

func (s stubMasterData) LocationExists(ctx context.Context, id int64) error {
	if s.missing[id] {
		return shared.ErrReferenceNotFound
	}
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func seedTransfer(repo *memoryRepo, status Status) Order {
	order := Order{ID: 1, OrgID: 1, Number: "TO-0001", Kind: KindTransfer, Status: status, WarehouseID: 7, LocationID: 70}
	repo.orders[order.ID] = order
	repo.lines[order.ID] = []Line{
		{ID: 11, OrderID: 1, ProductID: 100, UOM: "EA", OrderedQty: dec("100")},
		{ID: 12, OrderID: 1, ProductID: 200, UOM: "EA", OrderedQty: dec("50")},
	}
	return order
}

func seedPurchase(repo *memoryRepo) Order {
	order := Order{ID: 2, OrgID: 1, Number: "PO-0001", Kind: KindPurchase, Status: StatusConfirmed, WarehouseID: 7, LocationID: 70}
	repo.orders[order.ID] = order
	repo.lines[order.ID] = []Line{
		{ID: 21, OrderID: 2, ProductID: 300, UOM: "EA", OrderedQty: dec("100")},
	}
	return order
}

func newTestService(repo *memoryRepo, pol policy.Policy, audit *recordingAudit) *Service {
	return NewService(repo, stubPolicies{pol: pol}, stubMasterData{}, audit, nil)
}

func actor() shared.Identity {
	return shared.Identity{ActorID: 9, OrgID: 1, Role: "warehouse"}
}

func TestShipOrReceivePartialThenCompleteShipment(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	audit := &recordingAudit{}
	svc := newTestService(repo, policy.Default(1), audit)

	at := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	result, err := svc.ShipOrReceive(context.Background(), 1, TransactionRequest{
		Kind:       TxnShip,
		OccurredAt: at,
		Lines:      []LineDelta{{LineID: 11, DeltaQty: dec("60")}},
	}, actor(), "")
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyShipped, result.Order.Status)
	require.NotNil(t, result.Order.ActualShipDate)
	require.Equal(t, at, *result.Order.ActualShipDate)
	require.Empty(t, result.Lots)
	require.NotEmpty(t, result.Transaction.RefID)

	// Finishing the shipment later must not move the first ship date.
	later := at.Add(48 * time.Hour)
	result, err = svc.ShipOrReceive(context.Background(), 1, TransactionRequest{
		Kind:       TxnShip,
		OccurredAt: later,
		Lines: []LineDelta{
			{LineID: 11, DeltaQty: dec("40")},
			{LineID: 12, DeltaQty: dec("50")},
		},
	}, actor(), "")
	require.NoError(t, err)
	require.Equal(t, StatusShipped, result.Order.Status)
	require.Equal(t, at, *result.Order.ActualShipDate)

	require.Len(t, audit.logs, 2)
	require.Equal(t, "ORDER_SHIP", audit.logs[0].Action)
}

func TestShipOrReceivePurchaseLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	seedPurchase(repo)
	pol := policy.Policy{OrgID: 1, TolerancePct: dec("10"), AllowOverFulfillment: true}
	svc := newTestService(repo, pol, &recordingAudit{})

	result, err := svc.ShipOrReceive(context.Background(), 2, TransactionRequest{
		Kind:  TxnReceive,
		Lines: []LineDelta{{LineID: 21, DeltaQty: dec("40")}},
	}, actor(), "")
	require.NoError(t, err)
	require.Equal(t, StatusPartial, result.Order.Status)
	require.Len(t, result.Lots, 1)
	require.True(t, result.Lots[0].Quantity.Equal(dec("40")))
	require.Equal(t, policy.QualityPassed, result.Lots[0].QualityStatus)

	// Second receipt overshoots within tolerance: closed with a warning.
	result, err = svc.ShipOrReceive(context.Background(), 2, TransactionRequest{
		Kind:  TxnReceive,
		Lines: []LineDelta{{LineID: 21, DeltaQty: dec("68")}},
	}, actor(), "")
	require.NoError(t, err)
	require.Equal(t, StatusClosed, result.Order.Status)
	require.Len(t, result.Warnings, 1)
	require.True(t, result.Warnings[0].OverPct.Equal(dec("8")))
	require.NotNil(t, result.Order.ActualReceiveDate)
}

func TestShipOrReceiveRejectionLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	svc := newTestService(repo, policy.Default(1), &recordingAudit{})

	_, err := svc.ShipOrReceive(context.Background(), 1, TransactionRequest{
		Kind: TxnShip,
		Lines: []LineDelta{
			{LineID: 11, DeltaQty: dec("60")},
			{LineID: 12, DeltaQty: dec("51")},
		},
	}, actor(), "")
	require.ErrorIs(t, err, ErrOverFulfillmentNotAllowed)

	order, lines, getErr := repo.GetOrder(context.Background(), 1)
	require.NoError(t, getErr)
	require.Equal(t, StatusPlanned, order.Status)
	for _, l := range lines {
		require.True(t, l.ShippedQty.IsZero())
	}
	require.Empty(t, repo.txns)
}

func TestShipOrReceiveDefaultsOccurredAt(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	svc := newTestService(repo, policy.Default(1), &recordingAudit{})

	result, err := svc.ShipOrReceive(context.Background(), 1, TransactionRequest{
		Kind:  TxnShip,
		Lines: []LineDelta{{LineID: 11, DeltaQty: dec("10")}},
	}, actor(), "")
	require.NoError(t, err)
	require.False(t, result.Transaction.OccurredAt.IsZero())
	require.NotNil(t, result.Order.ActualShipDate)
	require.False(t, result.Order.ActualShipDate.IsZero())
}

func TestShipOrReceiveRefIDsAreUnique(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	svc := newTestService(repo, policy.Default(1), &recordingAudit{})

	// Two same-kind transactions with an identical event time must still
	// produce distinct reference ids.
	at := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	first, err := svc.ShipOrReceive(context.Background(), 1, TransactionRequest{
		Kind:       TxnShip,
		OccurredAt: at,
		Lines:      []LineDelta{{LineID: 11, DeltaQty: dec("10")}},
	}, actor(), "")
	require.NoError(t, err)

	second, err := svc.ShipOrReceive(context.Background(), 1, TransactionRequest{
		Kind:       TxnShip,
		OccurredAt: at,
		Lines:      []LineDelta{{LineID: 11, DeltaQty: dec("10")}},
	}, actor(), "")
	require.NoError(t, err)

	require.NotEmpty(t, first.Transaction.RefID)
	require.NotEmpty(t, second.Transaction.RefID)
	require.NotEqual(t, first.Transaction.RefID, second.Transaction.RefID)
}

func TestShipOrReceiveOrgScoping(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	svc := newTestService(repo, policy.Default(1), &recordingAudit{})

	other := shared.Identity{ActorID: 5, OrgID: 2, Role: "warehouse"}
	_, err := svc.ShipOrReceive(context.Background(), 1, TransactionRequest{
		Kind:  TxnShip,
		Lines: []LineDelta{{LineID: 11, DeltaQty: dec("10")}},
	}, other, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancel(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	audit := &recordingAudit{}
	svc := newTestService(repo, policy.Default(1), audit)

	order, err := svc.Cancel(context.Background(), 1, actor())
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, order.Status)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "ORDER_CANCEL", audit.logs[0].Action)
}

func TestCancelRejectedAfterFulfillment(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	svc := newTestService(repo, policy.Default(1), &recordingAudit{})

	_, err := svc.ShipOrReceive(context.Background(), 1, TransactionRequest{
		Kind:  TxnShip,
		Lines: []LineDelta{{LineID: 11, DeltaQty: dec("10")}},
	}, actor(), "")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), 1, actor())
	require.ErrorIs(t, err, ErrInvalidHeaderState)

	order, _, getErr := repo.GetOrder(context.Background(), 1)
	require.NoError(t, getErr)
	require.Equal(t, StatusPartiallyShipped, order.Status)
}
