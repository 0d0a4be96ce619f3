/*
restock.go - Restock order state machine

PURPOSE:
  One state machine per restock order:

      pending ──> ordered ──> received   (terminal)
         │           │
         │           └─────> cancelled   (terminal)
         └──> cancelled
         └──> received   (accepted shortcut)

  Only the transition into "received" has a side effect: it increments the
  item's stock, sets receivedDate, and appends a "restock" Transaction as
  one atomic unit. Every other transition is a pure status write.

CONCURRENT RECEIVES:
  The status write happens first and is conditional on the order's version
  token, so of two concurrent receives exactly one wins; the loser reloads,
  sees a terminal state, and fails with InvalidTransition. If the stock
  increment then fails, the status write is rolled back before the error
  surfaces.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESTOCK WORKFLOW
// =============================================================================

// RestockWorkflow manages restock orders.
type RestockWorkflow struct {
	store  Store
	ledger *StockLedger
	audit  *AuditLogger
}

// NewRestockWorkflow creates a restock workflow.
func NewRestockWorkflow(store Store, ledger *StockLedger, audit *AuditLogger) *RestockWorkflow {
	return &RestockWorkflow{store: store, ledger: ledger, audit: audit}
}

// validTransitions lists every allowed edge in the state machine.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderOrdered, OrderCancelled, OrderReceived},
	OrderOrdered: {OrderReceived, OrderCancelled},
}

func transitionAllowed(from, to OrderStatus) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CreateOrderRequest is the input for Create.
type CreateOrderRequest struct {
	InventoryID ItemID
	Quantity    int64
	CostPrice   decimal.Decimal
	Notes       string
	User        string
}

// Create validates and inserts a new order in the pending state.
// TotalCost is derived here and on every later quantity/cost edit; it is
// never independently writable.
func (w *RestockWorkflow) Create(ctx context.Context, req CreateOrderRequest) (*RestockOrder, error) {
	if err := w.validateCreate(ctx, req); err != nil {
		w.audit.Record(ctx, LevelWarn, "restock.create", "Order rejected", err.Error())
		return nil, err
	}

	order, err := w.store.InsertOrder(ctx, RestockOrder{
		InventoryID: req.InventoryID,
		Quantity:    req.Quantity,
		CostPrice:   Round2(req.CostPrice),
		TotalCost:   Round2(req.CostPrice.Mul(decimal.NewFromInt(req.Quantity))),
		Status:      OrderPending,
		OrderedDate: time.Now().UTC(),
		Notes:       req.Notes,
	})
	if err != nil {
		w.audit.Record(ctx, LevelError, "restock.create", "Order creation failed", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	w.audit.Recordf(ctx, LevelInfo, "restock.create", "Order created",
		"id=%s item=%s quantity=%d totalCost=%s", order.ID, order.InventoryID,
		order.Quantity, order.TotalCost.StringFixed(2))
	return order, nil
}

// Transition moves an order to the target status. Receiving triggers the
// stock increment side effect; everything else is a pure status write.
func (w *RestockWorkflow) Transition(ctx context.Context, id OrderID, target OrderStatus, user string) (*RestockOrder, error) {
	op := operationFor(target)

	order, err := w.store.GetOrder(ctx, id)
	if err != nil {
		w.audit.Record(ctx, LevelWarn, op, "Transition rejected", err.Error())
		return nil, err
	}
	if order.Deleted {
		nf := &NotFoundError{Collection: "restock", ID: string(id)}
		w.audit.Record(ctx, LevelWarn, op, "Transition rejected", nf.Error())
		return nil, nf
	}
	if !transitionAllowed(order.Status, target) {
		it := &InvalidTransitionError{OrderID: id, From: order.Status, To: target}
		w.audit.Record(ctx, LevelWarn, op, "Transition rejected", it.Error())
		return nil, it
	}

	if target == OrderReceived {
		return w.receive(ctx, order, user)
	}

	status := target
	updated, err := w.store.UpdateOrder(ctx, id, order.Version, OrderPatch{Status: &status})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost a race; the caller can re-read and decide again.
			w.audit.Record(ctx, LevelWarn, op, "Transition lost a concurrent update", err.Error())
			return nil, err
		}
		w.audit.Record(ctx, LevelError, op, "Transition failed", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	w.audit.Recordf(ctx, LevelInfo, op, "Order status updated", "id=%s %s -> %s", id, order.Status, target)
	return updated, nil
}

// Update applies a generic edit (quantity, cost, notes) to a non-terminal
// order. Status changes must go through Transition.
func (w *RestockWorkflow) Update(ctx context.Context, id OrderID, quantity *int64, costPrice *decimal.Decimal, notes *string) (*RestockOrder, error) {
	order, err := w.store.GetOrder(ctx, id)
	if err != nil {
		w.audit.Record(ctx, LevelWarn, "restock.update", "Update rejected", err.Error())
		return nil, err
	}
	if order.Deleted {
		nf := &NotFoundError{Collection: "restock", ID: string(id)}
		w.audit.Record(ctx, LevelWarn, "restock.update", "Update rejected", nf.Error())
		return nil, nf
	}
	if order.Status.Terminal() {
		it := &InvalidTransitionError{OrderID: id, From: order.Status, To: order.Status}
		w.audit.Record(ctx, LevelWarn, "restock.update", "Update rejected: order is terminal", it.Error())
		return nil, it
	}
	if quantity != nil && *quantity <= 0 {
		ve := &ValidationError{Field: "quantity", Message: "quantity must be positive"}
		w.audit.Record(ctx, LevelWarn, "restock.update", "Update rejected", ve.Error())
		return nil, ve
	}
	if costPrice != nil && costPrice.IsNegative() {
		ve := &ValidationError{Field: "costPrice", Message: "cost price cannot be negative"}
		w.audit.Record(ctx, LevelWarn, "restock.update", "Update rejected", ve.Error())
		return nil, ve
	}

	patch := OrderPatch{Quantity: quantity, Notes: notes}
	if quantity != nil || costPrice != nil {
		qty := order.Quantity
		if quantity != nil {
			qty = *quantity
		}
		cost := order.CostPrice
		if costPrice != nil {
			cost = Round2(*costPrice)
			patch.CostPrice = &cost
		}
		total := Round2(cost.Mul(decimal.NewFromInt(qty)))
		patch.TotalCost = &total
	}

	updated, err := w.store.UpdateOrder(ctx, id, order.Version, patch)
	if err != nil {
		w.audit.Record(ctx, LevelError, "restock.update", "Update failed", err.Error())
		return nil, err
	}

	w.audit.Recordf(ctx, LevelInfo, "restock.update", "Order updated", "id=%s", id)
	return updated, nil
}

// receive performs the terminal transition with its stock side effect.
func (w *RestockWorkflow) receive(ctx context.Context, order *RestockOrder, user string) (*RestockOrder, error) {
	now := time.Now().UTC()
	status := OrderReceived

	// Claim the order first. The version token makes this the serialization
	// point for concurrent receives.
	claimed, err := w.store.UpdateOrder(ctx, order.ID, order.Version, OrderPatch{
		Status:       &status,
		ReceivedDate: &now,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			w.audit.Record(ctx, LevelWarn, "restock.receive", "Receive lost a concurrent update", err.Error())
			return nil, err
		}
		w.audit.Record(ctx, LevelError, "restock.receive", "Receive failed", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	res, err := w.ledger.Increment(ctx, order.InventoryID, order.Quantity, Recording{
		Type:      TxRestock,
		Reference: "restock:" + string(order.ID),
		User:      user,
	})
	if err != nil {
		// Roll the claim back so the order can be retried or cancelled.
		w.revertClaim(ctx, claimed, order.Status)
		w.audit.Record(ctx, LevelError, "restock.receive", "Stock increment failed", err.Error())
		return nil, err
	}

	w.audit.Recordf(ctx, LevelInfo, "restock.receive", "Order received",
		"id=%s item=%s quantity=+%d newQuantity=%d", order.ID, order.InventoryID,
		order.Quantity, res.Item.Quantity)
	return claimed, nil
}

// revertClaim undoes a received-claim whose stock increment failed.
// Best effort; the order carries the version the claim produced.
func (w *RestockWorkflow) revertClaim(ctx context.Context, claimed *RestockOrder, previous OrderStatus) {
	_, _ = w.store.UpdateOrder(context.WithoutCancel(ctx), claimed.ID, claimed.Version, OrderPatch{
		Status:            &previous,
		ClearReceivedDate: true,
	})
}

func (w *RestockWorkflow) validateCreate(ctx context.Context, req CreateOrderRequest) error {
	if req.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}
	if req.CostPrice.IsNegative() {
		return &ValidationError{Field: "costPrice", Message: "cost price cannot be negative"}
	}
	item, err := w.store.GetItem(ctx, req.InventoryID)
	if err != nil {
		if IsNotFound(err) {
			// A dangling reference at creation time is bad input, not a
			// missing resource: the order itself doesn't exist yet.
			return &ValidationError{Field: "inventoryId",
				Message: fmt.Sprintf("inventory item not found: %s", req.InventoryID)}
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if item.Deleted {
		return &ValidationError{Field: "inventoryId",
			Message: fmt.Sprintf("inventory item not found: %s", req.InventoryID)}
	}
	return nil
}

func operationFor(target OrderStatus) string {
	switch target {
	case OrderOrdered:
		return "restock.order"
	case OrderReceived:
		return "restock.receive"
	case OrderCancelled:
		return "restock.cancel"
	default:
		return "restock.transition"
	}
}
