package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/engine"
	"github.com/warp/inventory-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func orderReq(id engine.ItemID, quantity int64, cost float64) engine.CreateOrderRequest {
	return engine.CreateOrderRequest{
		InventoryID: id,
		Quantity:    quantity,
		CostPrice:   decimal.NewFromFloat(cost),
		Notes:       "weekly replenishment",
		User:        "manager",
	}
}

// =============================================================================
// ORDER CREATION
// =============================================================================

func TestRestock_Create_DerivesTotalCost(t *testing.T) {
	// GIVEN: An item and a 50-unit order at 2.00 each
	// WHEN: Creating the order
	// THEN: It lands pending with totalCost 100.00 and no stock change

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 5)

	order, err := eng.Restock.Create(ctx, orderReq(item.ID, 50, 2.00))
	require.NoError(t, err)

	assert.Equal(t, engine.OrderPending, order.Status)
	assert.Equal(t, "100.00", order.TotalCost.StringFixed(2))
	assert.Nil(t, order.ReceivedDate)

	reloaded, err := mem.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, reloaded.Quantity, "creation must not touch stock")
}

func TestRestock_Create_Validation(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 5)

	_, err := eng.Restock.Create(ctx, orderReq(item.ID, 0, 2.00))
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = eng.Restock.Create(ctx, orderReq(item.ID, 10, -1))
	assert.ErrorIs(t, err, engine.ErrValidation)

	// A dangling item reference is bad input, not a missing order.
	_, err = eng.Restock.Create(ctx, orderReq("nope", 10, 2.00))
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestRestock_Create_DeletedItem_Rejected(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 5)
	_, err := eng.Catalog.DeleteItem(ctx, item.ID, "manager")
	require.NoError(t, err)

	_, err = eng.Restock.Create(ctx, orderReq(item.ID, 10, 2.00))
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestRestock_Receive_IncrementsStock(t *testing.T) {
	// GIVEN: A pending 20-unit order for an item holding 5
	// WHEN: pending -> ordered -> received
	// THEN: Stock is 25, receivedDate set, and a "restock" transaction
	//       references the order

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 5)

	order, err := eng.Restock.Create(ctx, orderReq(item.ID, 20, 2.00))
	require.NoError(t, err)

	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderOrdered, "manager")
	require.NoError(t, err)

	received, err := eng.Restock.Transition(ctx, order.ID, engine.OrderReceived, "manager")
	require.NoError(t, err)
	assert.Equal(t, engine.OrderReceived, received.Status)
	require.NotNil(t, received.ReceivedDate)

	reloaded, err := mem.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 25, reloaded.Quantity)

	txs, err := mem.ListTransactions(ctx, engine.TransactionFilter{
		InventoryID: item.ID, Type: engine.TxRestock,
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.EqualValues(t, 20, txs[0].Quantity)
	assert.Equal(t, "restock:"+string(order.ID), txs[0].Reference)
}

func TestRestock_ShortcutPendingToReceived(t *testing.T) {
	// The ordered step may be skipped; pending -> received is a legal edge.
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 0)

	order, err := eng.Restock.Create(ctx, orderReq(item.ID, 7, 1.50))
	require.NoError(t, err)

	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderReceived, "manager")
	require.NoError(t, err)

	reloaded, err := mem.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, reloaded.Quantity)
}

func TestRestock_TerminalStates_RejectTransitions(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 0)

	// received is terminal
	order, err := eng.Restock.Create(ctx, orderReq(item.ID, 5, 1.00))
	require.NoError(t, err)
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderReceived, "manager")
	require.NoError(t, err)
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderCancelled, "manager")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	// cancelled is terminal
	order, err = eng.Restock.Create(ctx, orderReq(item.ID, 5, 1.00))
	require.NoError(t, err)
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderCancelled, "manager")
	require.NoError(t, err)
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderOrdered, "manager")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestRestock_DoubleReceive_SecondRejected(t *testing.T) {
	// GIVEN: An order already received
	// WHEN: Receiving it again
	// THEN: InvalidTransition, and the stock was incremented exactly once

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 0)

	order, err := eng.Restock.Create(ctx, orderReq(item.ID, 10, 1.00))
	require.NoError(t, err)

	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderReceived, "manager")
	require.NoError(t, err)
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderReceived, "manager")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	reloaded, err := mem.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, reloaded.Quantity)
}

func TestRestock_Receive_StockFailure_RollsBackClaim(t *testing.T) {
	// GIVEN: The item table is refusing writes
	// WHEN: A receive claims the order and the stock increment then fails
	// THEN: The order is back in its previous state with no receivedDate,
	//       so the receive can be retried

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 5)

	order, err := eng.Restock.Create(ctx, orderReq(item.ID, 20, 2.00))
	require.NoError(t, err)
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderOrdered, "manager")
	require.NoError(t, err)

	mem.SetFaults(store.Faults{UpdateItem: errors.New("sheet unreachable")})
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderReceived, "manager")
	require.Error(t, err)

	mem.SetFaults(store.Faults{})
	reloaded, gerr := mem.GetOrder(ctx, order.ID)
	require.NoError(t, gerr)
	assert.Equal(t, engine.OrderOrdered, reloaded.Status)
	assert.Nil(t, reloaded.ReceivedDate)

	// The retry must now complete normally.
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderReceived, "manager")
	require.NoError(t, err)
	ritem, gerr := mem.GetItem(ctx, item.ID)
	require.NoError(t, gerr)
	assert.EqualValues(t, 25, ritem.Quantity)
}

// =============================================================================
// GENERIC EDITS
// =============================================================================

func TestRestock_Update_RecomputesTotalCost(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 0)

	order, err := eng.Restock.Create(ctx, orderReq(item.ID, 10, 2.00))
	require.NoError(t, err)

	qty := int64(15)
	updated, err := eng.Restock.Update(ctx, order.ID, &qty, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "30.00", updated.TotalCost.StringFixed(2))

	cost := decimal.NewFromFloat(3.50)
	updated, err = eng.Restock.Update(ctx, order.ID, nil, &cost, nil)
	require.NoError(t, err)
	assert.Equal(t, "52.50", updated.TotalCost.StringFixed(2))
}

func TestRestock_Update_TerminalOrder_Rejected(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 0)

	order, err := eng.Restock.Create(ctx, orderReq(item.ID, 10, 2.00))
	require.NoError(t, err)
	_, err = eng.Restock.Transition(ctx, order.ID, engine.OrderCancelled, "manager")
	require.NoError(t, err)

	qty := int64(15)
	_, err = eng.Restock.Update(ctx, order.ID, &qty, nil, nil)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}
