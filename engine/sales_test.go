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

func newTestEngine(t *testing.T) (*engine.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return engine.New(mem, nil), mem
}

func saleReq(id engine.ItemID, quantity int64, cost, selling float64) engine.SaleRequest {
	return engine.SaleRequest{
		InventoryID:  id,
		Quantity:     quantity,
		CostPrice:    decimal.NewFromFloat(cost),
		SellingPrice: decimal.NewFromFloat(selling),
		Department:   "grocery",
		User:         "cashier-1",
	}
}

// =============================================================================
// FINANCIAL COMPUTATION
// =============================================================================

func TestCalculateProfit_Basic(t *testing.T) {
	// GIVEN: 3 units at cost 4.00 sold at 10.00
	// THEN: cost 12.00, revenue 30.00, profit 18.00, margin 60%

	figures := engine.CalculateProfit(3, decimal.NewFromFloat(4.00), decimal.NewFromFloat(10.00))

	assert.Equal(t, "12.00", figures.TotalCost.StringFixed(2))
	assert.Equal(t, "30.00", figures.TotalRevenue.StringFixed(2))
	assert.Equal(t, "18.00", figures.Profit.StringFixed(2))
	assert.Equal(t, "60.00", figures.ProfitMargin.StringFixed(2))
}

func TestCalculateProfit_RoundsEachStepHalfUp(t *testing.T) {
	// 3 x 1.005 = 3.015, which must round to 3.02 before profit is derived.
	figures := engine.CalculateProfit(3, decimal.NewFromFloat(0.335), decimal.NewFromFloat(1.005))

	assert.Equal(t, "1.01", figures.TotalCost.StringFixed(2))
	assert.Equal(t, "3.02", figures.TotalRevenue.StringFixed(2))
	assert.Equal(t, "2.01", figures.Profit.StringFixed(2))
}

func TestCalculateProfit_ZeroRevenue_ZeroMargin(t *testing.T) {
	figures := engine.CalculateProfit(5, decimal.NewFromFloat(2.00), decimal.Zero)
	assert.True(t, figures.ProfitMargin.IsZero(), "margin must be 0, not a division error")
	assert.Equal(t, "-10.00", figures.Profit.StringFixed(2))
}

// =============================================================================
// SALE PROCESSING
// =============================================================================

func TestProcessSale_Success_TripleWrite(t *testing.T) {
	// GIVEN: An item with 10 units
	// WHEN: Selling 3 at cost 4.00 / price 10.00
	// THEN: Stock drops to 7, the sale lands with derived financials, and a
	//       paired "remove" transaction references it

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 10)

	sale, err := eng.Sales.ProcessSale(ctx, saleReq(item.ID, 3, 4.00, 10.00))
	require.NoError(t, err)

	assert.Equal(t, "12.00", sale.TotalCost.StringFixed(2))
	assert.Equal(t, "30.00", sale.TotalRevenue.StringFixed(2))
	assert.Equal(t, "18.00", sale.Profit.StringFixed(2))
	assert.Equal(t, item.Name, sale.ItemName, "name is snapshotted at sale time")
	assert.Equal(t, item.SKU, sale.ItemSKU)

	reloaded, err := mem.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, reloaded.Quantity)

	sales, err := mem.ListSales(ctx, engine.SaleFilter{InventoryID: item.ID})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, sale.ID, sales[0].ID)

	txs, err := mem.ListTransactions(ctx, engine.TransactionFilter{InventoryID: item.ID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, engine.TxRemove, txs[0].Type)
	assert.Equal(t, "sale:"+string(sale.ID), txs[0].Reference)
}

func TestProcessSale_ValidationOrder(t *testing.T) {
	// The checks short-circuit in a fixed order; each case trips exactly the
	// first failing rule even when later fields are also bad.
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 10)

	cases := []struct {
		name    string
		mutate  func(*engine.SaleRequest)
		message string
	}{
		{
			name: "quantity first",
			mutate: func(r *engine.SaleRequest) {
				r.Quantity = 0
				r.SellingPrice = decimal.NewFromInt(-1)
			},
			message: "quantity must be positive",
		},
		{
			name: "selling price second",
			mutate: func(r *engine.SaleRequest) {
				r.SellingPrice = decimal.NewFromInt(-1)
				r.Department = ""
			},
			message: "selling price cannot be negative",
		},
		{
			name: "department third",
			mutate: func(r *engine.SaleRequest) {
				r.Department = "  "
				r.CostPrice = decimal.NewFromInt(-1)
			},
			message: "department is required",
		},
		{
			name:    "cost price last",
			mutate:  func(r *engine.SaleRequest) { r.CostPrice = decimal.NewFromInt(-1) },
			message: "cost price cannot be negative",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := saleReq(item.ID, 2, 4.00, 10.00)
			tc.mutate(&req)

			_, err := eng.Sales.ProcessSale(ctx, req)
			require.Error(t, err)
			assert.ErrorIs(t, err, engine.ErrValidation)
			assert.Equal(t, tc.message, err.Error())
		})
	}

	// None of the rejections may have touched the stock.
	reloaded, err := mem.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, reloaded.Quantity)
}

func TestProcessSale_UnknownItem_NotFound(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Sales.ProcessSale(context.Background(), saleReq("nope", 1, 0, 5.00))
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestProcessSale_DeletedItem_NotFound(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 10)

	_, err := eng.Catalog.DeleteItem(ctx, item.ID, "manager")
	require.NoError(t, err)

	_, err = eng.Sales.ProcessSale(ctx, saleReq(item.ID, 1, 0, 5.00))
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestProcessSale_InsufficientStock_NoSideEffects(t *testing.T) {
	// GIVEN: 3 units on hand
	// WHEN: Selling 5
	// THEN: The rejection carries the available quantity and nothing changed

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 3)

	_, err := eng.Sales.ProcessSale(ctx, saleReq(item.ID, 5, 4.00, 10.00))
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInsufficientStock)
	assert.Equal(t, "Insufficient stock. Available: 3 units", err.Error())

	sales, err := mem.ListSales(ctx, engine.SaleFilter{InventoryID: item.ID})
	require.NoError(t, err)
	assert.Empty(t, sales)

	reloaded, err := mem.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, reloaded.Quantity)
}

func TestProcessSale_SaleWriteFailure_Compensated(t *testing.T) {
	// GIVEN: The sale collection is refusing writes
	// WHEN: A sale's decrement applies and the sale record then fails
	// THEN: The decrement is compensated: quantity restored, no sale visible

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 10)

	mem.SetFaults(store.Faults{InsertSale: errors.New("sheet unreachable")})

	_, err := eng.Sales.ProcessSale(ctx, saleReq(item.ID, 3, 4.00, 10.00))
	assert.ErrorIs(t, err, engine.ErrPersistence)

	mem.SetFaults(store.Faults{})
	reloaded, gerr := mem.GetItem(ctx, item.ID)
	require.NoError(t, gerr)
	assert.EqualValues(t, 10, reloaded.Quantity)

	sales, serr := mem.ListSales(ctx, engine.SaleFilter{InventoryID: item.ID})
	require.NoError(t, serr)
	assert.Empty(t, sales)
}

func TestProcessSale_ZeroCost_NominalProfit(t *testing.T) {
	// costPrice defaults to zero when the caller has none; profit then equals
	// revenue and is nominal, not cost-basis profit.
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 10)

	sale, err := eng.Sales.ProcessSale(ctx, saleReq(item.ID, 2, 0, 7.50))
	require.NoError(t, err)
	assert.Equal(t, "0.00", sale.TotalCost.StringFixed(2))
	assert.Equal(t, "15.00", sale.TotalRevenue.StringFixed(2))
	assert.Equal(t, "15.00", sale.Profit.StringFixed(2))
}
