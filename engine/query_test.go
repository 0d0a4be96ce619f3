package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/engine"
)

// =============================================================================
// LOW STOCK AND ITEM FILTERS
// =============================================================================

func TestQuery_LowStock(t *testing.T) {
	// GIVEN: Items at, below, and above their reorder points
	// WHEN: Listing low stock
	// THEN: At-or-below qualifies; deleted items never appear

	eng, mem := newTestEngine(t)
	ctx := context.Background()

	below, err := mem.InsertItem(ctx, engine.Item{Name: "Below", SKU: "b", Quantity: 2, ReorderPoint: 5})
	require.NoError(t, err)
	at, err := mem.InsertItem(ctx, engine.Item{Name: "At", SKU: "a", Quantity: 5, ReorderPoint: 5})
	require.NoError(t, err)
	_, err = mem.InsertItem(ctx, engine.Item{Name: "Above", SKU: "c", Quantity: 9, ReorderPoint: 5})
	require.NoError(t, err)
	gone, err := mem.InsertItem(ctx, engine.Item{Name: "Gone", SKU: "d", Quantity: 0, ReorderPoint: 5})
	require.NoError(t, err)
	_, err = eng.Catalog.DeleteItem(ctx, gone.ID, "manager")
	require.NoError(t, err)

	low, err := eng.Query.LowStock(ctx)
	require.NoError(t, err)

	ids := make([]engine.ItemID, 0, len(low))
	for _, item := range low {
		ids = append(ids, item.ID)
	}
	assert.ElementsMatch(t, []engine.ItemID{below.ID, at.ID}, ids)
}

func TestQuery_Items_SearchAndCategory(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := mem.InsertItem(ctx, engine.Item{Name: "Basmati Rice", SKU: "RICE-1", Category: "grains"})
	require.NoError(t, err)
	_, err = mem.InsertItem(ctx, engine.Item{Name: "Jasmine Rice", SKU: "RICE-2", Category: "grains"})
	require.NoError(t, err)
	_, err = mem.InsertItem(ctx, engine.Item{Name: "Olive Oil", SKU: "OIL-1", Category: "oils"})
	require.NoError(t, err)

	grains, err := eng.Query.Items(ctx, engine.ItemFilter{Category: "grains"})
	require.NoError(t, err)
	assert.Len(t, grains, 2)

	// Search is case-insensitive over name, sku, and category.
	hits, err := eng.Query.Items(ctx, engine.ItemFilter{Search: "rice"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = eng.Query.Items(ctx, engine.ItemFilter{Search: "OIL"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

// =============================================================================
// CASH FLOW
// =============================================================================

func TestQuery_CashFlow_SumsAndRecomputesProfit(t *testing.T) {
	// GIVEN: Two sales with revenues [30, 20] and costs [12, 8]
	// WHEN: Summarizing cash flow
	// THEN: revenue 50, cost 20, profit 30 (recomputed from the sums), count 2

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 100)

	_, err := eng.Sales.ProcessSale(ctx, saleReq(item.ID, 3, 4.00, 10.00))
	require.NoError(t, err)
	_, err = eng.Sales.ProcessSale(ctx, saleReq(item.ID, 2, 4.00, 10.00))
	require.NoError(t, err)

	summary, err := eng.Query.CashFlow(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "50.00", summary.TotalRevenue.StringFixed(2))
	assert.Equal(t, "20.00", summary.TotalCost.StringFixed(2))
	assert.Equal(t, "30.00", summary.TotalProfit.StringFixed(2))
	assert.Equal(t, 2, summary.SalesCount)
}

func TestQuery_CashFlow_InclusiveBounds(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 100)

	before := time.Now().UTC().Add(-time.Second)
	_, err := eng.Sales.ProcessSale(ctx, saleReq(item.ID, 1, 0, 5.00))
	require.NoError(t, err)
	after := time.Now().UTC().Add(time.Second)

	inWindow, err := eng.Query.CashFlow(ctx, &before, &after)
	require.NoError(t, err)
	assert.Equal(t, 1, inWindow.SalesCount)

	outside, err := eng.Query.CashFlow(ctx, &after, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, outside.SalesCount)
	assert.True(t, outside.TotalProfit.IsZero())
}

// =============================================================================
// AUDIT TRAIL READS
// =============================================================================

func TestQuery_Logs_NewestFirstWithLimit(t *testing.T) {
	// GIVEN: A mix of INFO and WARN entries from real operations
	// WHEN: Listing with a level filter and a limit
	// THEN: Entries come back newest first and the limit holds

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, mem, "sku-1", 3)

	// Two successes, then a rejection.
	_, err := eng.Sales.ProcessSale(ctx, saleReq(item.ID, 1, 0, 5.00))
	require.NoError(t, err)
	_, err = eng.Sales.ProcessSale(ctx, saleReq(item.ID, 1, 0, 5.00))
	require.NoError(t, err)
	_, err = eng.Sales.ProcessSale(ctx, saleReq(item.ID, 5, 0, 5.00))
	require.Error(t, err)

	warns, err := eng.Query.Logs(ctx, engine.LogFilter{Level: engine.LevelWarn})
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, "processSale", warns[0].Operation)

	all, err := eng.Query.Logs(ctx, engine.LogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, engine.LevelWarn, all[0].Level, "rejection is the newest entry")

	limited, err := eng.Query.Logs(ctx, engine.LogFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
