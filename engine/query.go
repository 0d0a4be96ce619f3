/*
query.go - Read-only projections

PURPOSE:
  Computes views over the stored collections without mutating anything:
  low-stock lists, cash-flow summaries, and filtered item/transaction/sale/
  log views. Safe to call concurrently with any writer; reads may observe
  pre- or post-write state for an in-flight write, but never a quantity
  change without its paired Transaction (the ledger inserts the Transaction
  before releasing the item lock).

CASH FLOW:
  totalProfit is recomputed from the revenue and cost sums rather than by
  summing stored per-sale profit, so per-sale rounding cannot drift the
  aggregate.
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUERY LAYER
// =============================================================================

// Query exposes read-only projections over the store.
type Query struct {
	store Store
}

// NewQuery creates a query layer over the given store.
func NewQuery(store Store) *Query {
	return &Query{store: store}
}

// Items lists active items, optionally filtered by category, search text,
// or low-stock state.
func (q *Query) Items(ctx context.Context, f ItemFilter) ([]Item, error) {
	return q.store.ListItems(ctx, f)
}

// Item returns one item by id, including soft-deleted ones (history views
// need them).
func (q *Query) Item(ctx context.Context, id ItemID) (*Item, error) {
	return q.store.GetItem(ctx, id)
}

// LowStock lists active items whose quantity is at or below their reorder
// point.
func (q *Query) LowStock(ctx context.Context) ([]Item, error) {
	return q.store.ListItems(ctx, ItemFilter{LowStock: true})
}

// Orders lists restock orders.
func (q *Query) Orders(ctx context.Context, f OrderFilter) ([]RestockOrder, error) {
	return q.store.ListOrders(ctx, f)
}

// Order returns one restock order by id.
func (q *Query) Order(ctx context.Context, id OrderID) (*RestockOrder, error) {
	return q.store.GetOrder(ctx, id)
}

// Transactions lists quantity-change records, optionally per item.
func (q *Query) Transactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	return q.store.ListTransactions(ctx, f)
}

// Sales lists sale records, optionally per item and bounded by an inclusive
// timestamp range.
func (q *Query) Sales(ctx context.Context, f SaleFilter) ([]Sale, error) {
	return q.store.ListSales(ctx, f)
}

// Logs lists audit log entries, newest first.
func (q *Query) Logs(ctx context.Context, f LogFilter) ([]LogEntry, error) {
	return q.store.ListLogs(ctx, f)
}

// =============================================================================
// CASH FLOW
// =============================================================================

// CashFlowSummary aggregates sales over a timestamp range.
type CashFlowSummary struct {
	TotalRevenue decimal.Decimal
	TotalCost    decimal.Decimal
	TotalProfit  decimal.Decimal
	SalesCount   int
	Start        *time.Time
	End          *time.Time
}

// CashFlow sums sales whose timestamp falls in [start, end], inclusive; a
// nil bound is unbounded on that side.
func (q *Query) CashFlow(ctx context.Context, start, end *time.Time) (*CashFlowSummary, error) {
	sales, err := q.store.ListSales(ctx, SaleFilter{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	summary := &CashFlowSummary{
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
		Start:        start,
		End:          end,
	}
	for _, s := range sales {
		summary.TotalRevenue = summary.TotalRevenue.Add(s.TotalRevenue)
		summary.TotalCost = summary.TotalCost.Add(s.TotalCost)
		summary.SalesCount++
	}
	// Recomputed from the sums, not from summing per-sale profit.
	summary.TotalProfit = summary.TotalRevenue.Sub(summary.TotalCost)
	return summary, nil
}
