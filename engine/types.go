/*
Package engine provides the inventory consistency engine.

PURPOSE:
  This package contains the rules that keep stock quantities, sale records,
  restock orders, and audit log entries mutually consistent under concurrent
  access. Presentation, transport, and the actual storage substrate live
  outside; the engine only talks to the abstract Store interface.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: A stock-keeping unit with an authoritative quantity on hand
  - RestockOrder: A supplier order tracked through a lifecycle
  - Transaction: An immutable record of every quantity change
  - Sale: An immutable record of a completed point-of-sale transaction
  - LogEntry: An immutable operational record (INFO/WARN/ERROR)

DESIGN PRINCIPLES:
  1. Immutability: Sales, Transactions, and LogEntries are never modified
  2. Precision: Uses decimal.Decimal for money to avoid floating-point errors
  3. Derivation: totalCost, totalRevenue, profit are always computed, never
     independently edited
  4. Soft delete: Items and orders are flagged, never physically removed

SEE ALSO:
  - store.go: Persistence interface the engine issues reads/writes against
  - stock.go: The only component permitted to mutate Item.Quantity
  - sales.go: Sale validation, financial computation, atomic triple write
  - restock.go: Restock order state machine
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ItemID string
type OrderID string
type SaleID string
type TransactionID string

// =============================================================================
// ITEM - Stock-keeping unit
// =============================================================================

// Item is a stock-keeping unit. Quantity is owned exclusively by the
// StockLedger; all other fields are editable via the catalog update path.
// Deleted items are excluded from active-stock queries but retained for
// audit continuity.
type Item struct {
	ID           ItemID
	Name         string
	SKU          string // unique, non-empty
	Quantity     int64  // >= 0 always
	ReorderPoint int64  // >= 0
	Category     string
	Unit         string
	Deleted      bool
	LastModified time.Time
	Version      int64 // concurrency token, managed by the store
}

// =============================================================================
// RESTOCK ORDER - Supplier order lifecycle
// =============================================================================

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderOrdered   OrderStatus = "ordered"
	OrderReceived  OrderStatus = "received"  // terminal
	OrderCancelled OrderStatus = "cancelled" // terminal
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderReceived || s == OrderCancelled
}

// RestockOrder is a request to increase an item's quantity. Only the
// transition into OrderReceived has a side effect (stock increment); all
// other transitions are pure status writes.
type RestockOrder struct {
	ID           OrderID
	InventoryID  ItemID
	Quantity     int64 // > 0
	CostPrice    decimal.Decimal
	TotalCost    decimal.Decimal // derived: Quantity x CostPrice
	Status       OrderStatus
	OrderedDate  time.Time
	ReceivedDate *time.Time // nil until received
	Notes        string
	Deleted      bool
	LastModified time.Time
	Version      int64
}

// =============================================================================
// TRANSACTION - Immutable record of a quantity change
// =============================================================================

type TransactionType string

const (
	TxAdd     TransactionType = "add"     // initial stock on item creation
	TxRemove  TransactionType = "remove"  // sale decrement
	TxRestock TransactionType = "restock" // received restock order
	TxAdjust  TransactionType = "adjust"  // manual quantity correction
)

// Transaction records one quantity change, regardless of cause.
// Exactly one Transaction is created per stock ledger mutation.
// Append-only: never updated or deleted.
type Transaction struct {
	ID          TransactionID
	InventoryID ItemID
	Type        TransactionType
	Quantity    int64 // signed delta
	Reference   string
	Timestamp   time.Time
	User        string
}

// =============================================================================
// SALE - Immutable point-of-sale record
// =============================================================================

// Sale records a completed sale. ItemName and ItemSKU are denormalized
// snapshots taken at sale time so later catalog edits don't rewrite history.
type Sale struct {
	ID           SaleID
	InventoryID  ItemID
	ItemName     string
	ItemSKU      string
	Quantity     int64 // > 0
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	TotalCost    decimal.Decimal // derived
	TotalRevenue decimal.Decimal // derived
	Profit       decimal.Decimal // derived: TotalRevenue - TotalCost
	Department   string
	Timestamp    time.Time
	User         string
}

// =============================================================================
// LOG ENTRY - Immutable operational record
// =============================================================================

type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// LogEntry is an append-only operational record of an attempted or completed
// action. Produced by the audit logger for every decision point, success or
// rejection.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Operation string // name of the invoked action, e.g. "processSale"
	Message   string
	Details   string
}

// =============================================================================
// MONEY - Financial figures and rounding
// =============================================================================

// Round2 rounds a money amount to 2 decimal places, half up.
// Every derived figure is rounded at each step, in a fixed order, so that
// rounding error does not compound.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ProfitFigures holds the derived financials for a sale.
type ProfitFigures struct {
	TotalCost    decimal.Decimal
	TotalRevenue decimal.Decimal
	Profit       decimal.Decimal
	ProfitMargin decimal.Decimal // percentage, 0 when revenue is 0
}

// CalculateProfit computes the derived financials for a prospective sale.
// Order matters: each figure is rounded before the next uses it.
func CalculateProfit(quantity int64, costPrice, sellingPrice decimal.Decimal) ProfitFigures {
	qty := decimal.NewFromInt(quantity)
	totalCost := Round2(costPrice.Mul(qty))
	totalRevenue := Round2(sellingPrice.Mul(qty))
	profit := Round2(totalRevenue.Sub(totalCost))

	margin := decimal.Zero
	if totalRevenue.IsPositive() {
		margin = Round2(profit.Div(totalRevenue).Mul(decimal.NewFromInt(100)))
	}

	return ProfitFigures{
		TotalCost:    totalCost,
		TotalRevenue: totalRevenue,
		Profit:       profit,
		ProfitMargin: margin,
	}
}
