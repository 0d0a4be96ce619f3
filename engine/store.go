/*
store.go - Persistence interface consumed by the engine

PURPOSE:
  Defines the interface between the engine and wherever rows actually live.
  Any backing store (SQLite, in-memory, a remote sheet) implements this.

APPEND-ONLY CONTRACT:
  Sales, Transactions, and LogEntries are insert-only:
  - NO update or delete methods exist for these three collections
  - Corrections are made by appending compensating records

CONCURRENCY TOKENS:
  UpdateItem and UpdateOrder are conditional on the record's Version. A
  mismatch returns ErrConflict so the stock ledger can reload and retry.
  Inserts assign generated ids and LastModified.

UNIQUENESS:
  Stores enforce SKU uniqueness over non-deleted items. InsertItem and
  UpdateItem return ErrDuplicateID when a claim would collide, which
  catches the loser of two concurrent creates that both passed the
  catalog's lookup.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - engine/store: in-memory store for tests and degraded offline mode

SEE ALSO:
  - stock.go: the only writer of Item.Quantity
  - query.go: read-only projections over these collections
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTERS
// =============================================================================

// ItemFilter narrows ListItems. Zero value lists all active (non-deleted)
// items.
type ItemFilter struct {
	IncludeDeleted bool
	Category       string // exact match when non-empty
	Search         string // case-insensitive substring over name/sku/category
	LowStock       bool   // quantity <= reorder point
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	Status         OrderStatus
	InventoryID    ItemID
	IncludeDeleted bool
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	InventoryID ItemID
	Type        TransactionType
}

// SaleFilter narrows ListSales. Bounds are inclusive; a nil bound is
// unbounded on that side.
type SaleFilter struct {
	InventoryID ItemID
	Start       *time.Time
	End         *time.Time
}

// LogFilter narrows ListLogs. Entries come back newest first; Limit <= 0
// means no limit.
type LogFilter struct {
	Level LogLevel
	Limit int
}

// =============================================================================
// PATCHES - Partial updates, conditional on a concurrency token
// =============================================================================

// ItemPatch carries the fields an UpdateItem call may change. Nil means
// leave unchanged.
type ItemPatch struct {
	Name         *string
	SKU          *string
	Quantity     *int64
	ReorderPoint *int64
	Category     *string
	Unit         *string
	Deleted      *bool
}

// OrderPatch carries the fields an UpdateOrder call may change. TotalCost
// always travels with Quantity/CostPrice changes because it is derived.
type OrderPatch struct {
	Quantity     *int64
	CostPrice    *decimal.Decimal
	TotalCost    *decimal.Decimal
	Status       *OrderStatus
	ReceivedDate *time.Time
	// ClearReceivedDate empties ReceivedDate (a nil ReceivedDate means
	// "leave unchanged"). Used when rolling back a failed receive.
	ClearReceivedDate bool
	Notes             *string
	Deleted           *bool
}

// =============================================================================
// STORE - Abstract persistence
// =============================================================================

// Store is the persistence interface the engine issues reads and writes
// against.
//
// CONTRACT:
//   - Get* return ErrNotFound (wrapped) when the id is unknown.
//   - Insert* assign a generated id and LastModified, unless the record
//     carries an explicit id, in which case a duplicate returns
//     ErrDuplicateID.
//   - Update* succeed only when version matches the stored concurrency
//     token; otherwise ErrConflict. On success the token is advanced and
//     LastModified refreshed.
//   - Sales, Transactions, and LogEntries are append-only.
type Store interface {
	// Items
	GetItem(ctx context.Context, id ItemID) (*Item, error)
	FindItemBySKU(ctx context.Context, sku string) (*Item, error)
	ListItems(ctx context.Context, f ItemFilter) ([]Item, error)
	InsertItem(ctx context.Context, item Item) (*Item, error)
	UpdateItem(ctx context.Context, id ItemID, version int64, patch ItemPatch) (*Item, error)

	// Restock orders
	GetOrder(ctx context.Context, id OrderID) (*RestockOrder, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]RestockOrder, error)
	InsertOrder(ctx context.Context, order RestockOrder) (*RestockOrder, error)
	UpdateOrder(ctx context.Context, id OrderID, version int64, patch OrderPatch) (*RestockOrder, error)

	// Sales (append-only)
	InsertSale(ctx context.Context, sale Sale) (*Sale, error)
	ListSales(ctx context.Context, f SaleFilter) ([]Sale, error)

	// Transactions (append-only)
	InsertTransaction(ctx context.Context, tx Transaction) (*Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
	TransactionExists(ctx context.Context, id TransactionID) (bool, error)

	// Logs (append-only)
	AppendLog(ctx context.Context, entry LogEntry) error
	ListLogs(ctx context.Context, f LogFilter) ([]LogEntry, error)
}
