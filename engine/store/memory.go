// Package store provides the in-memory Store implementation, used by tests
// and as the degraded fallback when no database is configured.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/inventory-engine/engine"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements engine.Store with maps guarded by a RWMutex.
type Memory struct {
	mu     sync.RWMutex
	items  map[engine.ItemID]engine.Item
	orders map[engine.OrderID]engine.RestockOrder

	sales   []engine.Sale
	saleIDs map[engine.SaleID]bool
	txs     []engine.Transaction
	txIDs   map[engine.TransactionID]bool
	logs    []engine.LogEntry

	faults Faults
}

// Faults injects storage failures, for exercising compensation paths in
// tests. A non-nil error fails the corresponding write.
type Faults struct {
	InsertSale        error
	InsertTransaction error
	AppendLog         error
	UpdateItem        error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items:   make(map[engine.ItemID]engine.Item),
		orders:  make(map[engine.OrderID]engine.RestockOrder),
		saleIDs: make(map[engine.SaleID]bool),
		txIDs:   make(map[engine.TransactionID]bool),
	}
}

// SetFaults replaces the injected failure set.
func (m *Memory) SetFaults(f Faults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = f
}

// =============================================================================
// ITEMS
// =============================================================================

func (m *Memory) GetItem(_ context.Context, id engine.ItemID) (*engine.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, &engine.NotFoundError{Collection: "inventory", ID: string(id)}
	}
	out := item
	return &out, nil
}

func (m *Memory) FindItemBySKU(_ context.Context, sku string) (*engine.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, item := range m.items {
		if item.SKU == sku && !item.Deleted {
			out := item
			return &out, nil
		}
	}
	return nil, &engine.NotFoundError{Collection: "inventory", ID: sku}
}

func (m *Memory) ListItems(_ context.Context, f engine.ItemFilter) ([]engine.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Item, 0)
	for _, item := range m.items {
		if matchItem(item, f) {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// activeSKUTaken reports whether another non-deleted item holds sku.
// Caller holds the write lock.
func (m *Memory) activeSKUTaken(sku string, self engine.ItemID) bool {
	for _, item := range m.items {
		if item.ID != self && !item.Deleted && item.SKU == sku {
			return true
		}
	}
	return false
}

func matchItem(item engine.Item, f engine.ItemFilter) bool {
	if item.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.LowStock && item.Quantity > item.ReorderPoint {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(item.Name), needle) &&
			!strings.Contains(strings.ToLower(item.SKU), needle) &&
			!strings.Contains(strings.ToLower(item.Category), needle) {
			return false
		}
	}
	return true
}

func (m *Memory) InsertItem(_ context.Context, item engine.Item) (*engine.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == "" {
		item.ID = engine.ItemID(uuid.NewString())
	} else if _, exists := m.items[item.ID]; exists {
		return nil, engine.ErrDuplicateID
	}
	if !item.Deleted && m.activeSKUTaken(item.SKU, item.ID) {
		return nil, engine.ErrDuplicateID
	}
	item.Version = 1
	item.LastModified = time.Now().UTC()
	m.items[item.ID] = item

	out := item
	return &out, nil
}

func (m *Memory) UpdateItem(_ context.Context, id engine.ItemID, version int64, patch engine.ItemPatch) (*engine.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.faults.UpdateItem != nil {
		return nil, m.faults.UpdateItem
	}

	item, ok := m.items[id]
	if !ok {
		return nil, &engine.NotFoundError{Collection: "inventory", ID: string(id)}
	}
	if item.Version != version {
		return nil, engine.ErrConflict
	}
	if patch.SKU != nil && m.activeSKUTaken(*patch.SKU, id) {
		return nil, engine.ErrDuplicateID
	}

	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.SKU != nil {
		item.SKU = *patch.SKU
	}
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.ReorderPoint != nil {
		item.ReorderPoint = *patch.ReorderPoint
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.Unit != nil {
		item.Unit = *patch.Unit
	}
	if patch.Deleted != nil {
		item.Deleted = *patch.Deleted
	}
	item.Version++
	item.LastModified = time.Now().UTC()
	m.items[id] = item

	out := item
	return &out, nil
}

// =============================================================================
// RESTOCK ORDERS
// =============================================================================

func (m *Memory) GetOrder(_ context.Context, id engine.OrderID) (*engine.RestockOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, &engine.NotFoundError{Collection: "restock", ID: string(id)}
	}
	out := copyOrder(order)
	return &out, nil
}

func (m *Memory) ListOrders(_ context.Context, f engine.OrderFilter) ([]engine.RestockOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.RestockOrder, 0)
	for _, order := range m.orders {
		if order.Deleted && !f.IncludeDeleted {
			continue
		}
		if f.Status != "" && order.Status != f.Status {
			continue
		}
		if f.InventoryID != "" && order.InventoryID != f.InventoryID {
			continue
		}
		result = append(result, copyOrder(order))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OrderedDate.Before(result[j].OrderedDate)
	})
	return result, nil
}

func (m *Memory) InsertOrder(_ context.Context, order engine.RestockOrder) (*engine.RestockOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == "" {
		order.ID = engine.OrderID(uuid.NewString())
	} else if _, exists := m.orders[order.ID]; exists {
		return nil, engine.ErrDuplicateID
	}
	order.Version = 1
	order.LastModified = time.Now().UTC()
	m.orders[order.ID] = copyOrder(order)

	out := copyOrder(order)
	return &out, nil
}

func (m *Memory) UpdateOrder(_ context.Context, id engine.OrderID, version int64, patch engine.OrderPatch) (*engine.RestockOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, &engine.NotFoundError{Collection: "restock", ID: string(id)}
	}
	if order.Version != version {
		return nil, engine.ErrConflict
	}

	if patch.Quantity != nil {
		order.Quantity = *patch.Quantity
	}
	if patch.CostPrice != nil {
		order.CostPrice = *patch.CostPrice
	}
	if patch.TotalCost != nil {
		order.TotalCost = *patch.TotalCost
	}
	if patch.Status != nil {
		order.Status = *patch.Status
	}
	if patch.ReceivedDate != nil {
		d := *patch.ReceivedDate
		order.ReceivedDate = &d
	}
	if patch.ClearReceivedDate {
		order.ReceivedDate = nil
	}
	if patch.Notes != nil {
		order.Notes = *patch.Notes
	}
	if patch.Deleted != nil {
		order.Deleted = *patch.Deleted
	}
	order.Version++
	order.LastModified = time.Now().UTC()
	m.orders[id] = copyOrder(order)

	out := copyOrder(order)
	return &out, nil
}

func copyOrder(order engine.RestockOrder) engine.RestockOrder {
	if order.ReceivedDate != nil {
		d := *order.ReceivedDate
		order.ReceivedDate = &d
	}
	return order
}

// =============================================================================
// SALES (append-only)
// =============================================================================

func (m *Memory) InsertSale(_ context.Context, sale engine.Sale) (*engine.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.faults.InsertSale != nil {
		return nil, m.faults.InsertSale
	}

	if sale.ID == "" {
		sale.ID = engine.SaleID(uuid.NewString())
	} else if m.saleIDs[sale.ID] {
		return nil, engine.ErrDuplicateID
	}
	if sale.Timestamp.IsZero() {
		sale.Timestamp = time.Now().UTC()
	}
	m.sales = append(m.sales, sale)
	m.saleIDs[sale.ID] = true

	out := sale
	return &out, nil
}

func (m *Memory) ListSales(_ context.Context, f engine.SaleFilter) ([]engine.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Sale, 0)
	for _, sale := range m.sales {
		if f.InventoryID != "" && sale.InventoryID != f.InventoryID {
			continue
		}
		if f.Start != nil && sale.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && sale.Timestamp.After(*f.End) {
			continue
		}
		result = append(result, sale)
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONS (append-only)
// =============================================================================

func (m *Memory) InsertTransaction(_ context.Context, tx engine.Transaction) (*engine.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.faults.InsertTransaction != nil {
		return nil, m.faults.InsertTransaction
	}

	if tx.ID == "" {
		tx.ID = engine.TransactionID(uuid.NewString())
	} else if m.txIDs[tx.ID] {
		return nil, engine.ErrDuplicateID
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	m.txs = append(m.txs, tx)
	m.txIDs[tx.ID] = true

	out := tx
	return &out, nil
}

func (m *Memory) ListTransactions(_ context.Context, f engine.TransactionFilter) ([]engine.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Transaction, 0)
	for _, tx := range m.txs {
		if f.InventoryID != "" && tx.InventoryID != f.InventoryID {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		result = append(result, tx)
	}
	return result, nil
}

func (m *Memory) TransactionExists(_ context.Context, id engine.TransactionID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txIDs[id], nil
}

// =============================================================================
// LOGS (append-only)
// =============================================================================

func (m *Memory) AppendLog(_ context.Context, entry engine.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.faults.AppendLog != nil {
		return m.faults.AppendLog
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.logs = append(m.logs, entry)
	return nil
}

func (m *Memory) ListLogs(_ context.Context, f engine.LogFilter) ([]engine.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first.
	result := make([]engine.LogEntry, 0)
	for i := len(m.logs) - 1; i >= 0; i-- {
		entry := m.logs[i]
		if f.Level != "" && entry.Level != f.Level {
			continue
		}
		result = append(result, entry)
		if f.Limit > 0 && len(result) >= f.Limit {
			break
		}
	}
	return result, nil
}

var _ engine.Store = (*Memory)(nil)
