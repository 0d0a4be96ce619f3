/*
Package sqlite provides the SQLite-backed implementation of engine.Store.

PURPOSE:
  Durable keyed storage for the four entity collections (items, restock
  orders, transactions, sales) plus the append-only log collection. The
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist for the sales, transactions, or logs
  tables. Corrections are made by appending compensating records.

CONCURRENCY TOKENS:
  items and restock_orders carry a version column. Updates run as
  "... WHERE id = ? AND version = ?"; zero rows affected means either the
  row is gone (ErrNotFound) or the token is stale (ErrConflict).

WAL MODE:
  The database is opened with WAL so readers don't block the single writer
  and crash recovery is cheap.

SEE ALSO:
  - engine/store.go: interface contract
  - engine/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/inventory-engine/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent mutations.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		reorder_point INTEGER NOT NULL DEFAULT 0,
		category TEXT,
		unit TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		last_modified TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	-- Partial: uniqueness holds over active items only, so a soft-deleted
	-- item releases its SKU for reuse.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_items_sku_active ON items(sku) WHERE deleted = 0;
	CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);

	CREATE TABLE IF NOT EXISTS restock_orders (
		id TEXT PRIMARY KEY,
		inventory_id TEXT NOT NULL REFERENCES items(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		cost_price TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		status TEXT NOT NULL,
		ordered_date TEXT NOT NULL,
		received_date TEXT,
		notes TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		last_modified TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_orders_item ON restock_orders(inventory_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON restock_orders(status);

	-- Append-only: no UPDATE/DELETE is ever issued against these tables.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		inventory_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		reference TEXT,
		timestamp TEXT NOT NULL,
		user TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_item ON transactions(inventory_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(tx_type);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		inventory_id TEXT NOT NULL,
		item_name TEXT NOT NULL,
		item_sku TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		cost_price TEXT NOT NULL,
		selling_price TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		total_revenue TEXT NOT NULL,
		profit TEXT NOT NULL,
		department TEXT,
		timestamp TEXT NOT NULL,
		user TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sales_item ON sales(inventory_id);
	CREATE INDEX IF NOT EXISTS idx_sales_timestamp ON sales(timestamp);

	CREATE TABLE IF NOT EXISTS logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		level TEXT NOT NULL,
		operation TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ITEMS
// =============================================================================

const itemColumns = "id, name, sku, quantity, reorder_point, category, unit, deleted, last_modified, version"

func (s *Store) GetItem(ctx context.Context, id engine.ItemID) (*engine.Item, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ?", string(id))
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Collection: "inventory", ID: string(id)}
	}
	return item, err
}

func (s *Store) FindItemBySKU(ctx context.Context, sku string) (*engine.Item, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE sku = ? AND deleted = 0 LIMIT 1", sku)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Collection: "inventory", ID: sku}
	}
	return item, err
}

func (s *Store) ListItems(ctx context.Context, f engine.ItemFilter) ([]engine.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE 1=1"
	var args []any

	if !f.IncludeDeleted {
		query += " AND deleted = 0"
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.LowStock {
		query += " AND quantity <= reorder_point"
	}
	if f.Search != "" {
		query += " AND (LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(category) LIKE ?)"
		needle := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, needle, needle, needle)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]engine.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *Store) InsertItem(ctx context.Context, item engine.Item) (*engine.Item, error) {
	if item.ID == "" {
		item.ID = engine.ItemID(uuid.NewString())
	}
	item.Version = 1
	item.LastModified = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, sku, quantity, reorder_point, category, unit, deleted, last_modified, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(item.ID), item.Name, item.SKU, item.Quantity, item.ReorderPoint,
		item.Category, item.Unit, boolToInt(item.Deleted), formatTime(item.LastModified), item.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, engine.ErrDuplicateID
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateItem(ctx context.Context, id engine.ItemID, version int64, patch engine.ItemPatch) (*engine.Item, error) {
	sets := []string{"version = version + 1", "last_modified = ?"}
	args := []any{formatTime(time.Now().UTC())}

	addSet := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if patch.Name != nil {
		addSet("name", *patch.Name)
	}
	if patch.SKU != nil {
		addSet("sku", *patch.SKU)
	}
	if patch.Quantity != nil {
		addSet("quantity", *patch.Quantity)
	}
	if patch.ReorderPoint != nil {
		addSet("reorder_point", *patch.ReorderPoint)
	}
	if patch.Category != nil {
		addSet("category", *patch.Category)
	}
	if patch.Unit != nil {
		addSet("unit", *patch.Unit)
	}
	if patch.Deleted != nil {
		addSet("deleted", boolToInt(*patch.Deleted))
	}

	args = append(args, string(id), version)
	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET "+strings.Join(sets, ", ")+" WHERE id = ? AND version = ?", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, engine.ErrDuplicateID
		}
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.updateMiss(ctx, "items", "inventory", string(id))
	}
	return s.GetItem(ctx, id)
}

// updateMiss distinguishes a stale token from a missing row.
func (s *Store) updateMiss(ctx context.Context, table, collection, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &engine.NotFoundError{Collection: collection, ID: id}
	}
	if err != nil {
		return err
	}
	return engine.ErrConflict
}

// =============================================================================
// RESTOCK ORDERS
// =============================================================================

const orderColumns = "id, inventory_id, quantity, cost_price, total_cost, status, ordered_date, received_date, notes, deleted, last_modified, version"

func (s *Store) GetOrder(ctx context.Context, id engine.OrderID) (*engine.RestockOrder, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM restock_orders WHERE id = ?", string(id))
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Collection: "restock", ID: string(id)}
	}
	return order, err
}

func (s *Store) ListOrders(ctx context.Context, f engine.OrderFilter) ([]engine.RestockOrder, error) {
	query := "SELECT " + orderColumns + " FROM restock_orders WHERE 1=1"
	var args []any

	if !f.IncludeDeleted {
		query += " AND deleted = 0"
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.InventoryID != "" {
		query += " AND inventory_id = ?"
		args = append(args, string(f.InventoryID))
	}
	query += " ORDER BY ordered_date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]engine.RestockOrder, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (s *Store) InsertOrder(ctx context.Context, order engine.RestockOrder) (*engine.RestockOrder, error) {
	if order.ID == "" {
		order.ID = engine.OrderID(uuid.NewString())
	}
	order.Version = 1
	order.LastModified = time.Now().UTC()

	var receivedDate any
	if order.ReceivedDate != nil {
		receivedDate = formatTime(*order.ReceivedDate)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO restock_orders (id, inventory_id, quantity, cost_price, total_cost, status, ordered_date, received_date, notes, deleted, last_modified, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(order.ID), string(order.InventoryID), order.Quantity,
		order.CostPrice.String(), order.TotalCost.String(), string(order.Status),
		formatTime(order.OrderedDate), receivedDate, order.Notes,
		boolToInt(order.Deleted), formatTime(order.LastModified), order.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, engine.ErrDuplicateID
		}
		return nil, err
	}
	return &order, nil
}

func (s *Store) UpdateOrder(ctx context.Context, id engine.OrderID, version int64, patch engine.OrderPatch) (*engine.RestockOrder, error) {
	sets := []string{"version = version + 1", "last_modified = ?"}
	args := []any{formatTime(time.Now().UTC())}

	addSet := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if patch.Quantity != nil {
		addSet("quantity", *patch.Quantity)
	}
	if patch.CostPrice != nil {
		addSet("cost_price", patch.CostPrice.String())
	}
	if patch.TotalCost != nil {
		addSet("total_cost", patch.TotalCost.String())
	}
	if patch.Status != nil {
		addSet("status", string(*patch.Status))
	}
	if patch.ReceivedDate != nil {
		addSet("received_date", formatTime(*patch.ReceivedDate))
	}
	if patch.ClearReceivedDate {
		sets = append(sets, "received_date = NULL")
	}
	if patch.Notes != nil {
		addSet("notes", *patch.Notes)
	}
	if patch.Deleted != nil {
		addSet("deleted", boolToInt(*patch.Deleted))
	}

	args = append(args, string(id), version)
	res, err := s.db.ExecContext(ctx,
		"UPDATE restock_orders SET "+strings.Join(sets, ", ")+" WHERE id = ? AND version = ?", args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.updateMiss(ctx, "restock_orders", "restock", string(id))
	}
	return s.GetOrder(ctx, id)
}

// =============================================================================
// SALES (append-only)
// =============================================================================

const saleColumns = "id, inventory_id, item_name, item_sku, quantity, cost_price, selling_price, total_cost, total_revenue, profit, department, timestamp, user"

func (s *Store) InsertSale(ctx context.Context, sale engine.Sale) (*engine.Sale, error) {
	if sale.ID == "" {
		sale.ID = engine.SaleID(uuid.NewString())
	}
	if sale.Timestamp.IsZero() {
		sale.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sale.ID), string(sale.InventoryID), sale.ItemName, sale.ItemSKU,
		sale.Quantity, sale.CostPrice.String(), sale.SellingPrice.String(),
		sale.TotalCost.String(), sale.TotalRevenue.String(), sale.Profit.String(),
		sale.Department, formatTime(sale.Timestamp), sale.User)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, engine.ErrDuplicateID
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, f engine.SaleFilter) ([]engine.Sale, error) {
	query := "SELECT " + saleColumns + " FROM sales WHERE 1=1"
	var args []any

	if f.InventoryID != "" {
		query += " AND inventory_id = ?"
		args = append(args, string(f.InventoryID))
	}
	if f.Start != nil {
		query += " AND timestamp >= ?"
		args = append(args, formatTime(*f.Start))
	}
	if f.End != nil {
		query += " AND timestamp <= ?"
		args = append(args, formatTime(*f.End))
	}
	query += " ORDER BY timestamp"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]engine.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

// =============================================================================
// TRANSACTIONS (append-only)
// =============================================================================

func (s *Store) InsertTransaction(ctx context.Context, tx engine.Transaction) (*engine.Transaction, error) {
	if tx.ID == "" {
		tx.ID = engine.TransactionID(uuid.NewString())
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, inventory_id, tx_type, quantity, reference, timestamp, user)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID), string(tx.InventoryID), string(tx.Type), tx.Quantity,
		tx.Reference, formatTime(tx.Timestamp), tx.User)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, engine.ErrDuplicateID
		}
		return nil, err
	}
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, f engine.TransactionFilter) ([]engine.Transaction, error) {
	query := "SELECT id, inventory_id, tx_type, quantity, reference, timestamp, user FROM transactions WHERE 1=1"
	var args []any

	if f.InventoryID != "" {
		query += " AND inventory_id = ?"
		args = append(args, string(f.InventoryID))
	}
	if f.Type != "" {
		query += " AND tx_type = ?"
		args = append(args, string(f.Type))
	}
	query += " ORDER BY timestamp"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]engine.Transaction, 0)
	for rows.Next() {
		var tx engine.Transaction
		var id, inventoryID, txType, timestamp string
		if err := rows.Scan(&id, &inventoryID, &txType, &tx.Quantity,
			&tx.Reference, &timestamp, &tx.User); err != nil {
			return nil, err
		}
		tx.ID = engine.TransactionID(id)
		tx.InventoryID = engine.ItemID(inventoryID)
		tx.Type = engine.TransactionType(txType)
		if tx.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *Store) TransactionExists(ctx context.Context, id engine.TransactionID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM transactions WHERE id = ?", string(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// LOGS (append-only)
// =============================================================================

func (s *Store) AppendLog(ctx context.Context, entry engine.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (timestamp, level, operation, message, details)
		VALUES (?, ?, ?, ?, ?)`,
		formatTime(entry.Timestamp), string(entry.Level), entry.Operation,
		entry.Message, entry.Details)
	return err
}

func (s *Store) ListLogs(ctx context.Context, f engine.LogFilter) ([]engine.LogEntry, error) {
	query := "SELECT timestamp, level, operation, message, details FROM logs"
	var args []any

	if f.Level != "" {
		query += " WHERE level = ?"
		args = append(args, string(f.Level))
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]engine.LogEntry, 0)
	for rows.Next() {
		var entry engine.LogEntry
		var timestamp, level string
		if err := rows.Scan(&timestamp, &level, &entry.Operation, &entry.Message, &entry.Details); err != nil {
			return nil, err
		}
		entry.Level = engine.LogLevel(level)
		if entry.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*engine.Item, error) {
	var item engine.Item
	var id, lastModified string
	var deleted int
	if err := row.Scan(&id, &item.Name, &item.SKU, &item.Quantity,
		&item.ReorderPoint, &item.Category, &item.Unit, &deleted,
		&lastModified, &item.Version); err != nil {
		return nil, err
	}
	item.ID = engine.ItemID(id)
	item.Deleted = deleted != 0
	var err error
	if item.LastModified, err = parseTime(lastModified); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanOrder(row rowScanner) (*engine.RestockOrder, error) {
	var order engine.RestockOrder
	var id, inventoryID, costPrice, totalCost, status, orderedDate, lastModified string
	var receivedDate sql.NullString
	var deleted int
	if err := row.Scan(&id, &inventoryID, &order.Quantity, &costPrice,
		&totalCost, &status, &orderedDate, &receivedDate, &order.Notes,
		&deleted, &lastModified, &order.Version); err != nil {
		return nil, err
	}
	order.ID = engine.OrderID(id)
	order.InventoryID = engine.ItemID(inventoryID)
	order.Status = engine.OrderStatus(status)
	order.Deleted = deleted != 0

	var err error
	if order.CostPrice, err = decimal.NewFromString(costPrice); err != nil {
		return nil, err
	}
	if order.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
		return nil, err
	}
	if order.OrderedDate, err = parseTime(orderedDate); err != nil {
		return nil, err
	}
	if order.LastModified, err = parseTime(lastModified); err != nil {
		return nil, err
	}
	if receivedDate.Valid {
		t, err := parseTime(receivedDate.String)
		if err != nil {
			return nil, err
		}
		order.ReceivedDate = &t
	}
	return &order, nil
}

func scanSale(row rowScanner) (*engine.Sale, error) {
	var sale engine.Sale
	var id, inventoryID, costPrice, sellingPrice, totalCost, totalRevenue, profit, timestamp string
	if err := row.Scan(&id, &inventoryID, &sale.ItemName, &sale.ItemSKU,
		&sale.Quantity, &costPrice, &sellingPrice, &totalCost, &totalRevenue,
		&profit, &sale.Department, &timestamp, &sale.User); err != nil {
		return nil, err
	}
	sale.ID = engine.SaleID(id)
	sale.InventoryID = engine.ItemID(inventoryID)

	var err error
	if sale.CostPrice, err = decimal.NewFromString(costPrice); err != nil {
		return nil, err
	}
	if sale.SellingPrice, err = decimal.NewFromString(sellingPrice); err != nil {
		return nil, err
	}
	if sale.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
		return nil, err
	}
	if sale.TotalRevenue, err = decimal.NewFromString(totalRevenue); err != nil {
		return nil, err
	}
	if sale.Profit, err = decimal.NewFromString(profit); err != nil {
		return nil, err
	}
	if sale.Timestamp, err = parseTime(timestamp); err != nil {
		return nil, err
	}
	return &sale, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ engine.Store = (*Store)(nil)
