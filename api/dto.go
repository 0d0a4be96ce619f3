/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes the API accepts and returns, and the conversions
  between them and the engine's domain types. Money crosses the wire as JSON
  numbers; internally everything stays decimal.Decimal and is only converted
  at this boundary.

RESPONSE ENVELOPE:
  Every response is wrapped in the same envelope:

    {"statusCode": 200, "data": ..., "count": 3}
    {"statusCode": 400, "error": "Validation failed", "details": [...]}

  List responses carry count; single-entity responses don't. Errors carry
  error plus optional details; mutations may carry a message.

SEE ALSO:
  - handlers.go: Handlers that produce these shapes
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/engine"
)

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

// envelope is the uniform wire shape for every response.
type envelope struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data,omitempty"`
	Count      *int     `json:"count,omitempty"`
	Error      string   `json:"error,omitempty"`
	Details    []string `json:"details,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// =============================================================================
// REQUEST DTOs
// =============================================================================

// CreateInventoryRequest creates a new inventory item.
type CreateInventoryRequest struct {
	Name         string `json:"name" validate:"required"`
	SKU          string `json:"sku" validate:"required"`
	Quantity     int64  `json:"quantity" validate:"gte=0"`
	ReorderPoint int64  `json:"reorderPoint" validate:"gte=0"`
	Category     string `json:"category"`
	Unit         string `json:"unit"`
	User         string `json:"user"`
}

// UpdateInventoryRequest edits an existing item. Omitted fields are left
// unchanged; a quantity change is recorded as an adjustment with Reason.
type UpdateInventoryRequest struct {
	ID           string  `json:"id" validate:"required"`
	Name         *string `json:"name"`
	SKU          *string `json:"sku"`
	Quantity     *int64  `json:"quantity"`
	ReorderPoint *int64  `json:"reorderPoint"`
	Category     *string `json:"category"`
	Unit         *string `json:"unit"`
	Reason       string  `json:"reason"`
	User         string  `json:"user"`
}

// DeleteInventoryRequest soft-deletes an item.
type DeleteInventoryRequest struct {
	ID   string `json:"id" validate:"required"`
	User string `json:"user"`
}

// CreateRestockRequest opens a restock order in the pending state.
// Quantity and cost bounds are checked by the engine so its messages
// surface verbatim.
type CreateRestockRequest struct {
	InventoryID string  `json:"inventoryId" validate:"required"`
	Quantity    int64   `json:"quantity"`
	CostPrice   float64 `json:"costPrice"`
	Notes       string  `json:"notes"`
	User        string  `json:"user"`
}

// UpdateRestockRequest edits an order and/or moves it through the state
// machine. Field edits apply first; a status change is dispatched last.
type UpdateRestockRequest struct {
	ID        string   `json:"id" validate:"required"`
	Status    *string  `json:"status"`
	Quantity  *int64   `json:"quantity"`
	CostPrice *float64 `json:"costPrice"`
	Notes     *string  `json:"notes"`
	User      string   `json:"user"`
}

// CreateSaleRequest records a point-of-sale transaction. No validator tags:
// the engine owns the ordered validation sequence and its exact messages.
type CreateSaleRequest struct {
	InventoryID  string  `json:"inventoryId"`
	Quantity     int64   `json:"quantity"`
	CostPrice    float64 `json:"costPrice"`
	SellingPrice float64 `json:"sellingPrice"`
	Department   string  `json:"department"`
	User         string  `json:"user"`
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

// ItemDTO is the wire shape of an inventory item.
type ItemDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Quantity     int64  `json:"quantity"`
	ReorderPoint int64  `json:"reorderPoint"`
	Category     string `json:"category"`
	Unit         string `json:"unit"`
	Deleted      bool   `json:"deleted"`
	LastModified string `json:"lastModified"`
}

// OrderDTO is the wire shape of a restock order.
type OrderDTO struct {
	ID           string  `json:"id"`
	InventoryID  string  `json:"inventoryId"`
	Quantity     int64   `json:"quantity"`
	CostPrice    float64 `json:"costPrice"`
	TotalCost    float64 `json:"totalCost"`
	Status       string  `json:"status"`
	OrderedDate  string  `json:"orderedDate"`
	ReceivedDate *string `json:"receivedDate,omitempty"`
	Notes        string  `json:"notes"`
	LastModified string  `json:"lastModified"`
}

// TransactionDTO is the wire shape of a quantity-change record.
type TransactionDTO struct {
	ID          string `json:"id"`
	InventoryID string `json:"inventoryId"`
	Type        string `json:"type"`
	Quantity    int64  `json:"quantity"`
	Reference   string `json:"reference"`
	Timestamp   string `json:"timestamp"`
	User        string `json:"user"`
}

// SaleDTO is the wire shape of a sale record.
type SaleDTO struct {
	ID           string  `json:"id"`
	InventoryID  string  `json:"inventoryId"`
	ItemName     string  `json:"itemName"`
	ItemSKU      string  `json:"itemSku"`
	Quantity     int64   `json:"quantity"`
	CostPrice    float64 `json:"costPrice"`
	SellingPrice float64 `json:"sellingPrice"`
	TotalCost    float64 `json:"totalCost"`
	TotalRevenue float64 `json:"totalRevenue"`
	Profit       float64 `json:"profit"`
	Department   string  `json:"department"`
	Timestamp    string  `json:"timestamp"`
	User         string  `json:"user"`
}

// LogDTO is the wire shape of an audit log entry.
type LogDTO struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

// CashFlowDTO is the wire shape of the cash-flow summary.
type CashFlowDTO struct {
	TotalRevenue float64      `json:"totalRevenue"`
	TotalCost    float64      `json:"totalCost"`
	TotalProfit  float64      `json:"totalProfit"`
	SalesCount   int          `json:"salesCount"`
	DateRange    DateRangeDTO `json:"dateRange"`
}

// DateRangeDTO echoes the requested bounds back to the caller.
type DateRangeDTO struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toItemDTO(item engine.Item) ItemDTO {
	return ItemDTO{
		ID:           string(item.ID),
		Name:         item.Name,
		SKU:          item.SKU,
		Quantity:     item.Quantity,
		ReorderPoint: item.ReorderPoint,
		Category:     item.Category,
		Unit:         item.Unit,
		Deleted:      item.Deleted,
		LastModified: item.LastModified.Format(time.RFC3339),
	}
}

func toItemDTOs(items []engine.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	return dtos
}

func toOrderDTO(order engine.RestockOrder) OrderDTO {
	dto := OrderDTO{
		ID:           string(order.ID),
		InventoryID:  string(order.InventoryID),
		Quantity:     order.Quantity,
		CostPrice:    money(order.CostPrice),
		TotalCost:    money(order.TotalCost),
		Status:       string(order.Status),
		OrderedDate:  order.OrderedDate.Format(time.RFC3339),
		Notes:        order.Notes,
		LastModified: order.LastModified.Format(time.RFC3339),
	}
	if order.ReceivedDate != nil {
		received := order.ReceivedDate.Format(time.RFC3339)
		dto.ReceivedDate = &received
	}
	return dto
}

func toOrderDTOs(orders []engine.RestockOrder) []OrderDTO {
	dtos := make([]OrderDTO, len(orders))
	for i, order := range orders {
		dtos[i] = toOrderDTO(order)
	}
	return dtos
}

func toTransactionDTO(tx engine.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		InventoryID: string(tx.InventoryID),
		Type:        string(tx.Type),
		Quantity:    tx.Quantity,
		Reference:   tx.Reference,
		Timestamp:   tx.Timestamp.Format(time.RFC3339),
		User:        tx.User,
	}
}

func toTransactionDTOs(txs []engine.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toSaleDTO(sale engine.Sale) SaleDTO {
	return SaleDTO{
		ID:           string(sale.ID),
		InventoryID:  string(sale.InventoryID),
		ItemName:     sale.ItemName,
		ItemSKU:      sale.ItemSKU,
		Quantity:     sale.Quantity,
		CostPrice:    money(sale.CostPrice),
		SellingPrice: money(sale.SellingPrice),
		TotalCost:    money(sale.TotalCost),
		TotalRevenue: money(sale.TotalRevenue),
		Profit:       money(sale.Profit),
		Department:   sale.Department,
		Timestamp:    sale.Timestamp.Format(time.RFC3339),
		User:         sale.User,
	}
}

func toSaleDTOs(sales []engine.Sale) []SaleDTO {
	dtos := make([]SaleDTO, len(sales))
	for i, sale := range sales {
		dtos[i] = toSaleDTO(sale)
	}
	return dtos
}

func toLogDTO(entry engine.LogEntry) LogDTO {
	return LogDTO{
		Timestamp: entry.Timestamp.Format(time.RFC3339),
		Level:     string(entry.Level),
		Operation: entry.Operation,
		Message:   entry.Message,
		Details:   entry.Details,
	}
}

func toLogDTOs(entries []engine.LogEntry) []LogDTO {
	dtos := make([]LogDTO, len(entries))
	for i, entry := range entries {
		dtos[i] = toLogDTO(entry)
	}
	return dtos
}
