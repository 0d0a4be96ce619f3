/*
handlers.go - HTTP API handlers for the inventory consistency engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates every decision to the engine; no business
  rule lives here.

ENDPOINTS:
  Inventory:
    GET    /api/inventory          List items (?id= for one, ?category=,
                                   ?search=, ?lowStock=true, ?includeDeleted=true)
    POST   /api/inventory          Create item
    POST   /api/inventory/update   Edit item (quantity edits become adjustments)
    POST   /api/inventory/delete   Soft-delete item

  Restock:
    GET    /api/restock            List orders (?id=, ?status=, ?inventoryId=)
    POST   /api/restock            Create order
    POST   /api/restock/update     Edit order and/or drive the state machine

  Sales:
    POST   /api/pos/sale           Process a point-of-sale transaction
    GET    /api/sales              List sales (?inventoryId=, ?startDate=, ?endDate=)
    GET    /api/cashflow           Cash-flow summary (?startDate=, ?endDate=)

  History:
    GET    /api/transactions       List quantity changes (?inventoryId=, ?type=)
    GET    /api/logs               Audit trail, newest first (?level=, ?limit=)

ERROR HANDLING:
  Engine errors map to HTTP status by kind:
  - 400: Validation errors, malformed input
  - 404: Referenced entity missing or soft-deleted
  - 409: Insufficient stock, invalid transition, lost concurrent update
  - 503: Storage unavailable (any applied change was compensated)
  - 500: Everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/errors.go: The error taxonomy this maps from
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// defaultLogLimit bounds unfiltered audit-trail reads.
const defaultLogLimit = 100

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *engine.Engine
	validate *validator.Validate
}

// NewHandler creates a new handler over the given engine.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{
		Engine:   eng,
		validate: validator.New(),
	}
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// GetInventory returns one item (?id=) or a filtered list.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		item, err := h.Engine.Query.Item(r.Context(), engine.ItemID(id))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeData(w, http.StatusOK, toItemDTO(*item))
		return
	}

	items, err := h.Engine.Query.Items(r.Context(), engine.ItemFilter{
		Category:       q.Get("category"),
		Search:         q.Get("search"),
		LowStock:       q.Get("lowStock") == "true",
		IncludeDeleted: q.Get("includeDeleted") == "true",
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeList(w, toItemDTOs(items), len(items))
}

// CreateInventory creates a new item.
func (h *Handler) CreateInventory(w http.ResponseWriter, r *http.Request) {
	var req CreateInventoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.Engine.Catalog.CreateItem(r.Context(), engine.CreateItemRequest{
		Name:         req.Name,
		SKU:          req.SKU,
		Quantity:     req.Quantity,
		ReorderPoint: req.ReorderPoint,
		Category:     req.Category,
		Unit:         req.Unit,
		User:         req.User,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeCreated(w, toItemDTO(*item), "Inventory item created")
}

// UpdateInventory applies a generic edit to an item.
func (h *Handler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	var req UpdateInventoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.Engine.Catalog.UpdateItem(r.Context(), engine.ItemID(req.ID), engine.ItemUpdate{
		Name:         req.Name,
		SKU:          req.SKU,
		Quantity:     req.Quantity,
		ReorderPoint: req.ReorderPoint,
		Category:     req.Category,
		Unit:         req.Unit,
		Reason:       req.Reason,
		User:         req.User,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, toItemDTO(*item), "Inventory item updated")
}

// DeleteInventory soft-deletes an item.
func (h *Handler) DeleteInventory(w http.ResponseWriter, r *http.Request) {
	var req DeleteInventoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.Engine.Catalog.DeleteItem(r.Context(), engine.ItemID(req.ID), req.User)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, toItemDTO(*item), "Inventory item deleted")
}

// =============================================================================
// RESTOCK HANDLERS
// =============================================================================

// GetRestock returns one order (?id=) or a filtered list.
func (h *Handler) GetRestock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		order, err := h.Engine.Query.Order(r.Context(), engine.OrderID(id))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeData(w, http.StatusOK, toOrderDTO(*order))
		return
	}

	orders, err := h.Engine.Query.Orders(r.Context(), engine.OrderFilter{
		Status:      engine.OrderStatus(q.Get("status")),
		InventoryID: engine.ItemID(q.Get("inventoryId")),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeList(w, toOrderDTOs(orders), len(orders))
}

// CreateRestock opens a new pending order.
func (h *Handler) CreateRestock(w http.ResponseWriter, r *http.Request) {
	var req CreateRestockRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.Engine.Restock.Create(r.Context(), engine.CreateOrderRequest{
		InventoryID: engine.ItemID(req.InventoryID),
		Quantity:    req.Quantity,
		CostPrice:   decimal.NewFromFloat(req.CostPrice),
		Notes:       req.Notes,
		User:        req.User,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeCreated(w, toOrderDTO(*order), "Restock order created")
}

// UpdateRestock edits an order and/or moves it through the state machine.
// Field edits apply first, then the status transition, so "correct the
// quantity and receive" works as one call.
func (h *Handler) UpdateRestock(w http.ResponseWriter, r *http.Request) {
	var req UpdateRestockRequest
	if !h.decode(w, r, &req) {
		return
	}

	var target engine.OrderStatus
	if req.Status != nil {
		target = engine.OrderStatus(*req.Status)
		switch target {
		case engine.OrderPending, engine.OrderOrdered, engine.OrderReceived, engine.OrderCancelled:
		default:
			writeBadRequest(w, "Validation failed",
				[]string{fmt.Sprintf("unknown status: %s", *req.Status)})
			return
		}
	}

	id := engine.OrderID(req.ID)
	var order *engine.RestockOrder
	var err error

	if req.Quantity != nil || req.CostPrice != nil || req.Notes != nil {
		var cost *decimal.Decimal
		if req.CostPrice != nil {
			c := decimal.NewFromFloat(*req.CostPrice)
			cost = &c
		}
		order, err = h.Engine.Restock.Update(r.Context(), id, req.Quantity, cost, req.Notes)
		if err != nil {
			writeEngineError(w, err)
			return
		}
	}

	if req.Status != nil {
		order, err = h.Engine.Restock.Transition(r.Context(), id, target, req.User)
		if err != nil {
			writeEngineError(w, err)
			return
		}
	}

	if order == nil {
		writeBadRequest(w, "Validation failed", []string{"no fields to update"})
		return
	}
	writeMessage(w, http.StatusOK, toOrderDTO(*order), "Restock order updated")
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// ProcessSale validates and executes a point-of-sale transaction.
func (h *Handler) ProcessSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if !h.decode(w, r, &req) {
		return
	}

	sale, err := h.Engine.Sales.ProcessSale(r.Context(), engine.SaleRequest{
		InventoryID:  engine.ItemID(req.InventoryID),
		Quantity:     req.Quantity,
		CostPrice:    decimal.NewFromFloat(req.CostPrice),
		SellingPrice: decimal.NewFromFloat(req.SellingPrice),
		Department:   req.Department,
		User:         req.User,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeCreated(w, toSaleDTO(*sale), "Sale processed")
}

// GetSales lists sale records, optionally per item and time-bounded.
func (h *Handler) GetSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseTimeParam(dateParam(q, "startDate", "start"), false)
	if err != nil {
		writeBadRequest(w, "Validation failed", []string{err.Error()})
		return
	}
	end, err := parseTimeParam(dateParam(q, "endDate", "end"), true)
	if err != nil {
		writeBadRequest(w, "Validation failed", []string{err.Error()})
		return
	}

	sales, err := h.Engine.Query.Sales(r.Context(), engine.SaleFilter{
		InventoryID: engine.ItemID(q.Get("inventoryId")),
		Start:       start,
		End:         end,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeList(w, toSaleDTOs(sales), len(sales))
}

// GetCashFlow returns the revenue/cost/profit summary for a time range.
func (h *Handler) GetCashFlow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseTimeParam(dateParam(q, "startDate", "start"), false)
	if err != nil {
		writeBadRequest(w, "Validation failed", []string{err.Error()})
		return
	}
	end, err := parseTimeParam(dateParam(q, "endDate", "end"), true)
	if err != nil {
		writeBadRequest(w, "Validation failed", []string{err.Error()})
		return
	}

	summary, err := h.Engine.Query.CashFlow(r.Context(), start, end)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dto := CashFlowDTO{
		TotalRevenue: money(summary.TotalRevenue),
		TotalCost:    money(summary.TotalCost),
		TotalProfit:  money(summary.TotalProfit),
		SalesCount:   summary.SalesCount,
	}
	// Echo the requested bounds so clients can label the summary.
	if s := dateParam(q, "startDate", "start"); s != "" {
		dto.DateRange.Start = &s
	}
	if e := dateParam(q, "endDate", "end"); e != "" {
		dto.DateRange.End = &e
	}
	writeData(w, http.StatusOK, dto)
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// GetTransactions lists quantity-change records.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	txs, err := h.Engine.Query.Transactions(r.Context(), engine.TransactionFilter{
		InventoryID: engine.ItemID(q.Get("inventoryId")),
		Type:        engine.TransactionType(q.Get("type")),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeList(w, toTransactionDTOs(txs), len(txs))
}

// GetLogs lists audit log entries, newest first.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultLogLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "Validation failed", []string{"limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := h.Engine.Query.Logs(r.Context(), engine.LogFilter{
		Level: engine.LogLevel(strings.ToUpper(q.Get("level"))),
		Limit: limit,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeList(w, toLogDTOs(entries), len(entries))
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// decode parses the JSON body into dst and runs struct validation. On
// failure it writes the error response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "Invalid JSON body", []string{err.Error()})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeBadRequest(w, "Validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s failed on the %s rule", fe.Field(), fe.Tag()))
	}
	return details
}

// dateParam reads a date bound under its contract name (startDate/endDate,
// what the existing POS clients send), accepting the short form as an alias.
func dateParam(q url.Values, name, alias string) string {
	if v := q.Get(name); v != "" {
		return v
	}
	return q.Get(alias)
}

// parseTimeParam accepts RFC3339 timestamps or bare dates. A bare date used
// as an end bound covers the whole day.
func parseTimeParam(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: use RFC3339 or YYYY-MM-DD", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// =============================================================================
// RESPONSE PLUMBING
// =============================================================================

func writeEnvelope(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, envelope{StatusCode: status, Data: data})
}

func writeList(w http.ResponseWriter, data any, count int) {
	writeEnvelope(w, envelope{StatusCode: http.StatusOK, Data: data, Count: &count})
}

func writeCreated(w http.ResponseWriter, data any, message string) {
	writeEnvelope(w, envelope{StatusCode: http.StatusCreated, Data: data, Message: message})
}

func writeMessage(w http.ResponseWriter, status int, data any, message string) {
	writeEnvelope(w, envelope{StatusCode: status, Data: data, Message: message})
}

func writeBadRequest(w http.ResponseWriter, msg string, details []string) {
	writeEnvelope(w, envelope{StatusCode: http.StatusBadRequest, Error: msg, Details: details})
}

// writeEngineError maps an engine error onto the wire.
func writeEngineError(w http.ResponseWriter, err error) {
	writeEnvelope(w, envelope{StatusCode: statusFor(err), Error: err.Error()})
}

// statusFor classifies an engine error. Validation outranks the broader
// client-error check so bad input reads as 400, not 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case engine.IsClientError(err):
		return http.StatusConflict
	case errors.Is(err, engine.ErrConflict), errors.Is(err, engine.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, engine.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
