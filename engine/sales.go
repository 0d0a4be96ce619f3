/*
sales.go - Sale validation, financial computation, atomic triple write

PURPOSE:
  Validates a sale request against the stock ledger, computes the derived
  financial figures, and on success performs the atomic triple write:
  decrement stock, append the Sale record, append the "remove" Transaction.

VALIDATION ORDER (short-circuits on first failure):
  1. quantity > 0
  2. sellingPrice >= 0
  3. department non-empty
  4. costPrice >= 0
  5. item exists and is not soft-deleted

FINANCIALS:
  totalCost, totalRevenue, profit, profitMargin - each rounded to 2 places
  half-up before the next figure uses it. costPrice is caller-supplied and
  defaults to zero; the engine never infers cost from inventory state, so a
  zero-cost sale's profit figure is nominal, not true cost-basis profit.

ATOMICITY:
  The Sale is persisted as the ledger decrement's companion record: if
  either the Sale or the Transaction fails to land, the decrement is
  compensated before the error surfaces. A rejected sale has no side
  effects beyond its audit entry.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SALE PROCESSOR
// =============================================================================

// SaleProcessor handles point-of-sale requests.
type SaleProcessor struct {
	store  Store
	ledger *StockLedger
	audit  *AuditLogger
}

// NewSaleProcessor creates a sale processor.
func NewSaleProcessor(store Store, ledger *StockLedger, audit *AuditLogger) *SaleProcessor {
	return &SaleProcessor{store: store, ledger: ledger, audit: audit}
}

// SaleRequest is the input for ProcessSale.
type SaleRequest struct {
	InventoryID  ItemID
	Quantity     int64
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	Department   string
	User         string
}

// ProcessSale validates, computes, and executes a sale. On success the
// returned Sale has been persisted together with its stock decrement and
// "remove" Transaction; on any failure nothing has changed.
func (p *SaleProcessor) ProcessSale(ctx context.Context, req SaleRequest) (*Sale, error) {
	if err := p.validate(req); err != nil {
		p.audit.Record(ctx, LevelWarn, "processSale", "Sale rejected", err.Error())
		return nil, err
	}

	item, err := p.store.GetItem(ctx, req.InventoryID)
	if err != nil || item.Deleted {
		nf := &NotFoundError{Collection: "inventory", ID: string(req.InventoryID)}
		if err != nil && !IsNotFound(err) {
			p.audit.Record(ctx, LevelError, "processSale", "Item lookup failed", err.Error())
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		p.audit.Record(ctx, LevelWarn, "processSale", "Sale rejected", nf.Error())
		return nil, nf
	}

	figures := CalculateProfit(req.Quantity, req.CostPrice, req.SellingPrice)

	sale := Sale{
		ID:           SaleID(uuid.NewString()),
		InventoryID:  item.ID,
		ItemName:     item.Name,
		ItemSKU:      item.SKU,
		Quantity:     req.Quantity,
		CostPrice:    Round2(req.CostPrice),
		SellingPrice: Round2(req.SellingPrice),
		TotalCost:    figures.TotalCost,
		TotalRevenue: figures.TotalRevenue,
		Profit:       figures.Profit,
		Department:   req.Department,
		Timestamp:    time.Now().UTC(),
		User:         req.User,
	}

	res, err := p.ledger.Decrement(ctx, item.ID, req.Quantity, Recording{
		Type:      TxRemove,
		Reference: "sale:" + string(sale.ID),
		User:      req.User,
		Companion: func(cctx context.Context, s Store) error {
			_, ierr := s.InsertSale(cctx, sale)
			return ierr
		},
	})
	if err != nil {
		p.recordFailure(ctx, err)
		return nil, err
	}

	detail := fmt.Sprintf("sku=%s quantity=%d revenue=%s profit=%s remaining=%d",
		sale.ItemSKU, sale.Quantity, sale.TotalRevenue.StringFixed(2),
		sale.Profit.StringFixed(2), res.Item.Quantity)
	if req.CostPrice.IsZero() {
		detail += " (nominal profit: no cost price supplied)"
	}
	p.audit.Record(ctx, LevelInfo, "processSale", "Sale completed", detail)

	return &sale, nil
}

// validate applies the ordered short-circuit checks.
func (p *SaleProcessor) validate(req SaleRequest) error {
	if req.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}
	if req.SellingPrice.IsNegative() {
		return &ValidationError{Field: "sellingPrice", Message: "selling price cannot be negative"}
	}
	if strings.TrimSpace(req.Department) == "" {
		return &ValidationError{Field: "department", Message: "department is required"}
	}
	if req.CostPrice.IsNegative() {
		return &ValidationError{Field: "costPrice", Message: "cost price cannot be negative"}
	}
	return nil
}

func (p *SaleProcessor) recordFailure(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		p.audit.Record(ctx, LevelWarn, "processSale", "Sale rejected", err.Error())
	case IsNotFound(err):
		p.audit.Record(ctx, LevelWarn, "processSale", "Sale rejected", err.Error())
	default:
		p.audit.Record(ctx, LevelError, "processSale", "Sale failed", err.Error())
	}
}
