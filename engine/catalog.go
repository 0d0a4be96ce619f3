/*
catalog.go - Item lifecycle: create, generic update, soft delete

PURPOSE:
  The generic edit path for everything on an Item except its quantity.
  Quantity changes requested through this path are routed to the stock
  ledger as adjustments so the one-Transaction-per-mutation rule holds.

SOFT DELETE:
  Deleted items are flagged, never removed. They disappear from active
  queries but their transaction history stays intact.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CATALOG
// =============================================================================

// Catalog manages item records.
type Catalog struct {
	store  Store
	ledger *StockLedger
	audit  *AuditLogger
}

// NewCatalog creates a catalog over the given store and ledger.
func NewCatalog(store Store, ledger *StockLedger, audit *AuditLogger) *Catalog {
	return &Catalog{store: store, ledger: ledger, audit: audit}
}

// CreateItemRequest is the input for CreateItem.
type CreateItemRequest struct {
	Name         string
	SKU          string
	Quantity     int64
	ReorderPoint int64
	Category     string
	Unit         string
	User         string
}

// ItemUpdate carries a generic item edit. Nil fields are left unchanged.
// A quantity change is applied through the stock ledger as an adjustment,
// with Reason recorded on the Transaction.
type ItemUpdate struct {
	Name         *string
	SKU          *string
	Quantity     *int64
	ReorderPoint *int64
	Category     *string
	Unit         *string
	Reason       string
	User         string
}

// CreateItem validates and inserts a new item. Initial stock above zero is
// recorded as an "add" Transaction through the ledger.
func (c *Catalog) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	if err := c.validateCreate(ctx, req); err != nil {
		c.audit.Record(ctx, LevelWarn, "inventory.create", "Item creation rejected", err.Error())
		return nil, err
	}

	item, err := c.store.InsertItem(ctx, Item{
		Name:         strings.TrimSpace(req.Name),
		SKU:          strings.TrimSpace(req.SKU),
		Quantity:     0,
		ReorderPoint: req.ReorderPoint,
		Category:     req.Category,
		Unit:         req.Unit,
	})
	if err != nil {
		// The store enforces active-SKU uniqueness, so a concurrent create
		// that slipped past the pre-check lands here.
		if errors.Is(err, ErrDuplicateID) {
			ve := &ValidationError{Field: "sku",
				Message: fmt.Sprintf("sku already exists: %s", strings.TrimSpace(req.SKU))}
			c.audit.Record(ctx, LevelWarn, "inventory.create", "Item creation rejected", ve.Error())
			return nil, ve
		}
		c.audit.Record(ctx, LevelError, "inventory.create", "Item creation failed", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if req.Quantity > 0 {
		res, err := c.ledger.Increment(ctx, item.ID, req.Quantity, Recording{
			Type:      TxAdd,
			Reference: "initial stock",
			User:      req.User,
		})
		if err != nil {
			// Item exists with zero stock; surface the failure.
			c.audit.Record(ctx, LevelError, "inventory.create", "Initial stock write failed", err.Error())
			return nil, err
		}
		item = res.Item
	}

	c.audit.Recordf(ctx, LevelInfo, "inventory.create", "Item created",
		"id=%s sku=%s quantity=%d", item.ID, item.SKU, item.Quantity)
	return item, nil
}

// UpdateItem applies a generic edit to an existing, non-deleted item.
func (c *Catalog) UpdateItem(ctx context.Context, id ItemID, upd ItemUpdate) (*Item, error) {
	item, err := c.activeItem(ctx, id)
	if err != nil {
		c.audit.Record(ctx, LevelWarn, "inventory.update", "Item update rejected", err.Error())
		return nil, err
	}

	if upd.SKU != nil {
		sku := strings.TrimSpace(*upd.SKU)
		if sku == "" {
			err := &ValidationError{Field: "sku", Message: "sku cannot be empty"}
			c.audit.Record(ctx, LevelWarn, "inventory.update", "Item update rejected", err.Error())
			return nil, err
		}
		if sku != item.SKU {
			if err := c.requireUniqueSKU(ctx, sku); err != nil {
				c.audit.Record(ctx, LevelWarn, "inventory.update", "Item update rejected", err.Error())
				return nil, err
			}
		}
		upd.SKU = &sku
	}
	if upd.ReorderPoint != nil && *upd.ReorderPoint < 0 {
		err := &ValidationError{Field: "reorderPoint", Message: "reorder point cannot be negative"}
		c.audit.Record(ctx, LevelWarn, "inventory.update", "Item update rejected", err.Error())
		return nil, err
	}

	// Quantity is owned by the stock ledger; route it there first so the
	// adjustment Transaction lands with the change.
	if upd.Quantity != nil && *upd.Quantity != item.Quantity {
		reason := upd.Reason
		if reason == "" {
			reason = "manual adjustment"
		}
		res, err := c.ledger.SetQuantity(ctx, id, *upd.Quantity, Recording{
			Type:      TxAdjust,
			Reference: reason,
			User:      upd.User,
		})
		if err != nil {
			c.audit.Record(ctx, LevelError, "inventory.update", "Quantity adjustment failed", err.Error())
			return nil, err
		}
		item = res.Item
	}

	patch := ItemPatch{
		Name:         upd.Name,
		SKU:          upd.SKU,
		ReorderPoint: upd.ReorderPoint,
		Category:     upd.Category,
		Unit:         upd.Unit,
	}
	if patch == (ItemPatch{}) {
		c.audit.Recordf(ctx, LevelInfo, "inventory.update", "Item updated", "id=%s", id)
		return item, nil
	}

	updated, err := c.patchWithRetry(ctx, id, patch)
	if err != nil {
		c.audit.Record(ctx, LevelError, "inventory.update", "Item update failed", err.Error())
		return nil, err
	}

	c.audit.Recordf(ctx, LevelInfo, "inventory.update", "Item updated", "id=%s", id)
	return updated, nil
}

// DeleteItem soft-deletes an item. The record and its history remain.
func (c *Catalog) DeleteItem(ctx context.Context, id ItemID, user string) (*Item, error) {
	if _, err := c.activeItem(ctx, id); err != nil {
		c.audit.Record(ctx, LevelWarn, "inventory.delete", "Item deletion rejected", err.Error())
		return nil, err
	}

	deleted := true
	updated, err := c.patchWithRetry(ctx, id, ItemPatch{Deleted: &deleted})
	if err != nil {
		c.audit.Record(ctx, LevelError, "inventory.delete", "Item deletion failed", err.Error())
		return nil, err
	}

	c.audit.Recordf(ctx, LevelInfo, "inventory.delete", "Item deleted", "id=%s user=%s", id, user)
	return updated, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Catalog) validateCreate(ctx context.Context, req CreateItemRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(req.SKU) == "" {
		return &ValidationError{Field: "sku", Message: "sku is required"}
	}
	if req.Quantity < 0 {
		return &ValidationError{Field: "quantity", Message: "quantity cannot be negative"}
	}
	if req.ReorderPoint < 0 {
		return &ValidationError{Field: "reorderPoint", Message: "reorder point cannot be negative"}
	}
	return c.requireUniqueSKU(ctx, strings.TrimSpace(req.SKU))
}

func (c *Catalog) requireUniqueSKU(ctx context.Context, sku string) error {
	existing, err := c.store.FindItemBySKU(ctx, sku)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if existing != nil {
		return &ValidationError{Field: "sku", Message: fmt.Sprintf("sku already exists: %s", sku)}
	}
	return nil
}

// activeItem loads an item and rejects soft-deleted ones.
func (c *Catalog) activeItem(ctx context.Context, id ItemID) (*Item, error) {
	item, err := c.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, &NotFoundError{Collection: "inventory", ID: string(id)}
	}
	return item, nil
}

// patchWithRetry applies a non-quantity patch, retrying version conflicts.
func (c *Catalog) patchWithRetry(ctx context.Context, id ItemID, patch ItemPatch) (*Item, error) {
	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(conflictBackoff * time.Duration(attempt))
		}
		item, err := c.store.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		updated, err := c.store.UpdateItem(ctx, id, item.Version, patch)
		if err == nil {
			return updated, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: retries exhausted: %v", ErrConflict, lastErr)
}
