/*
stock.go - The stock ledger: single writer of Item.Quantity

PURPOSE:
  Owns the authoritative quantity-on-hand per item. Nothing else in the
  repository writes an item's quantity field. Every mutation produces
  exactly one Transaction, persisted in the same atomic unit.

CONCURRENCY DISCIPLINE:
  Mutations to a given item are serialized by a per-item mutex; operations
  on different items proceed independently with no global lock. Underneath
  the lock, writes are still conditional on the store's version token and
  retried a bounded number of times, which covers external writers sharing
  the same database file.

ATOMIC UNIT:
  apply() is the compensating-action pattern:
    1. conditional quantity write
    2. insert the Transaction (plus any companion record, e.g. a Sale)
    3. on failure of step 2, reverse step 1 before returning
  The quantity change is therefore never observable without its paired
  Transaction. Once started, the unit runs to completion even if the caller
  cancels; only pre-start cancellation is honored.

IDEMPOTENCY:
  A Recording may carry an explicit transaction id. If that id has already
  been applied, the mutation is a no-op and the result is flagged Replayed -
  replaying an applied record never changes quantity a second time.

SEE ALSO:
  - sales.go: decrement + Sale + Transaction as one unit
  - restock.go: increment on receive
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// conflictRetries bounds the reload-and-retry loop on version conflicts.
	conflictRetries = 3
	// conflictBackoff is the base delay between conflict retries.
	conflictBackoff = 25 * time.Millisecond
	// persistTimeout bounds every persistence call inside the atomic unit.
	persistTimeout = 5 * time.Second
)

// =============================================================================
// STOCK LEDGER
// =============================================================================

// StockLedger serializes all quantity mutations per item.
type StockLedger struct {
	store Store

	mu    sync.Mutex
	locks map[ItemID]*sync.Mutex
}

// NewStockLedger creates a stock ledger over the given store.
func NewStockLedger(store Store) *StockLedger {
	return &StockLedger{
		store: store,
		locks: make(map[ItemID]*sync.Mutex),
	}
}

// Recording describes the audit side of a mutation: the Transaction to
// append and any companion record that must land in the same atomic unit.
type Recording struct {
	Type      TransactionType
	Reference string
	User      string

	// TxID, when set, makes the mutation idempotent: an id that already
	// exists is treated as already applied.
	TxID TransactionID

	// Companion, when set, is persisted inside the atomic unit, after the
	// quantity write and before the unit is considered complete. Used by the
	// sale flow to land the Sale record with its decrement.
	Companion func(ctx context.Context, s Store) error
}

// MutationResult reports the outcome of a ledger mutation.
type MutationResult struct {
	Item        *Item
	Transaction *Transaction
	// Replayed is true when the recording's TxID was already applied and
	// nothing changed.
	Replayed bool
}

// Decrement atomically checks currentQuantity >= amount and subtracts.
// Fails with InsufficientStockError when the check fails, ErrNotFound when
// the item is missing or soft-deleted. Two concurrent decrements that would
// together exceed available stock: exactly one succeeds in full, the other
// observes the post-decrement quantity.
func (l *StockLedger) Decrement(ctx context.Context, id ItemID, amount int64, rec Recording) (*MutationResult, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}
	return l.apply(ctx, id, -amount, rec, false)
}

// Increment atomically adds to an item's quantity. No upper bound check.
func (l *StockLedger) Increment(ctx context.Context, id ItemID, amount int64, rec Recording) (*MutationResult, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}
	return l.apply(ctx, id, amount, rec, false)
}

// SetQuantity adjusts an item's quantity to an absolute value. Used by the
// catalog's generic edit path; records the signed delta as an adjustment.
func (l *StockLedger) SetQuantity(ctx context.Context, id ItemID, quantity int64, rec Recording) (*MutationResult, error) {
	if quantity < 0 {
		return nil, &ValidationError{Field: "quantity", Message: "quantity cannot be negative"}
	}
	return l.apply(ctx, id, quantity, rec, true)
}

// lockFor returns the mutex serializing mutations for one item.
func (l *StockLedger) lockFor(id ItemID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// apply runs one atomic mutation unit. delta is a signed change, or an
// absolute target when absolute is true.
func (l *StockLedger) apply(ctx context.Context, id ItemID, delta int64, rec Recording, absolute bool) (*MutationResult, error) {
	// Pre-start cancellation is the only cancellation honored.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := l.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	// The unit must run to completion once started.
	ctx = context.WithoutCancel(ctx)

	// Replay guard: an already-applied transaction id is a no-op.
	if rec.TxID != "" {
		exists, err := l.exists(ctx, rec.TxID)
		if err != nil {
			return nil, err
		}
		if exists {
			item, err := l.getItem(ctx, id)
			if err != nil {
				return nil, err
			}
			return &MutationResult{Item: item, Replayed: true}, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(conflictBackoff * time.Duration(attempt))
		}

		item, err := l.getItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if item.Deleted {
			return nil, &NotFoundError{Collection: "inventory", ID: string(id)}
		}

		change := delta
		if absolute {
			change = delta - item.Quantity
		}
		newQuantity := item.Quantity + change
		if newQuantity < 0 {
			return nil, &InsufficientStockError{
				InventoryID: id,
				Available:   item.Quantity,
				Requested:   -change,
			}
		}

		updated, err := l.updateQuantity(ctx, id, item.Version, newQuantity)
		if errors.Is(err, ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		tx, err := l.record(ctx, updated, change, rec)
		if err != nil {
			// Compensate: reverse the quantity write before surfacing. If
			// the Transaction itself landed but its companion did not, a
			// reversing Transaction keeps the ledger sum paired with the
			// restored quantity.
			l.compensate(ctx, id, updated.Version, item.Quantity)
			if tx != nil {
				l.reverse(ctx, tx)
			}
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return &MutationResult{Item: updated, Transaction: tx}, nil
	}

	return nil, fmt.Errorf("%w: retries exhausted: %v", ErrConflict, lastErr)
}

// record appends the Transaction and any companion record for a completed
// quantity write. When the error is non-nil, the returned Transaction is
// non-nil only if it was persisted before the companion failed.
func (l *StockLedger) record(ctx context.Context, item *Item, change int64, rec Recording) (*Transaction, error) {
	txID := rec.TxID
	if txID == "" {
		txID = TransactionID(uuid.NewString())
	}

	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	tx, err := l.store.InsertTransaction(pctx, Transaction{
		ID:          txID,
		InventoryID: item.ID,
		Type:        rec.Type,
		Quantity:    change,
		Reference:   rec.Reference,
		Timestamp:   time.Now().UTC(),
		User:        rec.User,
	})
	if err != nil {
		return nil, err
	}

	if rec.Companion != nil {
		if err := rec.Companion(pctx, l.store); err != nil {
			return tx, err
		}
	}
	return tx, nil
}

// reverse appends a compensating Transaction for one whose companion record
// failed to persist. Best effort; the append-only collections never expose
// deletes, so corrections are themselves records.
func (l *StockLedger) reverse(ctx context.Context, tx *Transaction) {
	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	_, _ = l.store.InsertTransaction(pctx, Transaction{
		ID:          TransactionID(uuid.NewString()),
		InventoryID: tx.InventoryID,
		Type:        TxAdjust,
		Quantity:    -tx.Quantity,
		Reference:   "compensation:" + string(tx.ID),
		Timestamp:   time.Now().UTC(),
		User:        tx.User,
	})
}

// compensate reverses a quantity write whose audit records failed to
// persist. Best effort with the same bounded retry; the item lock is still
// held so nothing else can have moved the quantity.
func (l *StockLedger) compensate(ctx context.Context, id ItemID, version, previousQuantity int64) {
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		_, err := l.updateQuantity(ctx, id, version, previousQuantity)
		if err == nil || !errors.Is(err, ErrConflict) {
			return
		}
		item, gerr := l.getItem(ctx, id)
		if gerr != nil {
			return
		}
		version = item.Version
	}
}

func (l *StockLedger) getItem(ctx context.Context, id ItemID) (*Item, error) {
	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	return l.store.GetItem(pctx, id)
}

func (l *StockLedger) updateQuantity(ctx context.Context, id ItemID, version, quantity int64) (*Item, error) {
	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	return l.store.UpdateItem(pctx, id, version, ItemPatch{Quantity: &quantity})
}

func (l *StockLedger) exists(ctx context.Context, id TransactionID) (bool, error) {
	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	return l.store.TransactionExists(pctx, id)
}
