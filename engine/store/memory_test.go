package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/engine"
	"github.com/warp/inventory-engine/engine/store"
)

func TestMemory_Item_ActiveSKUUnique(t *testing.T) {
	// GIVEN: An active item holding a SKU
	// WHEN: A second insert (or an update) tries to claim the same SKU
	// THEN: The store itself rejects it, so two concurrent creates that both
	//       pass the lookup cannot both land; a soft-deleted item releases
	//       its SKU for reuse

	mem := store.NewMemory()
	ctx := context.Background()

	first, err := mem.InsertItem(ctx, engine.Item{Name: "Widget", SKU: "W-1"})
	require.NoError(t, err)

	_, err = mem.InsertItem(ctx, engine.Item{Name: "Impostor", SKU: "W-1"})
	assert.ErrorIs(t, err, engine.ErrDuplicateID)

	other, err := mem.InsertItem(ctx, engine.Item{Name: "Other", SKU: "W-2"})
	require.NoError(t, err)
	taken := "W-1"
	_, err = mem.UpdateItem(ctx, other.ID, other.Version, engine.ItemPatch{SKU: &taken})
	assert.ErrorIs(t, err, engine.ErrDuplicateID)

	deleted := true
	_, err = mem.UpdateItem(ctx, first.ID, first.Version, engine.ItemPatch{Deleted: &deleted})
	require.NoError(t, err)

	_, err = mem.InsertItem(ctx, engine.Item{Name: "Replacement", SKU: "W-1"})
	assert.NoError(t, err, "a soft-deleted item's sku is free again")
}
