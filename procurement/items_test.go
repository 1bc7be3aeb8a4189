package procurement_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/procurement-engine/procurement"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(code, desc string, qty int, unitPrice string) procurement.LineItem {
	p := price(unitPrice)
	return procurement.LineItem{
		Code:        code,
		Description: desc,
		Unit:        "unit",
		Quantity:    qty,
		UnitPrice:   p,
		Subtotal:    p.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func numbers(items []procurement.LineItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Number
	}
	return out
}

// =============================================================================
// ITEM LEDGER TESTS
// =============================================================================

func TestAddItem_AppendsBlankLineWithQuantityOne(t *testing.T) {
	// GIVEN: Two existing lines
	items := []procurement.LineItem{item("A", "Alpha", 2, "1.00"), item("B", "Beta", 1, "2.00")}
	items[0].Number, items[1].Number = 1, 2

	// WHEN: Adding a line
	out := procurement.AddItem(items)

	// THEN: A third blank line is numbered 3 and the input is untouched
	require.Len(t, out, 3)
	assert.Equal(t, 3, out[2].Number)
	assert.Equal(t, 1, out[2].Quantity)
	assert.True(t, out[2].UnitPrice.IsZero())
	assert.True(t, out[2].Subtotal.IsZero())
	assert.Len(t, items, 2)
}

func TestUpdateItem_RecomputesSubtotal(t *testing.T) {
	// GIVEN: A blank line
	items := procurement.AddItem(nil)
	qty, p := 3, price("12.50")

	// WHEN: Changing quantity and price
	out := procurement.UpdateItem(items, 0, procurement.ItemPatch{Quantity: &qty, UnitPrice: &p})

	// THEN: Subtotal follows quantity times price
	assert.True(t, price("37.50").Equal(out[0].Subtotal), "got %s", out[0].Subtotal)
	assert.Equal(t, 1, items[0].Quantity, "input must not be mutated")
}

func TestUpdateItem_OutOfRange_ReturnsCopy(t *testing.T) {
	items := []procurement.LineItem{item("A", "Alpha", 1, "1")}
	qty := 9

	out := procurement.UpdateItem(items, 5, procurement.ItemPatch{Quantity: &qty})

	assert.Equal(t, items, out)
}

func TestRemoveItem_RenumbersContiguously(t *testing.T) {
	// GIVEN: Three lines numbered 1..3
	items := procurement.AddItem(procurement.AddItem(procurement.AddItem(nil)))

	// WHEN: Removing the middle one
	out := procurement.RemoveItem(items, 1)

	// THEN: Numbers are 1..2 with no gaps
	assert.Equal(t, []int{1, 2}, numbers(out))
	assert.Len(t, items, 3)
}

func TestCalculateItemsTotal(t *testing.T) {
	assert.True(t, procurement.CalculateItemsTotal(nil).IsZero())

	items := []procurement.LineItem{item("A", "Alpha", 2, "10.10"), item("B", "Beta", 3, "0.30")}
	assert.True(t, price("21.10").Equal(procurement.CalculateItemsTotal(items)))
}

func TestGroupItemsByProductAndPrice_MergesSameCodeAndPrice(t *testing.T) {
	// GIVEN: Two keyboard lines at the same price, one at a different price,
	// and an ad-hoc line grouped by description
	items := []procurement.LineItem{
		item("KB-101", "Keyboard", 2, "45.90"),
		item("", "Mop", 1, "12.50"),
		item("KB-101", "Keyboard (spare)", 3, "45.90"),
		item("KB-101", "Keyboard", 1, "40.00"),
		item("", "Mop", 2, "12.50"),
	}

	// WHEN: Grouping
	grouped := procurement.GroupItemsByProductAndPrice(items)

	// THEN: Three groups in first-seen order, quantities summed, total kept
	require.Len(t, grouped, 3)
	assert.Equal(t, "Keyboard", grouped[0].Description)
	assert.Equal(t, 5, grouped[0].Quantity)
	assert.Equal(t, 3, grouped[1].Quantity)
	assert.Equal(t, 1, grouped[2].Quantity)
	assert.Equal(t, []int{1, 2, 3}, numbers(grouped))
	assert.True(t, procurement.CalculateItemsTotal(items).Equal(procurement.CalculateItemsTotal(grouped)))
}

func TestGroupItemsByProductAndPrice_NormalizesUnicodeDescriptions(t *testing.T) {
	// GIVEN: The same description in composed and decomposed form
	composed := item("", "Caf\u00e9", 1, "1.00")
	decomposed := item("", "Cafe\u0301", 2, "1.00")

	grouped := procurement.GroupItemsByProductAndPrice([]procurement.LineItem{composed, decomposed})

	require.Len(t, grouped, 1)
	assert.Equal(t, 3, grouped[0].Quantity)
}

func TestValidateItems(t *testing.T) {
	ok, problems := procurement.ValidateItems(nil)
	assert.False(t, ok)
	assert.Equal(t, []string{"at least one item is required"}, problems)

	ok, problems = procurement.ValidateItems([]procurement.LineItem{
		item("A", " ", 1, "1"),
		item("B", "Beta", 0, "1"),
	})
	assert.False(t, ok)
	assert.Equal(t, []string{
		"item 1: description is required",
		"item 2: quantity must be greater than zero",
	}, problems)

	ok, problems = procurement.ValidateItems([]procurement.LineItem{item("A", "Alpha", 1, "1")})
	assert.True(t, ok)
	assert.Empty(t, problems)
}

func TestAddThenRemoveItem_RestoresOriginal(t *testing.T) {
	// GIVEN: A numbered list
	items := procurement.RemoveItem([]procurement.LineItem{
		item("A", "Alpha", 2, "1.00"),
		item("B", "Beta", 1, "2.00"),
	}, -1)

	// WHEN: Adding a line and removing it again
	out := procurement.RemoveItem(procurement.AddItem(items), len(items))

	// THEN: The list is unchanged
	assert.Equal(t, items, out)
}
