package procurement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// ITEM LEDGER - Pure functions over a request's line items
// =============================================================================
//
// None of these mutate their input. Every function returns a fresh slice
// with item numbers contiguous from 1.

// ItemPatch names the fields to change on one line item. Nil fields are
// left as they are.
type ItemPatch struct {
	Code        *string
	Description *string
	Unit        *string
	Quantity    *int
	UnitPrice   *decimal.Decimal
}

// AddItem appends a blank line with quantity 1 and zero price.
func AddItem(items []LineItem) []LineItem {
	out := make([]LineItem, len(items), len(items)+1)
	copy(out, items)
	return append(out, LineItem{
		Number:    len(items) + 1,
		Quantity:  1,
		UnitPrice: decimal.Zero,
		Subtotal:  decimal.Zero,
	})
}

// UpdateItem applies patch to the item at index and recomputes its
// subtotal. An out of range index returns an unchanged copy.
func UpdateItem(items []LineItem, index int, patch ItemPatch) []LineItem {
	out := append([]LineItem(nil), items...)
	if index < 0 || index >= len(out) {
		return out
	}

	it := out[index]
	if patch.Code != nil {
		it.Code = *patch.Code
	}
	if patch.Description != nil {
		it.Description = *patch.Description
	}
	if patch.Unit != nil {
		it.Unit = *patch.Unit
	}
	if patch.Quantity != nil {
		it.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		it.UnitPrice = *patch.UnitPrice
	}
	it.Subtotal = subtotal(it.Quantity, it.UnitPrice)
	out[index] = it
	return out
}

// RemoveItem drops the item at index and renumbers the rest.
func RemoveItem(items []LineItem, index int) []LineItem {
	if index < 0 || index >= len(items) {
		return renumber(append([]LineItem(nil), items...))
	}
	out := make([]LineItem, 0, len(items)-1)
	out = append(out, items[:index]...)
	out = append(out, items[index+1:]...)
	return renumber(out)
}

// CalculateItemsTotal sums the subtotals. Zero for an empty list.
func CalculateItemsTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// SumQuantities is the request quantity implied by its items.
func SumQuantities(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// GroupItemsByProductAndPrice merges lines sharing the same product key
// (code, or description when no code) and unit price. The first line seen
// keeps its other fields; groups come out in first-seen order.
func GroupItemsByProductAndPrice(items []LineItem) []LineItem {
	type groupKey struct {
		product string
		price   string
	}

	index := make(map[groupKey]int)
	var out []LineItem
	for _, it := range items {
		k := groupKey{product: itemKey(it), price: it.UnitPrice.String()}
		if i, ok := index[k]; ok {
			out[i].Quantity += it.Quantity
			out[i].Subtotal = subtotal(out[i].Quantity, out[i].UnitPrice)
			continue
		}
		index[k] = len(out)
		it.Subtotal = subtotal(it.Quantity, it.UnitPrice)
		out = append(out, it)
	}
	return renumber(out)
}

// ValidateItems checks the list is non-empty and every line has a
// description and a positive quantity.
func ValidateItems(items []LineItem) (bool, []string) {
	if len(items) == 0 {
		return false, []string{"at least one item is required"}
	}

	var problems []string
	for i, it := range items {
		if strings.TrimSpace(it.Description) == "" {
			problems = append(problems, fmt.Sprintf("item %d: description is required", i+1))
		}
		if it.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: quantity must be greater than zero", i+1))
		}
	}
	return len(problems) == 0, problems
}

func subtotal(qty int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

func renumber(items []LineItem) []LineItem {
	for i := range items {
		items[i].Number = i + 1
	}
	return items
}

func itemKey(it LineItem) string {
	if code := strings.TrimSpace(it.Code); code != "" {
		return "code:" + code
	}
	return "desc:" + norm.NFC.String(strings.TrimSpace(it.Description))
}
