package procurement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/procurement-engine/procurement"
)

func TestRequestInput_Validate_CollectsEveryProblem(t *testing.T) {
	in := procurement.RequestInput{
		Urgency:        "whenever",
		EstimatedPrice: price("-1"),
	}

	_, err := in.Validate()

	var verr *procurement.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, procurement.ErrValidation)
	assert.Contains(t, verr.Problems, "warehouse is required")
	assert.Contains(t, verr.Problems, "reason is required")
	assert.Contains(t, verr.Problems, "at least one item is required")
	assert.Contains(t, verr.Problems, "estimated price cannot be negative")
	assert.Len(t, verr.Problems, 5)
}

func TestRequestInput_Validate_CartBecomesSingleLine(t *testing.T) {
	// GIVEN: A catalogue cart entry with no explicit items
	in := procurement.RequestInput{
		Product:        &procurement.ProductRef{ID: "p-kb", Code: "KB-101", Name: "Keyboard"},
		Quantity:       4,
		Warehouse:      procurement.WarehouseRef{ID: "wh-north"},
		Reason:         "Broken units",
		EstimatedPrice: price("45.90"),
	}

	items, err := in.Validate()

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "KB-101", items[0].Code)
	assert.Equal(t, "Keyboard", items[0].Description)
	assert.Equal(t, 1, items[0].Number)
	assert.True(t, price("183.60").Equal(items[0].Subtotal))
}

func TestRequestInput_Validate_NegativeItemPrice(t *testing.T) {
	in := procurement.RequestInput{
		Warehouse: procurement.WarehouseRef{ID: "wh-north"},
		Reason:    "Tools",
		Items:     []procurement.LineItem{item("", "Hammer", 1, "-3")},
	}

	_, err := in.Validate()

	var verr *procurement.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"item 1: unit price cannot be negative"}, verr.Problems)
}
