package procurement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RequestInput is what a requester fills in, either from the product
// catalogue cart (Product + Quantity) or from the manual form (Items).
type RequestInput struct {
	Product           *ProductRef
	Quantity          int
	Items             []LineItem
	Warehouse         WarehouseRef
	Reason            string
	Urgency           Urgency
	Observations      string
	EstimatedPrice    decimal.Decimal
	Supplier          string
	EstimatedDelivery string
}

// Validate checks the input and returns the normalized line items.
// Nothing is written when it fails.
func (in RequestInput) Validate() ([]LineItem, error) {
	var problems []string

	if strings.TrimSpace(string(in.Warehouse.ID)) == "" {
		problems = append(problems, "warehouse is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		problems = append(problems, "reason is required")
	}
	if in.Urgency != "" && !in.Urgency.Valid() {
		problems = append(problems, fmt.Sprintf("urgency %q is not one of low, medium, high, urgent", in.Urgency))
	}
	if in.EstimatedPrice.IsNegative() {
		problems = append(problems, "estimated price cannot be negative")
	}

	items := in.normalizedItems()
	if ok, itemProblems := ValidateItems(items); !ok {
		problems = append(problems, itemProblems...)
	}
	for i, it := range items {
		if it.UnitPrice.IsNegative() {
			problems = append(problems, fmt.Sprintf("item %d: unit price cannot be negative", i+1))
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return items, nil
}

// normalizedItems returns the items with fresh numbers and subtotals.
// A cart request without items becomes a single line for its product.
func (in RequestInput) normalizedItems() []LineItem {
	if len(in.Items) == 0 {
		if in.Product == nil || in.Quantity <= 0 {
			return nil
		}
		return []LineItem{{
			Number:      1,
			Code:        in.Product.Code,
			Description: in.Product.Name,
			Quantity:    in.Quantity,
			UnitPrice:   in.EstimatedPrice,
			Subtotal:    subtotal(in.Quantity, in.EstimatedPrice),
		}}
	}

	out := make([]LineItem, len(in.Items))
	for i, it := range in.Items {
		it.Subtotal = subtotal(it.Quantity, it.UnitPrice)
		out[i] = it
	}
	return renumber(out)
}

// applyTo copies the editable fields onto r. Quantity always follows the items.
func (in RequestInput) applyTo(r *PurchaseRequest, items []LineItem) {
	if in.Product != nil && !in.Product.IsZero() {
		p := *in.Product
		r.Product = &p
	} else {
		r.Product = nil
	}
	r.Items = items
	r.Quantity = SumQuantities(items)
	r.Warehouse = in.Warehouse
	r.Reason = strings.TrimSpace(in.Reason)
	r.Urgency = in.Urgency
	if r.Urgency == "" {
		r.Urgency = UrgencyMedium
	}
	r.Observations = in.Observations
	r.EstimatedPrice = in.EstimatedPrice
	r.Supplier = in.Supplier
	r.EstimatedDelivery = in.EstimatedDelivery
}

// inputOf rebuilds the input a stored request was made from, so a draft
// can be validated at submit time.
func inputOf(r *PurchaseRequest) RequestInput {
	return RequestInput{
		Product:           r.Product,
		Quantity:          r.Quantity,
		Items:             r.Items,
		Warehouse:         r.Warehouse,
		Reason:            r.Reason,
		Urgency:           r.Urgency,
		Observations:      r.Observations,
		EstimatedPrice:    r.EstimatedPrice,
		Supplier:          r.Supplier,
		EstimatedDelivery: r.EstimatedDelivery,
	}
}
