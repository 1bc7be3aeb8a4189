/*
stock.go - Stock resolution for a purchase request

PURPOSE:
  Decides whether a request can be served from the primary warehouse or
  has to be bought outside. The result is a projection: it is recomputed
  every time and never stored.

RESOLUTION CHAIN:
  1. Match the request's product by id, then code, then name
  2. Primary stock = matched product's stock if it sits in the primary
     warehouse, otherwise 0
  3. Sub-warehouse stock = every non-primary entry for the same product
     code with stock > 0 (informational, never deducted)
  4. Sufficient = primary >= requested; missing = max(0, requested - primary)
  5. Percentage = min(100, primary / requested * 100)

FALLBACK:
  A request whose product is not in the ledger (ad-hoc item) does not
  fail. It is treated as if the primary warehouse held AssumedStock units,
  and the result is flagged with Fallback = true.

SEE ALSO:
  - lifecycle.go: VerifyStock, GenerateOutboundOrder, GenerateExternalPurchaseOrder
*/
package procurement

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Product is one warehouse entry of the product ledger. The same logical
// product appears once per warehouse that stocks it, sharing its Code.
type Product struct {
	ID            ProductID
	Code          string
	Name          string
	WarehouseID   WarehouseID
	WarehouseName string
	Stock         int
}

// ProductLedger is the read-only view of products the resolver needs.
type ProductLedger interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// MatchedBy tells which field resolved the product.
type MatchedBy string

const (
	MatchNone MatchedBy = ""
	MatchID   MatchedBy = "id"
	MatchCode MatchedBy = "code"
	MatchName MatchedBy = "name"
)

// ProductMatch is the outcome of resolving a request's product reference.
// Candidates holds every product that matched on the winning field, so
// callers can detect ambiguous references.
type ProductMatch struct {
	Product    *Product
	By         MatchedBy
	Candidates []Product
}

func (m ProductMatch) Found() bool { return m.Product != nil }

// Ambiguous reports whether more than one product matched.
func (m ProductMatch) Ambiguous() bool { return len(m.Candidates) > 1 }

// WarehouseStock is one sub-warehouse line of a verification.
type WarehouseStock struct {
	ProductID     ProductID
	WarehouseID   WarehouseID
	WarehouseName string
	Stock         int
}

// StockVerification is the derived stock picture for one request.
type StockVerification struct {
	RequestID        RequestID
	Requested        int
	PrimaryAvailable int
	SubWarehouses    []WarehouseStock
	Sufficient       bool
	Missing          int
	Percentage       float64
	Match            ProductMatch
	Fallback         bool
}

// DefaultAssumedStock is the stock assumed for products missing from the ledger.
const DefaultAssumedStock = 100

// StockResolver computes StockVerification values.
type StockResolver struct {
	PrimaryWarehouse WarehouseID
	// AssumedStock is used as primary stock when the product is unknown.
	AssumedStock int
}

// ResolveProduct finds the product a reference points at.
// The first product matching by id wins, then by code, then by name.
func ResolveProduct(ref *ProductRef, products []Product) ProductMatch {
	if ref == nil || ref.IsZero() {
		return ProductMatch{}
	}

	if ref.ID != "" {
		if m := collect(products, MatchID, func(p Product) bool { return p.ID == ref.ID }); m.Found() {
			return m
		}
	}
	if code := strings.TrimSpace(ref.Code); code != "" {
		if m := collect(products, MatchCode, func(p Product) bool { return p.Code == code }); m.Found() {
			return m
		}
	}
	if name := normalizeName(ref.Name); name != "" {
		if m := collect(products, MatchName, func(p Product) bool {
			return strings.EqualFold(normalizeName(p.Name), name)
		}); m.Found() {
			return m
		}
	}
	return ProductMatch{}
}

func collect(products []Product, by MatchedBy, match func(Product) bool) ProductMatch {
	var m ProductMatch
	for _, p := range products {
		if match(p) {
			m.Candidates = append(m.Candidates, p)
		}
	}
	if len(m.Candidates) > 0 {
		first := m.Candidates[0]
		m.Product = &first
		m.By = by
	}
	return m
}

// Verify computes the stock picture of r against products.
func (sr StockResolver) Verify(r *PurchaseRequest, products []Product) StockVerification {
	v := StockVerification{
		RequestID: r.ID,
		Requested: r.Quantity,
		Match:     ResolveProduct(r.Product, products),
	}

	if !v.Match.Found() {
		v.Fallback = true
		v.PrimaryAvailable = sr.AssumedStock
	} else {
		p := v.Match.Product
		if p.WarehouseID == sr.PrimaryWarehouse {
			v.PrimaryAvailable = p.Stock
		}
		v.SubWarehouses = sr.subWarehouses(*p, products)
	}

	v.Sufficient, v.Missing, v.Percentage = Sufficiency(v.PrimaryAvailable, v.Requested)
	return v
}

// Sufficiency compares available against requested. A zero request is
// always sufficient at 100%.
func Sufficiency(available, requested int) (sufficient bool, missing int, percentage float64) {
	if available < 0 {
		available = 0
	}
	if requested <= 0 {
		return true, 0, 100
	}
	sufficient = available >= requested
	if !sufficient {
		missing = requested - available
	}
	percentage = float64(available) / float64(requested) * 100
	if percentage > 100 {
		percentage = 100
	}
	return sufficient, missing, percentage
}

func (sr StockResolver) subWarehouses(p Product, products []Product) []WarehouseStock {
	var out []WarehouseStock
	for _, other := range products {
		if other.WarehouseID == sr.PrimaryWarehouse || other.Stock <= 0 {
			continue
		}
		if !sameLogicalProduct(p, other) {
			continue
		}
		out = append(out, WarehouseStock{
			ProductID:     other.ID,
			WarehouseID:   other.WarehouseID,
			WarehouseName: other.WarehouseName,
			Stock:         other.Stock,
		})
	}
	return out
}

func sameLogicalProduct(a, b Product) bool {
	if a.Code != "" || b.Code != "" {
		return a.Code == b.Code
	}
	return a.ID == b.ID
}

func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
