/*
Package factory provides YAML to Go seed data conversion.

PURPOSE:
  Loads warehouses, products and purchase requests from a YAML document and
  writes them into the stores at start-up, so the dashboard has something to
  show without a real inventory backend. A default seed is embedded in the
  binary; a file path overrides it.

YAML SCHEMA:
  warehouses:
    - id: wh-central
      name: Central Warehouse
      primary: true
  products:
    - id: p-kb-central
      code: KB-101
      name: Mechanical keyboard
      warehouse: wh-central
      stock: 40
  requests:
    - id: pr-001
      product: {id: p-kb-central, code: KB-101, name: Mechanical keyboard}
      warehouse: wh-north
      reason: Replacement for broken units
      urgency: high
      status: pending
      requested_by: {id: u-ana, name: Ana Torres}
      requested_at: 2026-03-02T09:15:00Z
      items:
        - {code: KB-101, description: Mechanical keyboard, quantity: 5, unit_price: "45.90"}

KEY FEATURES:
  - Validates every request with the same rules as the engine
  - Product and request warehouse names are filled from the warehouses list
  - Requests keep the status written in the seed (no history is replayed)

USAGE:
  seed, err := factory.Load("")          // embedded default
  err = seed.Apply(ctx, products, requests)

SEE ALSO:
  - default.yaml: The embedded seed
  - procurement/validation.go: Validation rules applied to seeded requests
*/
package factory

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/procurement-engine/procurement"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSeed []byte

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

type Seed struct {
	Warehouses []WarehouseYAML `yaml:"warehouses"`
	Products   []ProductYAML   `yaml:"products"`
	Requests   []RequestYAML   `yaml:"requests"`
}

type WarehouseYAML struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Primary bool   `yaml:"primary"`
}

type ProductYAML struct {
	ID        string `yaml:"id"`
	Code      string `yaml:"code"`
	Name      string `yaml:"name"`
	Warehouse string `yaml:"warehouse"`
	Stock     int    `yaml:"stock"`
}

type ActorYAML struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type ItemYAML struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
	Unit        string `yaml:"unit"`
	Quantity    int    `yaml:"quantity"`
	UnitPrice   string `yaml:"unit_price"`
}

type RequestYAML struct {
	ID             string                  `yaml:"id"`
	Product        *procurement.ProductRef `yaml:"product"`
	Quantity       int                     `yaml:"quantity"`
	Items          []ItemYAML              `yaml:"items"`
	Warehouse      string                  `yaml:"warehouse"`
	Reason         string                  `yaml:"reason"`
	Urgency        string                  `yaml:"urgency"`
	Observations   string                  `yaml:"observations"`
	EstimatedPrice string                  `yaml:"estimated_price"`
	Supplier       string                  `yaml:"supplier"`
	Status         string                  `yaml:"status"`
	ReviewNotes    string                  `yaml:"review_notes"`
	RequestedBy    ActorYAML               `yaml:"requested_by"`
	RequestedAt    time.Time               `yaml:"requested_at"`
}

// ProductWriter is implemented by product ledgers that accept seed data.
type ProductWriter interface {
	PutProduct(ctx context.Context, p procurement.Product) error
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads a seed file, or the embedded default when path is empty.
func Load(path string) (*Seed, error) {
	if path == "" {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and checks a YAML seed.
func Parse(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid seed YAML: %w", err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Seed) check() error {
	known := make(map[string]bool, len(s.Warehouses))
	for _, w := range s.Warehouses {
		if w.ID == "" {
			return errors.New("seed warehouse without id")
		}
		known[w.ID] = true
	}
	for _, p := range s.Products {
		if p.ID == "" {
			return errors.New("seed product without id")
		}
		if !known[p.Warehouse] {
			return fmt.Errorf("seed product %s: unknown warehouse %q", p.ID, p.Warehouse)
		}
	}
	for _, r := range s.Requests {
		if r.ID == "" {
			return errors.New("seed request without id")
		}
		if r.Status != "" && !procurement.Status(r.Status).Valid() {
			return fmt.Errorf("seed request %s: unknown status %q", r.ID, r.Status)
		}
	}
	return nil
}

// PrimaryWarehouse returns the warehouse flagged primary, if any.
func (s *Seed) PrimaryWarehouse() (procurement.WarehouseID, bool) {
	for _, w := range s.Warehouses {
		if w.Primary {
			return procurement.WarehouseID(w.ID), true
		}
	}
	return "", false
}

func (s *Seed) warehouse(id string) procurement.WarehouseRef {
	for _, w := range s.Warehouses {
		if w.ID == id {
			return procurement.WarehouseRef{ID: procurement.WarehouseID(w.ID), Name: w.Name}
		}
	}
	return procurement.WarehouseRef{ID: procurement.WarehouseID(id)}
}

// =============================================================================
// CONVERSION
// =============================================================================

func (s *Seed) ToProducts() []procurement.Product {
	out := make([]procurement.Product, 0, len(s.Products))
	for _, p := range s.Products {
		w := s.warehouse(p.Warehouse)
		out = append(out, procurement.Product{
			ID:            procurement.ProductID(p.ID),
			Code:          p.Code,
			Name:          p.Name,
			WarehouseID:   w.ID,
			WarehouseName: w.Name,
			Stock:         p.Stock,
		})
	}
	return out
}

// ToRequests converts the seeded requests. now stamps requests that have
// no requested_at.
func (s *Seed) ToRequests(now time.Time) ([]*procurement.PurchaseRequest, error) {
	out := make([]*procurement.PurchaseRequest, 0, len(s.Requests))
	for _, ry := range s.Requests {
		r, err := s.toRequest(ry, now)
		if err != nil {
			return nil, fmt.Errorf("seed request %s: %w", ry.ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Seed) toRequest(ry RequestYAML, now time.Time) (*procurement.PurchaseRequest, error) {
	estimated, err := parseDecimal(ry.EstimatedPrice)
	if err != nil {
		return nil, fmt.Errorf("estimated_price: %w", err)
	}

	items := make([]procurement.LineItem, 0, len(ry.Items))
	for i, iy := range ry.Items {
		price, err := parseDecimal(iy.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("item %d unit_price: %w", i+1, err)
		}
		items = append(items, procurement.LineItem{
			Code:        iy.Code,
			Description: iy.Description,
			Unit:        iy.Unit,
			Quantity:    iy.Quantity,
			UnitPrice:   price,
		})
	}

	in := procurement.RequestInput{
		Product:        ry.Product,
		Quantity:       ry.Quantity,
		Items:          items,
		Warehouse:      s.warehouse(ry.Warehouse),
		Reason:         ry.Reason,
		Urgency:        procurement.Urgency(ry.Urgency),
		Observations:   ry.Observations,
		EstimatedPrice: estimated,
		Supplier:       ry.Supplier,
	}
	normalized, err := in.Validate()
	if err != nil {
		return nil, err
	}

	status := procurement.Status(ry.Status)
	if status == "" {
		status = procurement.StatusPending
	}
	urgency := in.Urgency
	if urgency == "" {
		urgency = procurement.UrgencyMedium
	}
	requestedAt := ry.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = now
	}

	return &procurement.PurchaseRequest{
		ID:             procurement.RequestID(ry.ID),
		Product:        in.Product,
		Quantity:       procurement.SumQuantities(normalized),
		Items:          normalized,
		Warehouse:      in.Warehouse,
		Reason:         in.Reason,
		Urgency:        urgency,
		Observations:   in.Observations,
		EstimatedPrice: estimated,
		Supplier:       in.Supplier,
		Status:         status,
		ReviewNotes:    ry.ReviewNotes,
		RequestedBy:    ry.RequestedBy.ID,
		RequesterName:  ry.RequestedBy.Name,
		RequestedAt:    requestedAt,
	}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Apply writes products and requests into the stores. Requests that
// already exist are skipped so restarting on a file database is safe.
func (s *Seed) Apply(ctx context.Context, products ProductWriter, requests procurement.RequestStore, now time.Time) error {
	for _, p := range s.ToProducts() {
		if err := products.PutProduct(ctx, p); err != nil {
			return err
		}
	}

	rs, err := s.ToRequests(now)
	if err != nil {
		return err
	}
	for _, r := range rs {
		if err := requests.Create(ctx, r); err != nil {
			if errors.Is(err, procurement.ErrDuplicateRequest) {
				continue
			}
			return err
		}
	}
	return nil
}
