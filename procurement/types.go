/*
Package procurement provides the purchase request lifecycle engine.

PURPOSE:
  A warehouse dashboard raises purchase requests for products it is short of.
  Each request is reviewed by a human, then either fulfilled internally from
  the primary warehouse or sent to an external purchasing system that reports
  back in stages until the goods are received. This package holds that
  workflow and the small calculations that feed it.

KEY CONCEPTS IN THIS FILE (types.go):
  - PurchaseRequest: The central entity, with exactly one Status at a time
  - LineItem: A quantity/price line inside a request
  - Actor: Whoever is issuing a command (requester or reviewer)
  - HistoryEntry: One recorded transition, for traceability

DESIGN PRINCIPLES:
  1. Status changes only through the Engine and the transition table
  2. Money uses decimal.Decimal, quantities are whole units
  3. Requests are copied in and out of stores, never shared
  4. Async purchasing callbacks re-read the request when they fire

SEE ALSO:
  - status.go: States, actions and the transition table
  - items.go: Line item ledger functions
  - stock.go: Stock resolution against the product ledger
  - lifecycle.go: The Engine
*/
package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RequestID string
type ProductID string
type WarehouseID string

// Actor identifies the user issuing a command.
type Actor struct {
	ID   string
	Name string
}

// =============================================================================
// URGENCY
// =============================================================================

// Urgency is a priority tag, distinct from Status.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Rank orders urgencies for review queues. Lower is more urgent.
// Unknown values sort after low.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyUrgent:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 3
	default:
		return 4
	}
}

func (u Urgency) Valid() bool { return u.Rank() < 4 }

// =============================================================================
// REFERENCES
// =============================================================================

// ProductRef points at a product in the ledger. Any field may be blank
// for ad-hoc items that were never registered.
type ProductRef struct {
	ID   ProductID `json:"id,omitempty" yaml:"id"`
	Code string    `json:"code,omitempty" yaml:"code"`
	Name string    `json:"name,omitempty" yaml:"name"`
}

func (p ProductRef) IsZero() bool { return p.ID == "" && p.Code == "" && p.Name == "" }

type WarehouseRef struct {
	ID   WarehouseID `json:"id" yaml:"id"`
	Name string      `json:"name,omitempty" yaml:"name"`
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItem is one line of a request. Subtotal is always Quantity * UnitPrice.
type LineItem struct {
	Number      int             `json:"item_number" yaml:"item_number"`
	Code        string          `json:"code,omitempty" yaml:"code"`
	Description string          `json:"description" yaml:"description"`
	Unit        string          `json:"unit,omitempty" yaml:"unit"`
	Quantity    int             `json:"quantity" yaml:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" yaml:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal" yaml:"subtotal"`
}

// =============================================================================
// PURCHASE REQUEST
// =============================================================================

// PurchaseRequest is the central entity of the engine.
type PurchaseRequest struct {
	ID RequestID

	Product   *ProductRef
	Quantity  int
	Items     []LineItem
	Warehouse WarehouseRef

	Reason            string
	Urgency           Urgency
	Observations      string
	EstimatedPrice    decimal.Decimal
	Supplier          string
	EstimatedDelivery string

	// Set once sent to external purchasing
	PurchaseOrderNumber string
	PurchaseStage       Stage
	// Set once received or fulfilled internally
	DeliveryDate *time.Time

	OutboundOrderNumber string
	ExternalOrder       *ExternalOrderDraft

	CancellationReason string

	Status Status

	// Provenance
	RequestedBy   string
	RequesterName string
	RequestedAt   time.Time

	// Review stamp (any reviewer action)
	ReviewedBy   string
	ReviewerName string
	ReviewedAt   *time.Time
	ReviewNotes  string

	// Requests linked through unify, for traceability only
	RelatedRequestIDs []RequestID

	History []HistoryEntry
}

// HistoryEntry records one status transition.
type HistoryEntry struct {
	At        time.Time
	Action    Action
	From      Status
	To        Status
	ActorID   string
	ActorName string
	Notes     string
}

// ExternalOrderDraft is the record left on a request when stock is short
// and an external purchase order is generated for the missing quantity.
type ExternalOrderDraft struct {
	MissingQuantity int
	EstimatedCost   decimal.Decimal
	CreatedBy       string
	CreatedAt       time.Time
}

// ProductID returns the referenced product id, or "" for ad-hoc requests.
func (r *PurchaseRequest) ProductID() ProductID {
	if r.Product == nil {
		return ""
	}
	return r.Product.ID
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate stored state behind the engine's back.
func (r *PurchaseRequest) Clone() *PurchaseRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.Product != nil {
		p := *r.Product
		c.Product = &p
	}
	if r.Items != nil {
		c.Items = append([]LineItem(nil), r.Items...)
	}
	if r.DeliveryDate != nil {
		d := *r.DeliveryDate
		c.DeliveryDate = &d
	}
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		c.ReviewedAt = &t
	}
	if r.ExternalOrder != nil {
		e := *r.ExternalOrder
		c.ExternalOrder = &e
	}
	if r.RelatedRequestIDs != nil {
		c.RelatedRequestIDs = append([]RequestID(nil), r.RelatedRequestIDs...)
	}
	if r.History != nil {
		c.History = append([]HistoryEntry(nil), r.History...)
	}
	return &c
}

// stampReview records a reviewer action on the request.
func (r *PurchaseRequest) stampReview(actor Actor, notes string, at time.Time) {
	r.ReviewedBy = actor.ID
	r.ReviewerName = actor.Name
	r.ReviewedAt = &at
	r.ReviewNotes = notes
}

func (r *PurchaseRequest) clearReview() {
	r.ReviewedBy = ""
	r.ReviewerName = ""
	r.ReviewedAt = nil
	r.ReviewNotes = ""
}
