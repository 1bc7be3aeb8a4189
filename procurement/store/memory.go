// Package store provides in-memory implementations of the procurement stores.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/procurement-engine/procurement"
)

// =============================================================================
// MEMORY STORE - In-memory RequestStore (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	requests map[procurement.RequestID]*procurement.PurchaseRequest
	order    []procurement.RequestID
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[procurement.RequestID]*procurement.PurchaseRequest),
	}
}

func (m *Memory) Create(_ context.Context, r *procurement.PurchaseRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[r.ID]; exists {
		return procurement.ErrDuplicateRequest
	}
	m.requests[r.ID] = r.Clone()
	m.order = append(m.order, r.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id procurement.RequestID) (*procurement.PurchaseRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, procurement.ErrRequestNotFound
	}
	return r.Clone(), nil
}

// List returns matching requests in creation order.
func (m *Memory) List(_ context.Context, filter procurement.RequestFilter) ([]procurement.PurchaseRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []procurement.PurchaseRequest
	for _, id := range m.order {
		r := m.requests[id]
		if filter.Matches(r) {
			out = append(out, *r.Clone())
		}
	}
	return out, nil
}

// Update runs fn on a copy under the write lock and keeps the copy only
// when fn succeeds.
func (m *Memory) Update(_ context.Context, id procurement.RequestID, fn func(*procurement.PurchaseRequest) error) (*procurement.PurchaseRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.requests[id]
	if !ok {
		return nil, procurement.ErrRequestNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	m.requests[id] = next
	return next.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, id procurement.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[id]; !ok {
		return procurement.ErrRequestNotFound
	}
	delete(m.requests, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// =============================================================================
// PRODUCT LEDGER
// =============================================================================

// Products is a mutable product ledger. The engine only reads it.
type Products struct {
	mu       sync.RWMutex
	products []procurement.Product
}

func NewProducts(products ...procurement.Product) *Products {
	return &Products{products: append([]procurement.Product(nil), products...)}
}

// PutProduct adds a product or replaces the entry with the same id.
func (p *Products) PutProduct(_ context.Context, product procurement.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.products {
		if p.products[i].ID == product.ID {
			p.products[i] = product
			return nil
		}
	}
	p.products = append(p.products, product)
	return nil
}

func (p *Products) ListProducts(_ context.Context) ([]procurement.Product, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]procurement.Product(nil), p.products...), nil
}

// =============================================================================
// NOTIFICATION LOG
// =============================================================================

type Notifications struct {
	mu    sync.RWMutex
	items []procurement.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (n *Notifications) Notify(_ context.Context, note procurement.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, note)
	return nil
}

// ListNotifications returns newest first.
func (n *Notifications) ListNotifications(_ context.Context, filter procurement.NotificationFilter) ([]procurement.Notification, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var out []procurement.Notification
	for _, note := range n.items {
		if filter.UnreadOnly && note.Read {
			continue
		}
		if filter.WarehouseID != "" && note.WarehouseID != filter.WarehouseID {
			continue
		}
		out = append(out, note)
	}

	// Stable on insertion order so equal timestamps stay newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (n *Notifications) MarkRead(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := range n.items {
		if n.items[i].ID == id {
			n.items[i].Read = true
			return nil
		}
	}
	return procurement.ErrNotificationNotFound
}
