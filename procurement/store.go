/*
store.go - Persistence interfaces for requests and notifications

PURPOSE:
  Defines the boundary between the engine and wherever requests live.
  The engine owns status; a store only keeps what it is given.

UPDATE CONTRACT:
  Update(id, fn) is an atomic read-modify-write. The store loads the
  current request, hands a copy to fn, and writes the copy back only if fn
  returns nil. Staged purchasing callbacks use this so they always act on
  the latest version and never overwrite fields written in between.

  If id does not exist Update returns ErrRequestNotFound without calling fn.

IMPLEMENTATIONS:
  - procurement/store/memory.go: In-memory, for tests and demo mode
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - lifecycle.go: The only caller that mutates status
*/
package procurement

import "context"

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestFilter narrows List. Zero fields match everything.
type RequestFilter struct {
	Statuses    []Status
	WarehouseID WarehouseID
	ProductID   ProductID
	RequestedBy string
}

// Matches reports whether r passes the filter.
func (f RequestFilter) Matches(r *PurchaseRequest) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.WarehouseID != "" && r.Warehouse.ID != f.WarehouseID {
		return false
	}
	if f.ProductID != "" && r.ProductID() != f.ProductID {
		return false
	}
	if f.RequestedBy != "" && r.RequestedBy != f.RequestedBy {
		return false
	}
	return true
}

type RequestStore interface {
	// Create stores a new request. Returns ErrDuplicateRequest if the id exists.
	Create(ctx context.Context, r *PurchaseRequest) error

	// Get returns a copy of the request, or ErrRequestNotFound.
	Get(ctx context.Context, id RequestID) (*PurchaseRequest, error)

	// List returns copies of all matching requests in creation order.
	List(ctx context.Context, filter RequestFilter) ([]PurchaseRequest, error)

	// Update atomically applies fn to the stored request and returns the result.
	Update(ctx context.Context, id RequestID, fn func(*PurchaseRequest) error) (*PurchaseRequest, error)

	// Delete removes the request. Returns ErrRequestNotFound if absent.
	Delete(ctx context.Context, id RequestID) error
}

// =============================================================================
// NOTIFICATION LOG - A sink that also keeps what it receives
// =============================================================================

type NotificationFilter struct {
	UnreadOnly  bool
	WarehouseID WarehouseID
	// Limit caps the result; 0 means no cap.
	Limit int
}

// NotificationLog stores notifications for the dashboard. List returns
// newest first.
type NotificationLog interface {
	NotificationSink
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
}
