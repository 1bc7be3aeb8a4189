package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// NOTIFICATIONS - Records emitted as a side effect of transitions
// =============================================================================

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// NotificationType tags what happened.
type NotificationType string

const (
	NotifyCreated          NotificationType = "request_created"
	NotifyApproved         NotificationType = "request_approved"
	NotifySentToPurchasing NotificationType = "sent_to_purchasing"
	NotifyQuotation        NotificationType = "purchase_quotation"
	NotifySupplierAssigned NotificationType = "supplier_assigned"
	NotifyInProduction     NotificationType = "purchase_in_progress"
	NotifyReceived         NotificationType = "product_received"
	NotifyPurchasingFailed NotificationType = "purchasing_failed"
	NotifyRejected         NotificationType = "request_rejected"
	NotifyObserved         NotificationType = "request_observed"
	NotifyOnHold           NotificationType = "request_on_hold"
	NotifyUnified          NotificationType = "requests_unified"
	NotifyCancelled        NotificationType = "request_cancelled"
	NotifyOutboundOrder    NotificationType = "outbound_order"
	NotifyExternalOrder    NotificationType = "external_purchase_order"
)

// Notification is immutable once emitted. Read starts false; only a
// notification log can flip it.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	WarehouseID   WarehouseID      `json:"warehouse_id,omitempty"`
	WarehouseName string           `json:"warehouse_name,omitempty"`
	Read          bool             `json:"read"`
	RelatedID     string           `json:"related_id,omitempty"`
	Severity      Severity         `json:"severity"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NotificationSink consumes notifications. The engine never reads them back.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to NotificationSink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Fanout delivers to every sink and joins their errors. A failing sink does
// not stop delivery to the others.
type Fanout []NotificationSink

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// BUILDERS
// =============================================================================

func newNotification(r *PurchaseRequest, typ NotificationType, sev Severity, title, msg string) Notification {
	return Notification{
		Type:          typ,
		Title:         title,
		Message:       msg,
		WarehouseID:   r.Warehouse.ID,
		WarehouseName: r.Warehouse.Name,
		RelatedID:     string(r.ID),
		Severity:      sev,
	}
}

func describe(r *PurchaseRequest) string {
	if r.Product != nil && r.Product.Name != "" {
		return fmt.Sprintf("%d x %s", r.Quantity, r.Product.Name)
	}
	if len(r.Items) == 1 {
		return fmt.Sprintf("%d x %s", r.Items[0].Quantity, r.Items[0].Description)
	}
	return fmt.Sprintf("%d items", len(r.Items))
}

func createdNotification(r *PurchaseRequest) Notification {
	return newNotification(r, NotifyCreated, SeverityInfo,
		"New purchase request",
		fmt.Sprintf("%s requested %s for %s", r.RequesterName, describe(r), r.Warehouse.Name))
}

func sentToPurchasingNotification(r *PurchaseRequest) Notification {
	return newNotification(r, NotifySentToPurchasing, SeveritySuccess,
		"Request approved and sent to purchasing",
		fmt.Sprintf("Purchase order %s placed with %s for %s", r.PurchaseOrderNumber, r.Supplier, describe(r)))
}

func purchasingFailedNotification(r *PurchaseRequest, err error) Notification {
	return newNotification(r, NotifyPurchasingFailed, SeverityError,
		"Purchasing system error",
		fmt.Sprintf("Request %s could not be sent to purchasing and was put on hold: %v", r.ID, err))
}

func reviewNotification(r *PurchaseRequest, action Action) Notification {
	switch action {
	case ActionReject:
		return newNotification(r, NotifyRejected, SeverityError,
			"Purchase request rejected", fmt.Sprintf("Request %s was rejected: %s", r.ID, r.ReviewNotes))
	case ActionObserve:
		return newNotification(r, NotifyObserved, SeverityWarning,
			"Purchase request observed", fmt.Sprintf("Request %s needs changes: %s", r.ID, r.ReviewNotes))
	case ActionHold:
		return newNotification(r, NotifyOnHold, SeverityWarning,
			"Purchase request on hold", fmt.Sprintf("Request %s was put on hold: %s", r.ID, r.ReviewNotes))
	case ActionCancel:
		return newNotification(r, NotifyCancelled, SeverityInfo,
			"Purchase request cancelled", fmt.Sprintf("Request %s was cancelled: %s", r.ID, r.CancellationReason))
	default:
		return newNotification(r, NotifyApproved, SeverityInfo,
			"Purchase request approved", fmt.Sprintf("Request %s was approved", r.ID))
	}
}

// stageNotification returns false for stages that are silent.
func stageNotification(r *PurchaseRequest, stage Stage) (Notification, bool) {
	switch stage {
	case StageQuotation:
		return newNotification(r, NotifyQuotation, SeverityInfo,
			"Quotation in progress", fmt.Sprintf("Order %s is being quoted", r.PurchaseOrderNumber)), true
	case StageSupplierAssigned:
		return newNotification(r, NotifySupplierAssigned, SeverityInfo,
			"Supplier assigned", fmt.Sprintf("Order %s assigned to %s", r.PurchaseOrderNumber, r.Supplier)), true
	case StagePurchasing:
		return newNotification(r, NotifyInProduction, SeverityInfo,
			"Purchase in progress", fmt.Sprintf("Order %s is being purchased", r.PurchaseOrderNumber)), true
	case StageProductReceived:
		return newNotification(r, NotifyReceived, SeveritySuccess,
			"Product received", fmt.Sprintf("Order %s was received at %s", r.PurchaseOrderNumber, r.Warehouse.Name)), true
	}
	return Notification{}, false
}

func unifiedNotification(target *PurchaseRequest, held []RequestID) Notification {
	return newNotification(target, NotifyUnified, SeverityInfo,
		"Requests unified", fmt.Sprintf("%d similar requests were put on hold in favour of %s", len(held), target.ID))
}

func outboundNotification(r *PurchaseRequest) Notification {
	return newNotification(r, NotifyOutboundOrder, SeveritySuccess,
		"Outbound order generated",
		fmt.Sprintf("Outbound order %s dispatches %s to %s", r.OutboundOrderNumber, describe(r), r.Warehouse.Name))
}

func externalOrderNotification(r *PurchaseRequest) Notification {
	return newNotification(r, NotifyExternalOrder, SeverityWarning,
		"External purchase order generated",
		fmt.Sprintf("Request %s is short %d units, estimated cost %s",
			r.ID, r.ExternalOrder.MissingQuantity, r.ExternalOrder.EstimatedCost.StringFixed(2)))
}
