package procurement

import (
	"context"
	"time"
)

// =============================================================================
// EXTERNAL PURCHASING COLLABORATOR
// =============================================================================

// Stage is one step reported by the purchasing system after an order is placed.
type Stage string

const (
	StageQuotation        Stage = "quotation"
	StageSupplierAssigned Stage = "supplier_assigned"
	StagePurchasing       Stage = "purchasing"
	StagePurchaseExecuted Stage = "purchase_executed"
	StageProductReceived  Stage = "product_received"
)

// StageSequence is the fixed order in which stages are reported.
var StageSequence = []Stage{
	StageQuotation,
	StageSupplierAssigned,
	StagePurchasing,
	StagePurchaseExecuted,
	StageProductReceived,
}

// action maps a stage to the transition it drives.
func (s Stage) action() (Action, bool) {
	switch s {
	case StageQuotation:
		return ActionStageQuotation, true
	case StageSupplierAssigned:
		return ActionStageSupplier, true
	case StagePurchasing:
		return ActionStagePurchasing, true
	case StagePurchaseExecuted:
		return ActionStageExecuted, true
	case StageProductReceived:
		return ActionStageReceived, true
	}
	return "", false
}

// OrderRequest is what the engine hands to the purchasing system.
// Items are already consolidated by product and price.
type OrderRequest struct {
	RequestID RequestID
	Product   *ProductRef
	Quantity  int
	Items     []LineItem
	Warehouse WarehouseRef
	Urgency   Urgency
}

// PurchaseOrder is the purchasing system's answer to a submitted order.
type PurchaseOrder struct {
	Number            string
	Supplier          string
	EstimatedDelivery string
}

// StageEvent is one staged progress report for an order.
type StageEvent struct {
	OrderNumber string
	Stage       Stage
	// Supplier is set when the stage assigns or changes the supplier.
	Supplier string
	Note     string
	At       time.Time
}

// StageFunc receives staged progress. It may be called from any goroutine.
type StageFunc func(StageEvent)

// PurchasingService places orders with an outside purchasing system.
//
// Submit may fail, in which case the engine puts the request on hold and
// does not retry. OnStage registers fn for every stage of orderNumber;
// stages arrive in StageSequence order and keep firing even if nobody is
// looking at the request anymore.
type PurchasingService interface {
	Submit(ctx context.Context, order OrderRequest) (PurchaseOrder, error)
	OnStage(orderNumber string, fn StageFunc)
}
