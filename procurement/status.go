package procurement

import "time"

// =============================================================================
// STATUS - Closed set of lifecycle states
// =============================================================================

type Status string

const (
	StatusDraft        Status = "draft"
	StatusPending      Status = "pending"
	StatusUrgent       Status = "urgent"
	StatusObserved     Status = "observed"
	StatusInCorrection Status = "in_correction"
	StatusOnHold       Status = "on_hold"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusPurchasing   Status = "purchasing"
	StatusCancelled    Status = "cancelled"
	StatusInProduction Status = "in_production"
	StatusClosed       Status = "closed"
)

// AllStatuses lists every state in lifecycle order.
var AllStatuses = []Status{
	StatusDraft, StatusPending, StatusUrgent, StatusObserved, StatusInCorrection,
	StatusOnHold, StatusApproved, StatusRejected, StatusPurchasing, StatusCancelled,
	StatusInProduction, StatusClosed,
}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusClosed
}

// Open reports whether a request in s counts as live demand for the same
// product, which is what the similarity finder and unify look at.
func (s Status) Open() bool {
	switch s {
	case StatusPending, StatusUrgent, StatusApproved, StatusPurchasing:
		return true
	}
	return false
}

// =============================================================================
// ACTIONS
// =============================================================================

type Action string

const (
	ActionSubmit          Action = "submit"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionObserve         Action = "observe"
	ActionHold            Action = "hold"
	ActionResume          Action = "resume"
	ActionMarkUrgent      Action = "mark_urgent"
	ActionStartCorrection Action = "start_correction"
	ActionResubmit        Action = "resubmit"
	ActionCancel          Action = "cancel"
	ActionUnifyHold       Action = "unify_hold"

	// Driven by the purchasing collaborator
	ActionSendToPurchasing  Action = "send_to_purchasing"
	ActionPurchasingFailed  Action = "purchasing_failed"
	ActionStageQuotation    Action = "stage_quotation"
	ActionStageSupplier     Action = "stage_supplier_assigned"
	ActionStagePurchasing   Action = "stage_purchasing"
	ActionStageExecuted     Action = "stage_purchase_executed"
	ActionStageReceived     Action = "stage_product_received"
	ActionFulfillInternally Action = "fulfill_internal"

	// Commands that never change status. They only appear in TransitionError.
	ActionEdit          Action = "edit"
	ActionUnify         Action = "unify"
	ActionExternalOrder Action = "generate_external_order"
)

// transitions is the complete table of allowed status changes.
// Anything not listed here is refused.
var transitions = map[Status]map[Action]Status{
	StatusDraft: {
		ActionSubmit: StatusPending,
		ActionCancel: StatusCancelled,
	},
	StatusPending: {
		ActionApprove:           StatusApproved,
		ActionReject:            StatusRejected,
		ActionObserve:           StatusObserved,
		ActionHold:              StatusOnHold,
		ActionMarkUrgent:        StatusUrgent,
		ActionCancel:            StatusCancelled,
		ActionUnifyHold:         StatusOnHold,
		ActionFulfillInternally: StatusClosed,
	},
	StatusUrgent: {
		ActionApprove:           StatusApproved,
		ActionReject:            StatusRejected,
		ActionObserve:           StatusObserved,
		ActionHold:              StatusOnHold,
		ActionCancel:            StatusCancelled,
		ActionUnifyHold:         StatusOnHold,
		ActionFulfillInternally: StatusClosed,
	},
	StatusObserved: {
		ActionReject:          StatusRejected,
		ActionStartCorrection: StatusInCorrection,
		ActionResubmit:        StatusPending,
		ActionCancel:          StatusCancelled,
	},
	StatusInCorrection: {
		ActionResubmit: StatusPending,
		ActionCancel:   StatusCancelled,
	},
	StatusOnHold: {
		ActionResume: StatusPending,
		ActionCancel: StatusCancelled,
	},
	StatusApproved: {
		ActionSendToPurchasing:  StatusPurchasing,
		ActionPurchasingFailed:  StatusOnHold,
		ActionUnifyHold:         StatusOnHold,
		ActionFulfillInternally: StatusClosed,
	},
	StatusPurchasing: {
		ActionStageQuotation:  StatusPurchasing,
		ActionStageSupplier:   StatusPurchasing,
		ActionStagePurchasing: StatusInProduction,
		ActionUnifyHold:       StatusOnHold,
	},
	StatusInProduction: {
		ActionStageExecuted: StatusInProduction,
		ActionStageReceived: StatusClosed,
	},
}

// Transition returns the status reached by applying action in from.
func Transition(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return from, &TransitionError{From: from, Action: action}
}

// CanApply reports whether action is allowed in status s.
func CanApply(s Status, action Action) bool {
	_, err := Transition(s, action)
	return err == nil
}

// apply moves r through action and records it in the history.
func (r *PurchaseRequest) apply(action Action, actor Actor, notes string, at time.Time) error {
	to, err := Transition(r.Status, action)
	if err != nil {
		return err
	}
	r.History = append(r.History, HistoryEntry{
		At:        at,
		Action:    action,
		From:      r.Status,
		To:        to,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Notes:     notes,
	})
	r.Status = to
	return nil
}
