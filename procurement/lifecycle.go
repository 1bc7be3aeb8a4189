/*
lifecycle.go - The purchase request lifecycle engine

PURPOSE:
  Every command that changes a request goes through the Engine. It checks
  the transition table, stamps the reviewer, records history, writes the
  store and emits notifications. Nothing else mutates Status.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────────┐
  │                                                                      │
  │  draft ──submit──▶ pending ◀──resubmit── observed / in_correction    │
  │                      │  ▲                                            │
  │          mark_urgent │  │ resume                                     │
  │                      ▼  │                                            │
  │                   urgent / on_hold                                   │
  │                      │                                               │
  │                   approve                                            │
  │                      ▼                                               │
  │                  approved ──(async submit)──▶ purchasing             │
  │                      │ fails                     │ stages            │
  │                      ▼                           ▼                   │
  │                   on_hold                  in_production ──▶ closed  │
  │                                                                      │
  └──────────────────────────────────────────────────────────────────────┘

APPROVE AND PROCURE:
  1. approve sets status=approved synchronously and returns
  2. the order is submitted to the PurchasingService in the background
  3. success: status=purchasing, order number/supplier/delivery attached
     failure: status=on_hold with the error as review note, no retry
  4. staged callbacks re-read the request by id when they fire. A missing
     request or a stage the current status does not allow drops the update.

REFUSALS:
  Reject, observe and hold need notes. Blank notes return the request as
  stored together with ErrNotesRequired, and nothing is written.

SEE ALSO:
  - status.go: Transition table
  - purchasing.go: Collaborator contract
  - stock.go: Stock verification for outbound/external orders
*/
package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchasingActor is recorded on transitions driven by the purchasing system.
var PurchasingActor = Actor{ID: "purchasing", Name: "Purchasing system"}

var errStaleOrder = errors.New("stage belongs to a different purchase order")

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store      RequestStore
	Products   ProductLedger
	Purchasing PurchasingService
	Sink       NotificationSink
	Resolver   StockResolver
	Logger     *slog.Logger

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string

	// Dispatch runs background procurement. Nil starts a goroutine that
	// Wait can join.
	Dispatch func(func())

	wg sync.WaitGroup
}

// OutboundOrder is the internal fulfillment record produced when the
// primary warehouse covers a request.
type OutboundOrder struct {
	Number      string
	RequestID   RequestID
	Source      WarehouseID
	Destination WarehouseRef
	Product     *ProductRef
	Quantity    int
	Items       []LineItem
	CreatedBy   string
	CreatedAt   time.Time
}

// UnifyResult names the requests put on hold by a unify.
type UnifyResult struct {
	Request *PurchaseRequest
	Held    []RequestID
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) dispatch(f func()) {
	if e.Dispatch != nil {
		e.Dispatch(f)
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		f()
	}()
}

// Wait blocks until background procurement started by Approve has finished.
// Staged callbacks are owned by the PurchasingService and are not waited for.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// emit hands n to the sink. Sink failures are logged, never returned.
func (e *Engine) emit(ctx context.Context, n Notification) {
	if e.Sink == nil {
		return
	}
	if n.ID == "" {
		n.ID = e.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = e.now()
	}
	if err := e.Sink.Notify(ctx, n); err != nil {
		e.logger().Warn("notification delivery failed",
			"notification_type", n.Type, "related_id", n.RelatedID, "error", err)
	}
}

// transition applies action to the stored request and runs mutate on the
// same copy before it is written back.
func (e *Engine) transition(
	ctx context.Context,
	actor Actor,
	id RequestID,
	action Action,
	notes string,
	mutate func(r *PurchaseRequest, at time.Time),
) (*PurchaseRequest, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrActorRequired
	}

	at := e.now()
	updated, err := e.Store.Update(ctx, id, func(r *PurchaseRequest) error {
		if err := r.apply(action, actor, notes, at); err != nil {
			return err
		}
		if mutate != nil {
			mutate(r, at)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s request %s: %w", action, id, err)
	}

	e.logger().Info("request transitioned",
		"request_id", id, "action", action, "status", updated.Status, "actor", actor.ID)
	return updated, nil
}

// review is a reviewer transition: it stamps reviewer identity and notes.
func (e *Engine) review(ctx context.Context, actor Actor, id RequestID, action Action, notes string) (*PurchaseRequest, error) {
	return e.transition(ctx, actor, id, action, notes, func(r *PurchaseRequest, at time.Time) {
		r.stampReview(actor, notes, at)
	})
}

// reviewWithNotes refuses blank notes without touching the request.
func (e *Engine) reviewWithNotes(ctx context.Context, actor Actor, id RequestID, action Action, notes string) (*PurchaseRequest, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		current, err := e.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, ErrNotesRequired
	}

	updated, err := e.review(ctx, actor, id, action, notes)
	if err != nil {
		return nil, err
	}
	e.emit(ctx, reviewNotification(updated, action))
	return updated, nil
}

// =============================================================================
// REQUESTER COMMANDS
// =============================================================================

// Create validates in and stores a new pending request.
func (e *Engine) Create(ctx context.Context, actor Actor, in RequestInput) (*PurchaseRequest, error) {
	return e.create(ctx, actor, in, StatusPending)
}

// SaveDraft stores the input as a draft. Only item numbering and subtotals
// are normalized; validation happens at Submit.
func (e *Engine) SaveDraft(ctx context.Context, actor Actor, in RequestInput) (*PurchaseRequest, error) {
	return e.create(ctx, actor, in, StatusDraft)
}

func (e *Engine) create(ctx context.Context, actor Actor, in RequestInput, status Status) (*PurchaseRequest, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrActorRequired
	}

	var items []LineItem
	if status == StatusDraft {
		items = in.normalizedItems()
	} else {
		var err error
		if items, err = in.Validate(); err != nil {
			return nil, err
		}
	}

	at := e.now()
	r := &PurchaseRequest{
		ID:            RequestID(e.newID()),
		Status:        status,
		RequestedBy:   actor.ID,
		RequesterName: actor.Name,
		RequestedAt:   at,
	}
	in.applyTo(r, items)

	if err := e.Store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	e.logger().Info("request created", "request_id", r.ID, "status", r.Status, "actor", actor.ID)

	if status == StatusPending {
		e.emit(ctx, createdNotification(r))
	}
	return r.Clone(), nil
}

// UpdateDraft replaces the editable fields of a draft.
func (e *Engine) UpdateDraft(ctx context.Context, actor Actor, id RequestID, in RequestInput) (*PurchaseRequest, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrActorRequired
	}
	items := in.normalizedItems()
	updated, err := e.Store.Update(ctx, id, func(r *PurchaseRequest) error {
		if r.Status != StatusDraft {
			return &TransitionError{From: r.Status, Action: ActionEdit}
		}
		in.applyTo(r, items)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("edit request %s: %w", id, err)
	}
	return updated, nil
}

// Submit validates a draft and moves it to pending.
func (e *Engine) Submit(ctx context.Context, actor Actor, id RequestID) (*PurchaseRequest, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrActorRequired
	}

	at := e.now()
	updated, err := e.Store.Update(ctx, id, func(r *PurchaseRequest) error {
		if !CanApply(r.Status, ActionSubmit) {
			return &TransitionError{From: r.Status, Action: ActionSubmit}
		}
		items, err := inputOf(r).Validate()
		if err != nil {
			return err
		}
		if err := r.apply(ActionSubmit, actor, "", at); err != nil {
			return err
		}
		r.Items = items
		r.Quantity = SumQuantities(items)
		r.RequestedAt = at
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit request %s: %w", id, err)
	}

	e.emit(ctx, createdNotification(updated))
	return updated, nil
}

// StartCorrection marks an observed request as being edited by its requester.
func (e *Engine) StartCorrection(ctx context.Context, actor Actor, id RequestID) (*PurchaseRequest, error) {
	return e.transition(ctx, actor, id, ActionStartCorrection, "", nil)
}

// Resubmit replaces the request content with in and sends it back to
// review. The review stamp is cleared and the request date renewed.
func (e *Engine) Resubmit(ctx context.Context, actor Actor, id RequestID, in RequestInput) (*PurchaseRequest, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrActorRequired
	}
	items, err := in.Validate()
	if err != nil {
		return nil, err
	}

	updated, err := e.transition(ctx, actor, id, ActionResubmit, "", func(r *PurchaseRequest, at time.Time) {
		in.applyTo(r, items)
		r.clearReview()
		r.RequestedAt = at
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, createdNotification(updated))
	return updated, nil
}

// Cancel withdraws a request that has not been approved. A reason is required.
func (e *Engine) Cancel(ctx context.Context, actor Actor, id RequestID, reason string) (*PurchaseRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		current, err := e.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, ErrNotesRequired
	}

	updated, err := e.transition(ctx, actor, id, ActionCancel, reason, func(r *PurchaseRequest, _ time.Time) {
		r.CancellationReason = reason
	})
	if err != nil {
		return nil, err
	}
	e.emit(ctx, reviewNotification(updated, ActionCancel))
	return updated, nil
}

// Delete physically removes a draft or observed request.
func (e *Engine) Delete(ctx context.Context, actor Actor, id RequestID) error {
	if strings.TrimSpace(actor.ID) == "" {
		return ErrActorRequired
	}
	r, err := e.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanDelete(r) {
		return fmt.Errorf("delete request %s in status %s: %w", id, r.Status, ErrNotDeletable)
	}
	if err := e.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete request %s: %w", id, err)
	}
	e.logger().Info("request deleted", "request_id", id, "actor", actor.ID)
	return nil
}

// =============================================================================
// REVIEWER COMMANDS
// =============================================================================

func (e *Engine) Reject(ctx context.Context, actor Actor, id RequestID, notes string) (*PurchaseRequest, error) {
	return e.reviewWithNotes(ctx, actor, id, ActionReject, notes)
}

func (e *Engine) Observe(ctx context.Context, actor Actor, id RequestID, notes string) (*PurchaseRequest, error) {
	return e.reviewWithNotes(ctx, actor, id, ActionObserve, notes)
}

func (e *Engine) Hold(ctx context.Context, actor Actor, id RequestID, notes string) (*PurchaseRequest, error) {
	return e.reviewWithNotes(ctx, actor, id, ActionHold, notes)
}

// Resume puts an on-hold request back into the review queue.
func (e *Engine) Resume(ctx context.Context, actor Actor, id RequestID, notes string) (*PurchaseRequest, error) {
	return e.review(ctx, actor, id, ActionResume, strings.TrimSpace(notes))
}

func (e *Engine) MarkUrgent(ctx context.Context, actor Actor, id RequestID) (*PurchaseRequest, error) {
	return e.transition(ctx, actor, id, ActionMarkUrgent, "", func(r *PurchaseRequest, at time.Time) {
		r.Urgency = UrgencyUrgent
		r.stampReview(actor, r.ReviewNotes, at)
	})
}

// Approve moves the request to approved and starts procurement in the
// background. The returned request is the approved one; later states are
// visible through the store.
func (e *Engine) Approve(ctx context.Context, actor Actor, id RequestID, notes string) (*PurchaseRequest, error) {
	approved, err := e.review(ctx, actor, id, ActionApprove, strings.TrimSpace(notes))
	if err != nil {
		return nil, err
	}

	if e.Purchasing == nil {
		e.logger().Warn("request stays approved", "request_id", id, "error", ErrPurchasingUnavailable)
		e.emit(ctx, reviewNotification(approved, ActionApprove))
		return approved, nil
	}

	snapshot := approved.Clone()
	bg := context.WithoutCancel(ctx)
	e.dispatch(func() { e.procure(bg, snapshot) })
	return approved, nil
}

// procure submits the order and wires the staged callbacks.
func (e *Engine) procure(ctx context.Context, r *PurchaseRequest) {
	log := e.logger().With("request_id", r.ID)

	order := OrderRequest{
		RequestID: r.ID,
		Product:   r.Product,
		Quantity:  r.Quantity,
		Items:     GroupItemsByProductAndPrice(r.Items),
		Warehouse: r.Warehouse,
		Urgency:   r.Urgency,
	}

	po, err := e.Purchasing.Submit(ctx, order)
	if err != nil {
		log.Error("purchasing submit failed", "error", err)
		note := fmt.Sprintf("Purchasing system error: %v", err)
		failed, uerr := e.Store.Update(ctx, r.ID, func(cur *PurchaseRequest) error {
			at := e.now()
			if aerr := cur.apply(ActionPurchasingFailed, PurchasingActor, note, at); aerr != nil {
				return aerr
			}
			cur.ReviewNotes = note
			cur.ReviewedAt = &at
			return nil
		})
		if uerr != nil {
			log.Warn("dropping purchasing failure", "error", uerr)
			return
		}
		e.emit(ctx, purchasingFailedNotification(failed, err))
		return
	}

	log = log.With("order_number", po.Number)
	sent, err := e.Store.Update(ctx, r.ID, func(cur *PurchaseRequest) error {
		if aerr := cur.apply(ActionSendToPurchasing, PurchasingActor, "Order "+po.Number, e.now()); aerr != nil {
			return aerr
		}
		cur.PurchaseOrderNumber = po.Number
		if po.Supplier != "" {
			cur.Supplier = po.Supplier
		}
		if po.EstimatedDelivery != "" {
			cur.EstimatedDelivery = po.EstimatedDelivery
		}
		return nil
	})
	if err != nil {
		log.Warn("dropping purchase order", "error", err)
		return
	}
	log.Info("request sent to purchasing", "supplier", sent.Supplier)
	e.emit(ctx, sentToPurchasingNotification(sent))

	e.Purchasing.OnStage(po.Number, func(ev StageEvent) {
		e.applyStage(ctx, r.ID, ev)
	})
}

// applyStage merges one staged update into the current stored request.
func (e *Engine) applyStage(ctx context.Context, id RequestID, ev StageEvent) {
	log := e.logger().With("request_id", id, "order_number", ev.OrderNumber, "stage", ev.Stage)

	action, ok := ev.Stage.action()
	if !ok {
		log.Warn("dropping unknown stage")
		return
	}
	at := ev.At
	if at.IsZero() {
		at = e.now()
	}

	updated, err := e.Store.Update(ctx, id, func(cur *PurchaseRequest) error {
		if cur.PurchaseOrderNumber != ev.OrderNumber {
			return errStaleOrder
		}
		if err := cur.apply(action, PurchasingActor, ev.Note, at); err != nil {
			return err
		}
		cur.PurchaseStage = ev.Stage
		if ev.Supplier != "" {
			cur.Supplier = ev.Supplier
		}
		if ev.Stage == StageProductReceived {
			d := at
			cur.DeliveryDate = &d
		}
		return nil
	})
	if err != nil {
		log.Warn("dropping staged update", "error", err)
		return
	}

	log.Info("stage applied", "status", updated.Status)
	if n, ok := stageNotification(updated, ev.Stage); ok {
		e.emit(ctx, n)
	}
}

// Unify puts every similar open request on hold in favour of id and links
// them on the target. The target keeps its status.
func (e *Engine) Unify(ctx context.Context, actor Actor, id RequestID) (*UnifyResult, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrActorRequired
	}
	target, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !target.Status.Open() {
		return nil, &TransitionError{From: target.Status, Action: ActionUnify}
	}

	candidates, err := e.Store.List(ctx, RequestFilter{ProductID: target.ProductID()})
	if err != nil {
		return nil, fmt.Errorf("unify request %s: %w", id, err)
	}

	note := fmt.Sprintf("Unified into request %s", id)
	var held []RequestID
	for _, s := range FindSimilarRequests(target, candidates) {
		_, err := e.transition(ctx, actor, s.ID, ActionUnifyHold, note, func(r *PurchaseRequest, at time.Time) {
			r.stampReview(actor, note, at)
			r.RelatedRequestIDs = appendUnique(r.RelatedRequestIDs, id)
		})
		if err != nil {
			e.logger().Warn("skipping request during unify", "request_id", s.ID, "target_id", id, "error", err)
			continue
		}
		held = append(held, s.ID)
	}

	updated, err := e.Store.Update(ctx, id, func(r *PurchaseRequest) error {
		r.RelatedRequestIDs = appendUnique(r.RelatedRequestIDs, held...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unify request %s: %w", id, err)
	}

	if len(held) > 0 {
		e.emit(ctx, unifiedNotification(updated, held))
	}
	return &UnifyResult{Request: updated, Held: held}, nil
}

func shortID(id string) string {
	id = strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func appendUnique(ids []RequestID, add ...RequestID) []RequestID {
	seen := make(map[RequestID]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range add {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// =============================================================================
// STOCK-DRIVEN COMMANDS
// =============================================================================

// VerifyStock computes the stock picture of a request against the ledger.
func (e *Engine) VerifyStock(ctx context.Context, id RequestID) (StockVerification, error) {
	r, err := e.Store.Get(ctx, id)
	if err != nil {
		return StockVerification{}, err
	}
	return e.verify(ctx, r)
}

func (e *Engine) verify(ctx context.Context, r *PurchaseRequest) (StockVerification, error) {
	var products []Product
	if e.Products != nil {
		var err error
		if products, err = e.Products.ListProducts(ctx); err != nil {
			return StockVerification{}, fmt.Errorf("list products: %w", err)
		}
	}
	v := e.Resolver.Verify(r, products)
	if v.Fallback {
		e.logger().Debug("product not in ledger, using assumed stock",
			"request_id", r.ID, "assumed_stock", e.Resolver.AssumedStock)
	}
	return v, nil
}

// GenerateOutboundOrder fulfills the request from the primary warehouse and
// closes it. The product ledger is not decremented.
func (e *Engine) GenerateOutboundOrder(ctx context.Context, actor Actor, id RequestID) (*OutboundOrder, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrActorRequired
	}
	r, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := e.verify(ctx, r)
	if err != nil {
		return nil, err
	}
	if !v.Sufficient {
		return nil, fmt.Errorf("outbound order for %s: missing %d units: %w", id, v.Missing, ErrInsufficientStock)
	}

	number := "OS-" + shortID(e.newID())
	note := "Outbound order " + number
	updated, err := e.transition(ctx, actor, id, ActionFulfillInternally, note, func(r *PurchaseRequest, at time.Time) {
		r.OutboundOrderNumber = number
		d := at
		r.DeliveryDate = &d
		r.stampReview(actor, note, at)
	})
	if err != nil {
		return nil, err
	}
	e.emit(ctx, outboundNotification(updated))

	return &OutboundOrder{
		Number:      number,
		RequestID:   updated.ID,
		Source:      e.Resolver.PrimaryWarehouse,
		Destination: updated.Warehouse,
		Product:     updated.Product,
		Quantity:    updated.Quantity,
		Items:       GroupItemsByProductAndPrice(updated.Items),
		CreatedBy:   actor.ID,
		CreatedAt:   *updated.DeliveryDate,
	}, nil
}

// GenerateExternalPurchaseOrder records the shortfall on the request.
// Estimated cost is the missing quantity times the first item's unit price.
func (e *Engine) GenerateExternalPurchaseOrder(ctx context.Context, actor Actor, id RequestID) (*PurchaseRequest, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrActorRequired
	}
	r, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := e.verify(ctx, r)
	if err != nil {
		return nil, err
	}
	if v.Sufficient {
		return nil, fmt.Errorf("external order for %s: %w", id, ErrStockSufficient)
	}

	at := e.now()
	updated, err := e.Store.Update(ctx, id, func(cur *PurchaseRequest) error {
		if cur.Status.Terminal() {
			return &TransitionError{From: cur.Status, Action: ActionExternalOrder}
		}
		price := decimal.Zero
		if len(cur.Items) > 0 {
			price = cur.Items[0].UnitPrice
		}
		cur.ExternalOrder = &ExternalOrderDraft{
			MissingQuantity: v.Missing,
			EstimatedCost:   price.Mul(decimal.NewFromInt(int64(v.Missing))),
			CreatedBy:       actor.ID,
			CreatedAt:       at,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("external order for %s: %w", id, err)
	}
	e.emit(ctx, externalOrderNotification(updated))
	return updated, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (e *Engine) Get(ctx context.Context, id RequestID) (*PurchaseRequest, error) {
	return e.Store.Get(ctx, id)
}

// List returns matching requests, most urgent and newest first.
func (e *Engine) List(ctx context.Context, filter RequestFilter) ([]PurchaseRequest, error) {
	all, err := e.Store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return SortRequestsByUrgencyAndDate(all), nil
}

func (e *Engine) Similar(ctx context.Context, id RequestID) ([]PurchaseRequest, error) {
	target, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.ProductID() == "" {
		return nil, nil
	}
	all, err := e.Store.List(ctx, RequestFilter{ProductID: target.ProductID()})
	if err != nil {
		return nil, err
	}
	return FindSimilarRequests(target, all), nil
}

func (e *Engine) Summary(ctx context.Context, id RequestID) (RequestSummary, error) {
	target, err := e.Store.Get(ctx, id)
	if err != nil {
		return RequestSummary{}, err
	}
	var all []PurchaseRequest
	if target.ProductID() != "" {
		if all, err = e.Store.List(ctx, RequestFilter{ProductID: target.ProductID()}); err != nil {
			return RequestSummary{}, err
		}
	}
	return Summarize(target, all), nil
}
