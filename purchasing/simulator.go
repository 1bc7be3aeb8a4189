/*
Package purchasing provides a simulated external purchasing system.

PURPOSE:
  Stands in for a real procurement backend. Submit answers with an order
  number, a supplier and a delivery estimate; OnStage then reports the
  fixed stage sequence for that order on a Scheduler.

TIMELINE (defaults, relative to OnStage):
  0s  Submit returns after SubmitDelay
  2s  quotation
  4s  supplier_assigned
  6s  purchasing
  8s  purchase_executed
  10s product_received

  Stage callbacks are owned by the Simulator, not by whoever approved the
  request, so they keep firing until Stop.

USAGE:
  sim := purchasing.NewSimulator(purchasing.RealScheduler{}, logger)
  engine := &procurement.Engine{Purchasing: sim, ...}
  defer sim.Stop()

SEE ALSO:
  - procurement/purchasing.go: The collaborator contract
  - scheduler.go: Real and manual schedulers
*/
package purchasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/procurement-engine/procurement"
)

var ErrStopped = errors.New("purchasing simulator stopped")

// DefaultStageDelays are offsets from OnStage for each stage in order.
var DefaultStageDelays = []time.Duration{
	2 * time.Second,
	4 * time.Second,
	6 * time.Second,
	8 * time.Second,
	10 * time.Second,
}

// DefaultSuppliers is the rotation used when none is configured.
var DefaultSuppliers = []string{
	"Distribuidora Andina",
	"Suministros del Norte",
	"Comercial Pacifico",
}

// Simulator implements procurement.PurchasingService.
type Simulator struct {
	Scheduler   Scheduler
	SubmitDelay time.Duration
	StageDelays []time.Duration
	Suppliers   []string
	LeadTime    time.Duration
	// Fail, when set, can refuse an order.
	Fail   func(procurement.OrderRequest) error
	Logger *slog.Logger

	mu      sync.Mutex
	seq     int
	orders  map[string]*order
	stopped bool
}

type order struct {
	request   procurement.OrderRequest
	supplier  string
	callbacks []procurement.StageFunc
	timers    []Timer
	started   bool
}

func NewSimulator(scheduler Scheduler, logger *slog.Logger) *Simulator {
	return &Simulator{
		Scheduler:   scheduler,
		SubmitDelay: time.Second,
		StageDelays: DefaultStageDelays,
		Suppliers:   DefaultSuppliers,
		LeadTime:    7 * 24 * time.Hour,
		Logger:      logger,
	}
}

func (s *Simulator) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Simulator) scheduler() Scheduler {
	if s.Scheduler != nil {
		return s.Scheduler
	}
	return RealScheduler{}
}

// Submit places an order after SubmitDelay.
func (s *Simulator) Submit(ctx context.Context, req procurement.OrderRequest) (procurement.PurchaseOrder, error) {
	if s.SubmitDelay > 0 {
		done := make(chan struct{})
		t := s.scheduler().AfterFunc(s.SubmitDelay, func() { close(done) })
		select {
		case <-done:
		case <-ctx.Done():
			t.Stop()
			return procurement.PurchaseOrder{}, ctx.Err()
		}
	}

	if s.Fail != nil {
		if err := s.Fail(req); err != nil {
			s.logger().Warn("purchasing refused order", "request_id", req.RequestID, "error", err)
			return procurement.PurchaseOrder{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return procurement.PurchaseOrder{}, ErrStopped
	}
	if s.orders == nil {
		s.orders = make(map[string]*order)
	}

	now := s.scheduler().Now()
	s.seq++
	number := fmt.Sprintf("OC-%s-%04d", now.Format("20060102"), s.seq)
	supplier := ""
	if len(s.Suppliers) > 0 {
		supplier = s.Suppliers[(s.seq-1)%len(s.Suppliers)]
	}
	s.orders[number] = &order{request: req, supplier: supplier}

	s.logger().Info("purchase order placed",
		"request_id", req.RequestID, "order_number", number, "supplier", supplier, "items", len(req.Items))

	return procurement.PurchaseOrder{
		Number:            number,
		Supplier:          supplier,
		EstimatedDelivery: now.Add(s.LeadTime).Format("2006-01-02"),
	}, nil
}

// OnStage registers fn for the order's stages. The first registration
// starts the stage timeline.
func (s *Simulator) OnStage(orderNumber string, fn procurement.StageFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderNumber]
	if !ok || s.stopped {
		s.logger().Warn("stage registration for unknown order", "order_number", orderNumber)
		return
	}
	o.callbacks = append(o.callbacks, fn)
	if o.started {
		return
	}
	o.started = true

	sched := s.scheduler()
	for i, stage := range procurement.StageSequence {
		if i >= len(s.StageDelays) {
			break
		}
		stage := stage
		o.timers = append(o.timers, sched.AfterFunc(s.StageDelays[i], func() {
			s.fire(orderNumber, stage)
		}))
	}
}

func (s *Simulator) fire(orderNumber string, stage procurement.Stage) {
	s.mu.Lock()
	o, ok := s.orders[orderNumber]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	callbacks := append([]procurement.StageFunc(nil), o.callbacks...)
	ev := procurement.StageEvent{
		OrderNumber: orderNumber,
		Stage:       stage,
		At:          s.scheduler().Now(),
	}
	if stage == procurement.StageSupplierAssigned {
		ev.Supplier = o.supplier
	}
	if stage == procurement.StageProductReceived {
		delete(s.orders, orderNumber)
	}
	s.mu.Unlock()

	s.logger().Debug("stage reached", "order_number", orderNumber, "stage", stage)
	for _, fn := range callbacks {
		fn(ev)
	}
}

// Stop cancels every pending stage. Later Submits fail with ErrStopped.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	pending := 0
	for _, o := range s.orders {
		for _, t := range o.timers {
			if t.Stop() {
				pending++
			}
		}
	}
	s.orders = nil
	s.logger().Info("purchasing simulator stopped", "cancelled_stages", pending)
}
