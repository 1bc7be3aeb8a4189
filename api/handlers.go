/*
handlers.go - HTTP API handlers for the procurement engine

PURPOSE:
  Exposes the purchase request lifecycle via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the Engine.

ENDPOINTS:
  Requests:
    GET    /api/requests                     List (most urgent, newest first)
    POST   /api/requests                     Create (or save draft with "draft": true)
    GET    /api/requests/{id}                Get with history
    PUT    /api/requests/{id}                Edit a draft
    DELETE /api/requests/{id}                Delete (draft/observed only)

  Commands:
    POST   /api/requests/{id}/submit|approve|reject|observe|hold|resume
    POST   /api/requests/{id}/urgent|correction|resubmit|cancel|unify

  Stock:
    GET    /api/requests/{id}/stock          Stock verification
    POST   /api/requests/{id}/outbound-order Fulfil from the primary warehouse
    POST   /api/requests/{id}/external-order Record the shortfall

  Derived:
    GET    /api/requests/{id}/similar        Similar open requests
    GET    /api/requests/{id}/summary        Total, classification, similar
    POST   /api/items/preview                Validate, total and group items

  Catalogue and notifications:
    GET    /api/products
    GET    /api/notifications
    POST   /api/notifications/{id}/read

CURRENT USER:
  Taken from X-User-ID and X-User-Name. Commands without X-User-ID fail
  with 400.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, missing user
  - 404: Request or notification not found
  - 409: Transition not allowed, not deletable, duplicate
  - 422: Notes missing, stock does not allow the order
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/procurement-engine/procurement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine        *procurement.Engine
	Notifications procurement.NotificationLog
	Logger        *slog.Logger
}

// NewHandler creates a new handler around engine. notifications may be nil
// when no notification log is configured.
func NewHandler(engine *procurement.Engine, notifications procurement.NotificationLog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Engine: engine, Notifications: notifications, Logger: logger}
}

func actorFrom(r *http.Request) procurement.Actor {
	return procurement.Actor{
		ID:   strings.TrimSpace(r.Header.Get("X-User-ID")),
		Name: strings.TrimSpace(r.Header.Get("X-User-Name")),
	}
}

func requestID(r *http.Request) procurement.RequestID {
	return procurement.RequestID(chi.URLParam(r, "id"))
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// =============================================================================
// REQUEST ENDPOINTS
// =============================================================================

// ListRequests supports ?status=a,b&warehouse=&product=&requested_by=.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := procurement.RequestFilter{
		WarehouseID: procurement.WarehouseID(q.Get("warehouse")),
		ProductID:   procurement.ProductID(q.Get("product")),
		RequestedBy: q.Get("requested_by"),
	}
	if s := q.Get("status"); s != "" {
		for _, st := range strings.Split(s, ",") {
			status := procurement.Status(strings.TrimSpace(st))
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "Unknown status", errors.New(st))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	requests, err := h.Engine.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body RequestInputDTO
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var (
		created *procurement.PurchaseRequest
		err     error
	)
	if body.Draft {
		created, err = h.Engine.SaveDraft(r.Context(), actorFrom(r), body.toInput())
	} else {
		created, err = h.Engine.Create(r.Context(), actorFrom(r), body.toInput())
	}
	if err != nil {
		h.fail(w, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Engine.Get(r.Context(), requestID(r))
	if err != nil {
		h.fail(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var body RequestInputDTO
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.Engine.UpdateDraft(r.Context(), actorFrom(r), requestID(r), body.toInput())
	if err != nil {
		h.fail(w, "Failed to edit request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Delete(r.Context(), actorFrom(r), requestID(r)); err != nil {
		h.fail(w, "Failed to delete request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// COMMAND ENDPOINTS
// =============================================================================

type noteCommand func(e *procurement.Engine, r *http.Request, actor procurement.Actor, id procurement.RequestID, notes string) (*procurement.PurchaseRequest, error)

// command builds a handler for a command that takes optional notes.
func (h *Handler) command(message string, run noteCommand) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body NotesDTO
		if err := decode(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		notes := body.Notes
		if notes == "" {
			notes = body.Reason
		}
		updated, err := run(h.Engine, r, actorFrom(r), requestID(r), notes)
		if err != nil {
			h.fail(w, message, err)
			return
		}
		writeJSON(w, http.StatusOK, toRequestDTO(updated))
	}
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to submit request", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, _ string) (*procurement.PurchaseRequest, error) {
		return e.Submit(r.Context(), a, id)
	})(w, r)
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to approve request", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, notes string) (*procurement.PurchaseRequest, error) {
		return e.Approve(r.Context(), a, id, notes)
	})(w, r)
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to reject request", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, notes string) (*procurement.PurchaseRequest, error) {
		return e.Reject(r.Context(), a, id, notes)
	})(w, r)
}

func (h *Handler) ObserveRequest(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to observe request", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, notes string) (*procurement.PurchaseRequest, error) {
		return e.Observe(r.Context(), a, id, notes)
	})(w, r)
}

func (h *Handler) HoldRequest(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to hold request", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, notes string) (*procurement.PurchaseRequest, error) {
		return e.Hold(r.Context(), a, id, notes)
	})(w, r)
}

func (h *Handler) ResumeRequest(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to resume request", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, notes string) (*procurement.PurchaseRequest, error) {
		return e.Resume(r.Context(), a, id, notes)
	})(w, r)
}

func (h *Handler) MarkUrgent(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to mark request urgent", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, _ string) (*procurement.PurchaseRequest, error) {
		return e.MarkUrgent(r.Context(), a, id)
	})(w, r)
}

func (h *Handler) StartCorrection(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to start correction", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, _ string) (*procurement.PurchaseRequest, error) {
		return e.StartCorrection(r.Context(), a, id)
	})(w, r)
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.command("Failed to cancel request", func(e *procurement.Engine, r *http.Request, a procurement.Actor, id procurement.RequestID, reason string) (*procurement.PurchaseRequest, error) {
		return e.Cancel(r.Context(), a, id, reason)
	})(w, r)
}

func (h *Handler) ResubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body RequestInputDTO
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.Engine.Resubmit(r.Context(), actorFrom(r), requestID(r), body.toInput())
	if err != nil {
		h.fail(w, "Failed to resubmit request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

func (h *Handler) UnifyRequests(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Unify(r.Context(), actorFrom(r), requestID(r))
	if err != nil {
		h.fail(w, "Failed to unify requests", err)
		return
	}
	dto := UnifyResultDTO{Request: toRequestDTO(res.Request), Held: []string{}}
	for _, id := range res.Held {
		dto.Held = append(dto.Held, string(id))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// STOCK ENDPOINTS
// =============================================================================

func (h *Handler) VerifyStock(w http.ResponseWriter, r *http.Request) {
	v, err := h.Engine.VerifyStock(r.Context(), requestID(r))
	if err != nil {
		h.fail(w, "Failed to verify stock", err)
		return
	}
	writeJSON(w, http.StatusOK, toStockDTO(v))
}

func (h *Handler) GenerateOutboundOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Engine.GenerateOutboundOrder(r.Context(), actorFrom(r), requestID(r))
	if err != nil {
		h.fail(w, "Failed to generate outbound order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutboundDTO(order))
}

func (h *Handler) GenerateExternalOrder(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Engine.GenerateExternalPurchaseOrder(r.Context(), actorFrom(r), requestID(r))
	if err != nil {
		h.fail(w, "Failed to generate external purchase order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(updated))
}

// =============================================================================
// DERIVED ENDPOINTS
// =============================================================================

func (h *Handler) SimilarRequests(w http.ResponseWriter, r *http.Request) {
	similar, err := h.Engine.Similar(r.Context(), requestID(r))
	if err != nil {
		h.fail(w, "Failed to find similar requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(similar))
}

func (h *Handler) RequestSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Summary(r.Context(), requestID(r))
	if err != nil {
		h.fail(w, "Failed to summarize request", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

// PreviewItems runs the item ledger on a draft list without storing anything.
func (h *Handler) PreviewItems(w http.ResponseWriter, r *http.Request) {
	var body ItemsPreviewDTO
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	items := body.Items
	for i := range items {
		items = procurement.UpdateItem(items, i, procurement.ItemPatch{})
		items[i].Number = i + 1
	}
	valid, problems := procurement.ValidateItems(items)
	if problems == nil {
		problems = []string{}
	}
	if items == nil {
		items = []procurement.LineItem{}
	}
	writeJSON(w, http.StatusOK, ItemsPreviewResponse{
		Valid:   valid,
		Errors:  problems,
		Items:   items,
		Grouped: procurement.GroupItemsByProductAndPrice(items),
		Total:   procurement.CalculateItemsTotal(items),
	})
}

// =============================================================================
// CATALOGUE & NOTIFICATIONS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	dtos := []ProductDTO{}
	if h.Engine.Products != nil {
		products, err := h.Engine.Products.ListProducts(r.Context())
		if err != nil {
			h.fail(w, "Failed to list products", err)
			return
		}
		for _, p := range products {
			dtos = append(dtos, toProductDTO(p))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListNotifications supports ?unread=true&warehouse=&limit=.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if h.Notifications == nil {
		writeJSON(w, http.StatusOK, []procurement.Notification{})
		return
	}
	q := r.URL.Query()
	filter := procurement.NotificationFilter{
		UnreadOnly:  q.Get("unread") == "true",
		WarehouseID: procurement.WarehouseID(q.Get("warehouse")),
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	list, err := h.Notifications.ListNotifications(r.Context(), filter)
	if err != nil {
		h.fail(w, "Failed to list notifications", err)
		return
	}
	if list == nil {
		list = []procurement.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if h.Notifications == nil {
		writeError(w, http.StatusNotFound, "Notification not found", procurement.ErrNotificationNotFound)
		return
	}
	if err := h.Notifications.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "Failed to mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps engine errors to HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status, code := classify(err)
	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}

	var verr *procurement.ValidationError
	if errors.As(err, &verr) {
		resp.Details = verr.Problems
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, "error", err)
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case procurement.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, procurement.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, procurement.ErrActorRequired):
		return http.StatusBadRequest, "user_required"
	case errors.Is(err, procurement.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, procurement.ErrNotDeletable):
		return http.StatusConflict, "not_deletable"
	case errors.Is(err, procurement.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, procurement.ErrNotesRequired):
		return http.StatusUnprocessableEntity, "notes_required"
	case errors.Is(err, procurement.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, "insufficient_stock"
	case errors.Is(err, procurement.ErrStockSufficient):
		return http.StatusUnprocessableEntity, "stock_sufficient"
	}
	return http.StatusInternalServerError, "internal"
}
