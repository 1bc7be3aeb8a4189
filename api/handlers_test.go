/*
handlers_test.go - HTTP tests for the procurement API

Tests for:
- Request creation, validation and missing user handling
- Error status mapping (404, 409, 422)
- Listing with status filters
- Stock verification and outbound orders
- Item preview
- Notification listing and read marking
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/procurement-engine/procurement"
	"github.com/warp/procurement-engine/procurement/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	router        *chi.Mux
	notifications *store.Notifications
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	notifications := store.NewNotifications()
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	seq := 0
	engine := &procurement.Engine{
		Store: store.NewMemory(),
		Products: store.NewProducts(
			procurement.Product{ID: "p-kb-central", Code: "KB-101", Name: "Mechanical keyboard", WarehouseID: "wh-central", Stock: 40},
			procurement.Product{ID: "p-kb-north", Code: "KB-101", Name: "Mechanical keyboard", WarehouseID: "wh-north", Stock: 6},
		),
		Sink:     notifications,
		Resolver: procurement.StockResolver{PrimaryWarehouse: "wh-central", AssumedStock: procurement.DefaultAssumedStock},
		Now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%04d", seq)
		},
		Dispatch: func(f func()) { f() },
	}
	h := NewHandler(engine, notifications, nil)
	return &testAPI{router: NewRouter(h, RouterConfig{}), notifications: notifications}
}

// do sends a request as user (empty user sends no identity headers).
func (a *testAPI) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("X-User-Name", strings.ToUpper(user[:1])+user[1:])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func keyboardInput() RequestInputDTO {
	return RequestInputDTO{
		Product:        &procurement.ProductRef{ID: "p-kb-central", Code: "KB-101", Name: "Mechanical keyboard"},
		Quantity:       5,
		WarehouseID:    "wh-north",
		WarehouseName:  "North Branch",
		Reason:         "Broken units",
		Urgency:        "high",
		EstimatedPrice: decimal.RequireFromString("45.90"),
	}
}

func (a *testAPI) create(t *testing.T, in RequestInputDTO) RequestDTO {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/requests", "ana", in)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[RequestDTO](t, rec)
}

// =============================================================================
// REQUESTS
// =============================================================================

func TestCreateRequest(t *testing.T) {
	// GIVEN: A keyboard cart entry
	a := newTestAPI(t)

	// WHEN: It is posted
	created := a.create(t, keyboardInput())

	// THEN: The request is pending with a single computed line
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "ana", created.RequestedBy)
	assert.Equal(t, "Ana", created.RequesterName)
	require.Len(t, created.Items, 1)
	assert.True(t, decimal.RequireFromString("229.5").Equal(created.Total))
	assert.Equal(t, "minor", created.Classification)
	assert.False(t, created.Deletable)

	got := a.do(t, http.MethodGet, "/api/requests/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, created.ID, decodeBody[RequestDTO](t, got).ID)
}

func TestCreateRequest_ValidationDetails(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/requests", "ana", RequestInputDTO{})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", resp.Code)
	assert.Contains(t, resp.Details, "reason is required")
}

func TestCreateRequest_DraftSkipsValidation(t *testing.T) {
	a := newTestAPI(t)

	draft := a.create(t, RequestInputDTO{WarehouseID: "wh-north", Draft: true})

	assert.Equal(t, "draft", draft.Status)
	assert.True(t, draft.Deletable)

	rec := a.do(t, http.MethodDelete, "/api/requests/"+draft.ID, "ana", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateRequest_Errors(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		body   any
		status int
		code   string
	}{
		{"missing user", "", keyboardInput(), http.StatusBadRequest, "user_required"},
		{"malformed body", "ana", "{", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t)

			rec := a.do(t, http.MethodPost, "/api/requests", tt.user, tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeBody[ErrorResponse](t, rec).Code)
		})
	}
}

func TestCommands_ErrorMapping(t *testing.T) {
	// GIVEN: A pending request
	a := newTestAPI(t)
	created := a.create(t, keyboardInput())
	base := "/api/requests/" + created.ID

	// WHEN/THEN: Each refusal maps to its own status
	rec := a.do(t, http.MethodPost, base+"/reject", "boss", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "notes_required", decodeBody[ErrorResponse](t, rec).Code)

	rec = a.do(t, http.MethodPost, "/api/requests/nope/approve", "boss", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, base+"/approve", "boss", NotesDTO{Notes: "ok"})
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decodeBody[RequestDTO](t, rec)
	assert.Equal(t, "approved", approved.Status)
	assert.Equal(t, "boss", approved.ReviewedBy)
	assert.Equal(t, "ok", approved.ReviewNotes)
	require.Len(t, approved.History, 1)
	assert.Equal(t, "pending", approved.History[0].From)
	assert.Equal(t, "approved", approved.History[0].To)

	rec = a.do(t, http.MethodPost, base+"/approve", "boss", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decodeBody[ErrorResponse](t, rec).Code)

	rec = a.do(t, http.MethodDelete, base, "boss", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_deletable", decodeBody[ErrorResponse](t, rec).Code)
}

func TestCancel_AcceptsReasonField(t *testing.T) {
	a := newTestAPI(t)
	created := a.create(t, keyboardInput())

	rec := a.do(t, http.MethodPost, "/api/requests/"+created.ID+"/cancel", "ana", NotesDTO{Reason: "Bought locally"})

	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decodeBody[RequestDTO](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "Bought locally", cancelled.CancellationReason)
}

func TestListRequests_SortedAndFiltered(t *testing.T) {
	// GIVEN: A high request, then an urgent one, then a draft
	a := newTestAPI(t)
	high := a.create(t, keyboardInput())
	in := keyboardInput()
	in.Urgency = "urgent"
	urgent := a.create(t, in)
	a.create(t, RequestInputDTO{WarehouseID: "wh-north", Draft: true})

	// WHEN: Listing pending and urgent ones
	rec := a.do(t, http.MethodGet, "/api/requests?status=pending,urgent", "", nil)

	// THEN: The urgent request comes first and the draft is excluded
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]RequestDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, urgent.ID, list[0].ID)
	assert.Equal(t, high.ID, list[1].ID)

	rec = a.do(t, http.MethodGet, "/api/requests?status=lost", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STOCK
// =============================================================================

func TestStockAndOutboundOrder(t *testing.T) {
	// GIVEN: A request for 5 keyboards with 40 in the primary warehouse
	a := newTestAPI(t)
	created := a.create(t, keyboardInput())
	base := "/api/requests/" + created.ID

	// WHEN: Stock is verified
	rec := a.do(t, http.MethodGet, base+"/stock", "", nil)

	// THEN: It is sufficient and the north branch shows as a sub-warehouse
	require.Equal(t, http.StatusOK, rec.Code)
	stock := decodeBody[StockVerificationDTO](t, rec)
	assert.True(t, stock.Sufficient)
	assert.Equal(t, 40, stock.PrimaryAvailable)
	assert.Equal(t, "id", stock.MatchedBy)
	require.Len(t, stock.SubWarehouses, 1)
	assert.Equal(t, "wh-north", stock.SubWarehouses[0].WarehouseID)

	// WHEN: The outbound order is generated
	rec = a.do(t, http.MethodPost, base+"/outbound-order", "boss", nil)

	// THEN: It ships from the primary warehouse and an external order is refused
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[OutboundOrderDTO](t, rec)
	assert.Equal(t, "wh-central", order.Source)
	assert.Equal(t, 5, order.Quantity)

	rec = a.do(t, http.MethodPost, base+"/external-order", "boss", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "stock_sufficient", decodeBody[ErrorResponse](t, rec).Code)
}

func TestSummary(t *testing.T) {
	a := newTestAPI(t)
	first := a.create(t, keyboardInput())
	second := a.create(t, keyboardInput())

	rec := a.do(t, http.MethodGet, "/api/requests/"+first.ID+"/summary", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[SummaryDTO](t, rec)
	assert.Equal(t, "minor", summary.Classification)
	assert.Equal(t, []string{second.ID}, summary.Similar)
}

// =============================================================================
// ITEMS
// =============================================================================

func TestPreviewItems(t *testing.T) {
	a := newTestAPI(t)
	body := ItemsPreviewDTO{Items: []procurement.LineItem{
		{Description: "Packing tape", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")},
		{Description: "Packing tape", Quantity: 1, UnitPrice: decimal.RequireFromString("3.50")},
		{Description: "Stretch film", Quantity: 0, UnitPrice: decimal.RequireFromString("9")},
	}}

	rec := a.do(t, http.MethodPost, "/api/items/preview", "", body)

	require.Equal(t, http.StatusOK, rec.Code)
	preview := decodeBody[ItemsPreviewResponse](t, rec)
	assert.False(t, preview.Valid)
	assert.Equal(t, []string{"item 3: quantity must be greater than zero"}, preview.Errors)
	assert.Equal(t, 3, preview.Items[2].Number)
	assert.True(t, decimal.RequireFromString("7").Equal(preview.Items[0].Subtotal))
	require.Len(t, preview.Grouped, 2)
	assert.Equal(t, 3, preview.Grouped[0].Quantity)
	assert.True(t, decimal.RequireFromString("10.5").Equal(preview.Total))
}

// =============================================================================
// CATALOGUE & NOTIFICATIONS
// =============================================================================

func TestListProducts(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/products", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	products := decodeBody[[]ProductDTO](t, rec)
	require.Len(t, products, 2)
	assert.Equal(t, "p-kb-central", products[0].ID)
}

func TestNotifications_ListAndMarkRead(t *testing.T) {
	// GIVEN: Creating a request emitted one notification
	a := newTestAPI(t)
	a.create(t, keyboardInput())

	rec := a.do(t, http.MethodGet, "/api/notifications?warehouse=wh-north", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]procurement.Notification](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, procurement.NotifyCreated, list[0].Type)

	// WHEN: It is marked read
	rec = a.do(t, http.MethodPost, "/api/notifications/"+list[0].ID+"/read", "ana", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// THEN: The unread view is empty
	rec = a.do(t, http.MethodGet, "/api/notifications?unread=true", "", nil)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = a.do(t, http.MethodPost, "/api/notifications/nope/read", "ana", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/notifications?limit=many", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
