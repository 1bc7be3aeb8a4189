package procurement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/procurement-engine/procurement"
)

var day0 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func req(id string, urgency procurement.Urgency, status procurement.Status, at time.Time) procurement.PurchaseRequest {
	return procurement.PurchaseRequest{
		ID:          procurement.RequestID(id),
		Urgency:     urgency,
		Status:      status,
		RequestedAt: at,
	}
}

func ids(rs []procurement.PurchaseRequest) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r.ID)
	}
	return out
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestClassifyRequest_ThresholdIsMajor(t *testing.T) {
	// GIVEN: Totals just below, at and above 1000
	cases := []struct {
		name string
		item procurement.LineItem
		want procurement.Classification
	}{
		{"below", item("A", "A", 1, "999.99"), procurement.ClassMinor},
		{"at threshold", item("A", "A", 4, "250.00"), procurement.ClassMajor},
		{"above", item("A", "A", 1, "2350.00"), procurement.ClassMajor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &procurement.PurchaseRequest{Items: []procurement.LineItem{tc.item}}
			assert.Equal(t, tc.want, procurement.ClassifyRequest(r))
		})
	}
}

func TestCalculateRequestTotal_SumsItems(t *testing.T) {
	r := &procurement.PurchaseRequest{Items: []procurement.LineItem{
		item("A", "A", 2, "10.00"),
		item("B", "B", 1, "5.50"),
	}}
	assert.True(t, price("25.50").Equal(procurement.CalculateRequestTotal(r)))
}

func TestCanDelete_OnlyDraftAndObserved(t *testing.T) {
	for _, s := range procurement.AllStatuses {
		r := &procurement.PurchaseRequest{Status: s}
		want := s == procurement.StatusDraft || s == procurement.StatusObserved
		assert.Equal(t, want, procurement.CanDelete(r), "status %s", s)
	}
}

// =============================================================================
// ORDERING
// =============================================================================

func TestSortRequestsByUrgencyAndDate(t *testing.T) {
	// GIVEN: Mixed urgencies, two mediums on different days
	in := []procurement.PurchaseRequest{
		req("low", procurement.UrgencyLow, procurement.StatusPending, day0.Add(5*time.Hour)),
		req("medium-old", procurement.UrgencyMedium, procurement.StatusPending, day0),
		req("urgent", procurement.UrgencyUrgent, procurement.StatusUrgent, day0),
		req("medium-new", procurement.UrgencyMedium, procurement.StatusPending, day0.Add(24*time.Hour)),
		req("high", procurement.UrgencyHigh, procurement.StatusPending, day0),
	}

	// WHEN: Sorting
	out := procurement.SortRequestsByUrgencyAndDate(in)

	// THEN: Urgency first, then newest first, input untouched
	assert.Equal(t, []string{"urgent", "high", "medium-new", "medium-old", "low"}, ids(out))
	assert.Equal(t, "low", string(in[0].ID))
}

// =============================================================================
// SIMILARITY
// =============================================================================

func TestFindSimilarRequests_SameProductOpenStatusesOnly(t *testing.T) {
	// GIVEN: Requests for the same product in several statuses
	kb := &procurement.ProductRef{ID: "p-kb"}
	target := req("target", procurement.UrgencyMedium, procurement.StatusPending, day0)
	target.Product = kb

	mk := func(id string, status procurement.Status, product *procurement.ProductRef) procurement.PurchaseRequest {
		r := req(id, procurement.UrgencyMedium, status, day0)
		r.Product = product
		return r
	}
	all := []procurement.PurchaseRequest{
		target,
		mk("pending", procurement.StatusPending, kb),
		mk("urgent", procurement.StatusUrgent, kb),
		mk("approved", procurement.StatusApproved, kb),
		mk("purchasing", procurement.StatusPurchasing, kb),
		mk("observed", procurement.StatusObserved, kb),
		mk("closed", procurement.StatusClosed, kb),
		mk("other-product", procurement.StatusPending, &procurement.ProductRef{ID: "p-mon"}),
		mk("ad-hoc", procurement.StatusPending, nil),
	}

	// WHEN: Finding similar requests
	similar := procurement.FindSimilarRequests(&target, all)

	// THEN: Only other open requests of the same product, never itself
	assert.Equal(t, []string{"pending", "urgent", "approved", "purchasing"}, ids(similar))
}

func TestFindSimilarRequests_AdHocHasNone(t *testing.T) {
	target := req("adhoc", procurement.UrgencyMedium, procurement.StatusPending, day0)
	other := req("other", procurement.UrgencyMedium, procurement.StatusPending, day0)

	assert.Empty(t, procurement.FindSimilarRequests(&target, []procurement.PurchaseRequest{target, other}))
}

func TestSummarize(t *testing.T) {
	kb := &procurement.ProductRef{ID: "p-kb"}
	target := req("target", procurement.UrgencyMedium, procurement.StatusObserved, day0)
	target.Product = kb
	target.Items = []procurement.LineItem{item("KB", "Keyboard", 30, "45.90")}
	other := req("other", procurement.UrgencyMedium, procurement.StatusPending, day0)
	other.Product = kb

	s := procurement.Summarize(&target, []procurement.PurchaseRequest{target, other})

	assert.Equal(t, procurement.ClassMajor, s.Classification)
	assert.True(t, price("1377.00").Equal(s.Total))
	assert.Equal(t, []procurement.RequestID{"other"}, s.Similar)
	assert.True(t, s.Deletable)
}
