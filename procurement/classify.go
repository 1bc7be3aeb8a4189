package procurement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST CLASSIFIER & SIMILARITY FINDER
// =============================================================================

// Classification splits requests by value for review routing.
type Classification string

const (
	ClassMajor Classification = "major"
	ClassMinor Classification = "minor"
)

// MajorPurchaseThreshold is the total at or above which a request is major.
var MajorPurchaseThreshold = decimal.NewFromInt(1000)

// CalculateRequestTotal sums item subtotals, or falls back to
// EstimatedPrice * Quantity for requests without items.
func CalculateRequestTotal(r *PurchaseRequest) decimal.Decimal {
	if len(r.Items) > 0 {
		return CalculateItemsTotal(r.Items)
	}
	return r.EstimatedPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

func ClassifyRequest(r *PurchaseRequest) Classification {
	if CalculateRequestTotal(r).GreaterThanOrEqual(MajorPurchaseThreshold) {
		return ClassMajor
	}
	return ClassMinor
}

// CanDelete is true only before a request has really entered review.
func CanDelete(r *PurchaseRequest) bool {
	return r.Status == StatusDraft || r.Status == StatusObserved
}

// SortRequestsByUrgencyAndDate returns a copy ordered by urgency rank
// (urgent first) and, within the same urgency, newest request first.
func SortRequestsByUrgencyAndDate(requests []PurchaseRequest) []PurchaseRequest {
	out := append([]PurchaseRequest(nil), requests...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Urgency.Rank(), out[j].Urgency.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out
}

// FindSimilarRequests returns the other open requests for the same
// product. Ad-hoc requests without a product id have no similar requests.
func FindSimilarRequests(target *PurchaseRequest, all []PurchaseRequest) []PurchaseRequest {
	pid := target.ProductID()
	if pid == "" {
		return nil
	}

	var similar []PurchaseRequest
	for _, r := range all {
		if r.ID == target.ID || r.ProductID() != pid {
			continue
		}
		if r.Status.Open() {
			similar = append(similar, r)
		}
	}
	return similar
}

// RequestSummary bundles the derived values a reviewer sees for a request.
type RequestSummary struct {
	RequestID      RequestID
	Total          decimal.Decimal
	Classification Classification
	Similar        []RequestID
	Deletable      bool
}

func Summarize(r *PurchaseRequest, all []PurchaseRequest) RequestSummary {
	s := RequestSummary{
		RequestID:      r.ID,
		Total:          CalculateRequestTotal(r),
		Classification: ClassifyRequest(r),
		Deletable:      CanDelete(r),
	}
	for _, sim := range FindSimilarRequests(r, all) {
		s.Similar = append(s.Similar, sim.ID)
	}
	return s
}
