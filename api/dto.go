package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/procurement-engine/procurement"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// RequestInputDTO is the body of create, draft edit and resubmit.
type RequestInputDTO struct {
	Product           *procurement.ProductRef `json:"product,omitempty"`
	Quantity          int                     `json:"quantity,omitempty"`
	Items             []procurement.LineItem  `json:"items,omitempty"`
	WarehouseID       string                  `json:"warehouse_id"`
	WarehouseName     string                  `json:"warehouse_name,omitempty"`
	Reason            string                  `json:"reason"`
	Urgency           string                  `json:"urgency,omitempty"`
	Observations      string                  `json:"observations,omitempty"`
	EstimatedPrice    decimal.Decimal         `json:"estimated_price"`
	Supplier          string                  `json:"supplier,omitempty"`
	EstimatedDelivery string                  `json:"estimated_delivery,omitempty"`
	// Draft stores the request without validation instead of submitting it.
	Draft bool `json:"draft,omitempty"`
}

func (d RequestInputDTO) toInput() procurement.RequestInput {
	return procurement.RequestInput{
		Product:  d.Product,
		Quantity: d.Quantity,
		Items:    d.Items,
		Warehouse: procurement.WarehouseRef{
			ID:   procurement.WarehouseID(d.WarehouseID),
			Name: d.WarehouseName,
		},
		Reason:            d.Reason,
		Urgency:           procurement.Urgency(d.Urgency),
		Observations:      d.Observations,
		EstimatedPrice:    d.EstimatedPrice,
		Supplier:          d.Supplier,
		EstimatedDelivery: d.EstimatedDelivery,
	}
}

// NotesDTO carries review notes or a cancellation reason.
type NotesDTO struct {
	Notes  string `json:"notes,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type ItemsPreviewDTO struct {
	Items []procurement.LineItem `json:"items"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type HistoryDTO struct {
	At        time.Time `json:"at"`
	Action    string    `json:"action"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

type ExternalOrderDTO struct {
	MissingQuantity int             `json:"missing_quantity"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

type RequestDTO struct {
	ID                  string                   `json:"id"`
	Product             *procurement.ProductRef  `json:"product,omitempty"`
	Quantity            int                      `json:"quantity"`
	Items               []procurement.LineItem   `json:"items"`
	Warehouse           procurement.WarehouseRef `json:"warehouse"`
	Reason              string                   `json:"reason"`
	Urgency             string                   `json:"urgency"`
	Observations        string                   `json:"observations,omitempty"`
	EstimatedPrice      decimal.Decimal          `json:"estimated_price"`
	Supplier            string                   `json:"supplier,omitempty"`
	EstimatedDelivery   string                   `json:"estimated_delivery,omitempty"`
	PurchaseOrderNumber string                   `json:"purchase_order_number,omitempty"`
	PurchaseStage       string                   `json:"purchase_stage,omitempty"`
	DeliveryDate        *time.Time               `json:"delivery_date,omitempty"`
	OutboundOrderNumber string                   `json:"outbound_order_number,omitempty"`
	ExternalOrder       *ExternalOrderDTO        `json:"external_order,omitempty"`
	CancellationReason  string                   `json:"cancellation_reason,omitempty"`
	Status              string                   `json:"status"`
	RequestedBy         string                   `json:"requested_by"`
	RequesterName       string                   `json:"requester_name,omitempty"`
	RequestedAt         time.Time                `json:"requested_at"`
	ReviewedBy          string                   `json:"reviewed_by,omitempty"`
	ReviewerName        string                   `json:"reviewer_name,omitempty"`
	ReviewedAt          *time.Time               `json:"reviewed_at,omitempty"`
	ReviewNotes         string                   `json:"review_notes,omitempty"`
	RelatedRequestIDs   []string                 `json:"related_request_ids,omitempty"`
	Total               decimal.Decimal          `json:"total"`
	Classification      string                   `json:"classification"`
	Deletable           bool                     `json:"deletable"`
	History             []HistoryDTO             `json:"history,omitempty"`
}

type WarehouseStockDTO struct {
	ProductID     string `json:"product_id"`
	WarehouseID   string `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name,omitempty"`
	Stock         int    `json:"stock"`
}

type StockVerificationDTO struct {
	RequestID        string              `json:"request_id"`
	Requested        int                 `json:"requested"`
	PrimaryAvailable int                 `json:"primary_available"`
	SubWarehouses    []WarehouseStockDTO `json:"sub_warehouses"`
	Sufficient       bool                `json:"sufficient"`
	Missing          int                 `json:"missing"`
	Percentage       float64             `json:"percentage"`
	MatchedBy        string              `json:"matched_by,omitempty"`
	MatchedProductID string              `json:"matched_product_id,omitempty"`
	Candidates       []string            `json:"candidates,omitempty"`
	Ambiguous        bool                `json:"ambiguous"`
	Fallback         bool                `json:"fallback"`
}

type SummaryDTO struct {
	RequestID      string          `json:"request_id"`
	Total          decimal.Decimal `json:"total"`
	Classification string          `json:"classification"`
	Similar        []string        `json:"similar"`
	Deletable      bool            `json:"deletable"`
}

type OutboundOrderDTO struct {
	Number      string                   `json:"number"`
	RequestID   string                   `json:"request_id"`
	Source      string                   `json:"source_warehouse_id"`
	Destination procurement.WarehouseRef `json:"destination"`
	Product     *procurement.ProductRef  `json:"product,omitempty"`
	Quantity    int                      `json:"quantity"`
	Items       []procurement.LineItem   `json:"items"`
	CreatedBy   string                   `json:"created_by"`
	CreatedAt   time.Time                `json:"created_at"`
}

type UnifyResultDTO struct {
	Request RequestDTO `json:"request"`
	Held    []string   `json:"held"`
}

type ItemsPreviewResponse struct {
	Valid   bool                   `json:"valid"`
	Errors  []string               `json:"errors"`
	Items   []procurement.LineItem `json:"items"`
	Grouped []procurement.LineItem `json:"grouped"`
	Total   decimal.Decimal        `json:"total"`
}

type ProductDTO struct {
	ID            string `json:"id"`
	Code          string `json:"code,omitempty"`
	Name          string `json:"name"`
	WarehouseID   string `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name,omitempty"`
	Stock         int    `json:"stock"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRequestDTO(r *procurement.PurchaseRequest) RequestDTO {
	dto := RequestDTO{
		ID:                  string(r.ID),
		Product:             r.Product,
		Quantity:            r.Quantity,
		Items:               r.Items,
		Warehouse:           r.Warehouse,
		Reason:              r.Reason,
		Urgency:             string(r.Urgency),
		Observations:        r.Observations,
		EstimatedPrice:      r.EstimatedPrice,
		Supplier:            r.Supplier,
		EstimatedDelivery:   r.EstimatedDelivery,
		PurchaseOrderNumber: r.PurchaseOrderNumber,
		PurchaseStage:       string(r.PurchaseStage),
		DeliveryDate:        r.DeliveryDate,
		OutboundOrderNumber: r.OutboundOrderNumber,
		CancellationReason:  r.CancellationReason,
		Status:              string(r.Status),
		RequestedBy:         r.RequestedBy,
		RequesterName:       r.RequesterName,
		RequestedAt:         r.RequestedAt,
		ReviewedBy:          r.ReviewedBy,
		ReviewerName:        r.ReviewerName,
		ReviewedAt:          r.ReviewedAt,
		ReviewNotes:         r.ReviewNotes,
		Total:               procurement.CalculateRequestTotal(r),
		Classification:      string(procurement.ClassifyRequest(r)),
		Deletable:           procurement.CanDelete(r),
	}
	if dto.Items == nil {
		dto.Items = []procurement.LineItem{}
	}
	if r.ExternalOrder != nil {
		dto.ExternalOrder = &ExternalOrderDTO{
			MissingQuantity: r.ExternalOrder.MissingQuantity,
			EstimatedCost:   r.ExternalOrder.EstimatedCost,
			CreatedBy:       r.ExternalOrder.CreatedBy,
			CreatedAt:       r.ExternalOrder.CreatedAt,
		}
	}
	for _, id := range r.RelatedRequestIDs {
		dto.RelatedRequestIDs = append(dto.RelatedRequestIDs, string(id))
	}
	for _, h := range r.History {
		dto.History = append(dto.History, HistoryDTO{
			At:        h.At,
			Action:    string(h.Action),
			From:      string(h.From),
			To:        string(h.To),
			ActorID:   h.ActorID,
			ActorName: h.ActorName,
			Notes:     h.Notes,
		})
	}
	return dto
}

func toRequestDTOs(rs []procurement.PurchaseRequest) []RequestDTO {
	out := make([]RequestDTO, len(rs))
	for i := range rs {
		out[i] = toRequestDTO(&rs[i])
	}
	return out
}

func toStockDTO(v procurement.StockVerification) StockVerificationDTO {
	dto := StockVerificationDTO{
		RequestID:        string(v.RequestID),
		Requested:        v.Requested,
		PrimaryAvailable: v.PrimaryAvailable,
		SubWarehouses:    []WarehouseStockDTO{},
		Sufficient:       v.Sufficient,
		Missing:          v.Missing,
		Percentage:       v.Percentage,
		MatchedBy:        string(v.Match.By),
		Ambiguous:        v.Match.Ambiguous(),
		Fallback:         v.Fallback,
	}
	if v.Match.Found() {
		dto.MatchedProductID = string(v.Match.Product.ID)
	}
	for _, c := range v.Match.Candidates {
		dto.Candidates = append(dto.Candidates, string(c.ID))
	}
	for _, s := range v.SubWarehouses {
		dto.SubWarehouses = append(dto.SubWarehouses, WarehouseStockDTO{
			ProductID:     string(s.ProductID),
			WarehouseID:   string(s.WarehouseID),
			WarehouseName: s.WarehouseName,
			Stock:         s.Stock,
		})
	}
	return dto
}

func toSummaryDTO(s procurement.RequestSummary) SummaryDTO {
	dto := SummaryDTO{
		RequestID:      string(s.RequestID),
		Total:          s.Total,
		Classification: string(s.Classification),
		Similar:        []string{},
		Deletable:      s.Deletable,
	}
	for _, id := range s.Similar {
		dto.Similar = append(dto.Similar, string(id))
	}
	return dto
}

func toOutboundDTO(o *procurement.OutboundOrder) OutboundOrderDTO {
	return OutboundOrderDTO{
		Number:      o.Number,
		RequestID:   string(o.RequestID),
		Source:      string(o.Source),
		Destination: o.Destination,
		Product:     o.Product,
		Quantity:    o.Quantity,
		Items:       o.Items,
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
	}
}

func toProductDTO(p procurement.Product) ProductDTO {
	return ProductDTO{
		ID:            string(p.ID),
		Code:          p.Code,
		Name:          p.Name,
		WarehouseID:   string(p.WarehouseID),
		WarehouseName: p.WarehouseName,
		Stock:         p.Stock,
	}
}
