package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order lifecycle labels. The column is free-form text; these are the values
// this service writes itself.
const (
	OrderStatusAwaitingShipment = "awaiting_shipment"
	OrderStatusShipped          = "shipped"
	OrderStatusReceived         = "received"
)

type Order struct {
	ID             uint64     `json:"id"`
	OfferHistoryID *int64     `json:"offer_history_id"`
	Status         string     `json:"status"`
	TrackingCode   *string    `json:"tracking_code"`
	LabelURL       *string    `json:"label_url"`
	ShippedAt      *time.Time `json:"shipped_at"`
	ReceivedAt     *time.Time `json:"received_at"`

	// Derived: always the sum of shipment_cost over the order's trackings.
	// Written only by RecomputeShippingCost, never authored directly.
	TotalShippingCost decimal.Decimal `json:"total_shipping_cost"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
