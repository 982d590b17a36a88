package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shipment direction tags. Callers may pass other values; these are the two
// the buy-back flow uses.
const (
	DirectionToICellShop    = "to_icellshop"
	DirectionReturnToSender = "return_to_sender"
)

// Carrier statuses are pass-through strings; "delivered" is the only one this
// service branches on.
const TrackingStatusDelivered = "delivered"

type Tracking struct {
	ID           uint64  `json:"id"`
	TrackingCode string  `json:"tracking_code"`
	OrderID      *uint64 `json:"order_id"`

	Status       string  `json:"status"`
	StatusDetail *string `json:"status_detail"`

	Carrier        *string `json:"carrier"`
	CarrierService *string `json:"carrier_service"`
	ShipmentID     *string `json:"shipment_id"`
	PublicURL      *string `json:"public_url"`

	SignedBy        *string    `json:"signed_by"`
	IsReturn        bool       `json:"is_return"`
	Finalized       bool       `json:"finalized"`
	EstDeliveryDate *time.Time `json:"est_delivery_date"`
	Weight          *float64   `json:"weight"`

	CarrierOrigin      *string `json:"carrier_origin"`
	CarrierDestination *string `json:"carrier_destination"`

	// Opaque carrier-defined event history, stored as-is (JSONB).
	TrackingDetails *string `json:"tracking_details"`

	ShipmentCost     *decimal.Decimal `json:"shipment_cost"`
	ShipmentCurrency *string          `json:"shipment_currency"`
	Direction        string           `json:"direction"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrackingUpsert is the full write set for a tracking row. The upsert replaces
// every mutable column on conflict: a nil here becomes NULL in the row, it
// does not preserve the prior value.
type TrackingUpsert struct {
	TrackingCode string
	OrderID      *uint64

	Status       string
	StatusDetail *string

	Carrier        *string
	CarrierService *string
	ShipmentID     *string
	PublicURL      *string

	SignedBy        *string
	IsReturn        bool
	Finalized       bool
	EstDeliveryDate *time.Time
	Weight          *float64

	CarrierOrigin      *string
	CarrierDestination *string
	TrackingDetails    *string

	ShipmentCost     *decimal.Decimal
	ShipmentCurrency *string
	Direction        string
}
