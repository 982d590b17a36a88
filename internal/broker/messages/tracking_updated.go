package messages

import (
	"time"

	"github.com/shopspring/decimal"
)

const TopicTrackingUpdated = "tracking.updated"

// Event sources for TrackingUpdated.
const (
	SourceLabelPurchase = "label_purchase"
	SourceWebhook       = "webhook"
)

// TrackingUpdated is published to kafka after every tracking upsert. Keyed by
// tracking_code so updates for one shipment stay ordered within a partition.
type TrackingUpdated struct {
	TrackingCode string  `json:"tracking_code"`
	OrderID      *uint64 `json:"order_id,omitempty"`

	Status       string `json:"status,omitempty"`
	StatusDetail string `json:"status_detail,omitempty"`
	Carrier      string `json:"carrier,omitempty"`

	ShipmentCost     *decimal.Decimal `json:"shipment_cost,omitempty"`
	ShipmentCurrency string           `json:"shipment_currency,omitempty"`

	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}
