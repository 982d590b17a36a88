package easypost

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/icellshop/labelbox/internal/models"
)

// Rate is one purchasable option returned with a shipment quote.
type Rate struct {
	ID       string
	Carrier  string
	Service  string
	Rate     *decimal.Decimal
	Currency string
}

// Shipment is the quote created before buying; Rates may be empty.
type Shipment struct {
	ID    string
	Rates []Rate
}

// PurchasedLabel is everything the reconciliation flow needs after a buy.
// The purchase is billable and irreversible on the carrier side.
type PurchasedLabel struct {
	ShipmentID   string
	TrackingCode string
	Status       string
	LabelURL     string
	Carrier      string
	Service      string
	Cost         *decimal.Decimal
	Currency     *string
}

type Client interface {
	CreateShipment(ctx context.Context, to, from models.Address, parcel models.Parcel) (Shipment, error)
	BuyShipment(ctx context.Context, shipmentID string, rate Rate) (PurchasedLabel, error)
}
