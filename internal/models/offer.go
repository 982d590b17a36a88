package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer is a row of the buy-back catalog shown to sellers.
type Offer struct {
	ID          uint64          `json:"id"`
	DeviceModel string          `json:"device_model"`
	StorageGB   int             `json:"storage_gb"`
	Condition   string          `json:"condition"`
	OfferPrice  decimal.Decimal `json:"offer_price"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OfferHistory records a seller accepting a catalog offer; orders reference it.
type OfferHistory struct {
	ID        uint64    `json:"id"`
	OfferID   uint64    `json:"offer_id"`
	Email     string    `json:"email"`
	IPAddress *string   `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}
