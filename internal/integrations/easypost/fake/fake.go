package fake

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/shopspring/decimal"

	"github.com/icellshop/labelbox/internal/integrations/easypost"
	"github.com/icellshop/labelbox/internal/models"
)

// FakeClient stands in for EasyPost in local runs and tests. Tracking codes
// and costs are deterministic over the address pair so retried requests see
// the same label.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) CreateShipment(ctx context.Context, to, from models.Address, parcel models.Parcel) (easypost.Shipment, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(to.Zip))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(from.Zip))
	v := h.Sum32()

	cost := decimal.NewFromInt(int64(5 + v%20)).Add(decimal.NewFromFloat(0.33))
	return easypost.Shipment{
		ID: fmt.Sprintf("shp_fake_%08x", v),
		Rates: []easypost.Rate{
			{ID: fmt.Sprintf("rate_fake_%08x", v), Carrier: "USPS", Service: "Priority", Rate: &cost, Currency: "USD"},
		},
	}, nil
}

func (f *FakeClient) BuyShipment(ctx context.Context, shipmentID string, rate easypost.Rate) (easypost.PurchasedLabel, error) {
	cur := rate.Currency
	if cur == "" {
		cur = "USD"
	}
	return easypost.PurchasedLabel{
		ShipmentID:   shipmentID,
		TrackingCode: "FAKE" + shipmentID[len(shipmentID)-8:],
		Status:       "unknown",
		LabelURL:     "https://labels.invalid/" + shipmentID + ".png",
		Carrier:      rate.Carrier,
		Service:      rate.Service,
		Cost:         rate.Rate,
		Currency:     &cur,
	}, nil
}
