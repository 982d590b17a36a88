package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/icellshop/labelbox/internal/models"
)

// UpsertTracking inserts or fully replaces the tracking row keyed by
// tracking_code. Conflict resolution happens inside postgres, so a
// label-purchase retry and a webhook delivery racing on the same code can
// never produce duplicate rows; commit order decides the final field values.
func (s *Storage) UpsertTracking(ctx context.Context, in models.TrackingUpsert) (*models.Tracking, error) {
	if in.TrackingCode == "" {
		return nil, errors.New("tracking_code is required")
	}

	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO trackings (
  tracking_code, order_id, status, status_detail, carrier, carrier_service,
  shipment_id, public_url, signed_by, is_return, finalized, est_delivery_date,
  weight, carrier_origin, carrier_destination, tracking_details,
  shipment_cost, shipment_currency, direction, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$20)
ON CONFLICT (tracking_code) DO UPDATE SET
  order_id = EXCLUDED.order_id,
  status = EXCLUDED.status,
  status_detail = EXCLUDED.status_detail,
  carrier = EXCLUDED.carrier,
  carrier_service = EXCLUDED.carrier_service,
  shipment_id = EXCLUDED.shipment_id,
  public_url = EXCLUDED.public_url,
  signed_by = EXCLUDED.signed_by,
  is_return = EXCLUDED.is_return,
  finalized = EXCLUDED.finalized,
  est_delivery_date = EXCLUDED.est_delivery_date,
  weight = EXCLUDED.weight,
  carrier_origin = EXCLUDED.carrier_origin,
  carrier_destination = EXCLUDED.carrier_destination,
  tracking_details = EXCLUDED.tracking_details,
  shipment_cost = EXCLUDED.shipment_cost,
  shipment_currency = EXCLUDED.shipment_currency,
  direction = EXCLUDED.direction,
  updated_at = now()
RETURNING
  id, tracking_code, order_id, status, status_detail, carrier, carrier_service,
  shipment_id, public_url, signed_by, is_return, finalized, est_delivery_date,
  weight, carrier_origin, carrier_destination, tracking_details,
  shipment_cost, shipment_currency, direction, created_at, updated_at
`,
		in.TrackingCode, in.OrderID, in.Status, in.StatusDetail, in.Carrier, in.CarrierService,
		in.ShipmentID, in.PublicURL, in.SignedBy, in.IsReturn, in.Finalized, in.EstDeliveryDate,
		in.Weight, in.CarrierOrigin, in.CarrierDestination, in.TrackingDetails,
		in.ShipmentCost, in.ShipmentCurrency, in.Direction, now,
	)

	t, err := scanTracking(row)
	if err != nil {
		return nil, errors.Wrap(err, "upsert tracking")
	}
	return t, nil
}

func (s *Storage) GetTrackingByCode(ctx context.Context, trackingCode string) (*models.Tracking, error) {
	row := s.db.QueryRow(ctx, `
SELECT
  id, tracking_code, order_id, status, status_detail, carrier, carrier_service,
  shipment_id, public_url, signed_by, is_return, finalized, est_delivery_date,
  weight, carrier_origin, carrier_destination, tracking_details,
  shipment_cost, shipment_currency, direction, created_at, updated_at
FROM trackings
WHERE tracking_code = $1
`, trackingCode)

	t, err := scanTracking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking")
	}
	return t, nil
}

func scanTracking(row pgx.Row) (*models.Tracking, error) {
	var t models.Tracking
	err := row.Scan(
		&t.ID, &t.TrackingCode, &t.OrderID, &t.Status, &t.StatusDetail, &t.Carrier, &t.CarrierService,
		&t.ShipmentID, &t.PublicURL, &t.SignedBy, &t.IsReturn, &t.Finalized, &t.EstDeliveryDate,
		&t.Weight, &t.CarrierOrigin, &t.CarrierDestination, &t.TrackingDetails,
		&t.ShipmentCost, &t.ShipmentCurrency, &t.Direction, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
