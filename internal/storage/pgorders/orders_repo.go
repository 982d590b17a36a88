package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/icellshop/labelbox/internal/models"
)

// ErrMissingOrderReference is returned when neither an explicit order id nor
// an offer-history id was supplied.
var ErrMissingOrderReference = errors.New("order_id or offer_history_id is required")

// OrderInit carries the fields written when an order is auto-created for a
// fresh offer acceptance.
type OrderInit struct {
	Status       string
	TrackingCode *string
	LabelURL     *string
}

// ResolveOrCreateOrder returns the order a label purchase should attach to.
// An explicit id is trusted and returned unchanged. Otherwise one order per
// offer_history_id is created; a concurrent duplicate converges on the
// existing row via the partial unique index.
func (s *Storage) ResolveOrCreateOrder(ctx context.Context, explicitOrderID *uint64, offerHistoryID *int64, init OrderInit) (uint64, error) {
	if explicitOrderID != nil {
		return *explicitOrderID, nil
	}
	if offerHistoryID == nil {
		return 0, ErrMissingOrderReference
	}

	now := time.Now().UTC()
	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO orders (
  offer_history_id, status, tracking_code, label_url, shipped_at, received_at, total_shipping_cost, created_at, updated_at
)
VALUES ($1,$2,$3,$4,NULL,NULL,0,$5,$5)
ON CONFLICT (offer_history_id) WHERE offer_history_id IS NOT NULL
DO UPDATE SET updated_at = orders.updated_at
RETURNING id
`, *offerHistoryID, init.Status, init.TrackingCode, init.LabelURL, now).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert order")
	}
	return id, nil
}

func (s *Storage) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	var o models.Order
	err := s.db.QueryRow(ctx, `
SELECT
  id, offer_history_id, status, tracking_code, label_url,
  shipped_at, received_at, total_shipping_cost, created_at, updated_at
FROM orders
WHERE id = $1
`, id).Scan(
		&o.ID, &o.OfferHistoryID, &o.Status, &o.TrackingCode, &o.LabelURL,
		&o.ShippedAt, &o.ReceivedAt, &o.TotalShippingCost, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return &o, nil
}

// RecomputeShippingCost rewrites the order's total_shipping_cost as the sum of
// shipment_cost over its trackings (NULL costs count as zero). Safe to race
// with concurrent tracking upserts: rerunning always converges to the true sum.
func (s *Storage) RecomputeShippingCost(ctx context.Context, orderID uint64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRow(ctx, `
UPDATE orders
SET
  total_shipping_cost = (
    SELECT COALESCE(SUM(shipment_cost), 0) FROM trackings WHERE order_id = $1
  ),
  updated_at = now()
WHERE id = $1
RETURNING total_shipping_cost
`, orderID).Scan(&total)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "recompute shipping cost")
	}
	return total, nil
}

// ResolveOrderByTrackingCode finds the order whose denormalized tracking_code
// matches. Absence is not an error: webhook events for unknown codes still
// get a tracking row with a null order link.
func (s *Storage) ResolveOrderByTrackingCode(ctx context.Context, trackingCode string) (*uint64, error) {
	var id uint64
	err := s.db.QueryRow(ctx, `
SELECT id FROM orders WHERE tracking_code = $1 ORDER BY id LIMIT 1
`, trackingCode).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order by tracking code")
	}
	return &id, nil
}

// MarkOrderShipped stamps shipped_at on the first in-transit event; later
// events leave the original timestamp alone.
func (s *Storage) MarkOrderShipped(ctx context.Context, orderID uint64, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE orders
SET shipped_at = $2, status = $3, updated_at = now()
WHERE id = $1 AND shipped_at IS NULL
`, orderID, at.UTC(), models.OrderStatusShipped)
	return errors.Wrap(err, "mark order shipped")
}

func (s *Storage) MarkOrderReceived(ctx context.Context, orderID uint64, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE orders
SET received_at = $2, status = $3, updated_at = now()
WHERE id = $1 AND received_at IS NULL
`, orderID, at.UTC(), models.OrderStatusReceived)
	return errors.Wrap(err, "mark order received")
}
