package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS offers_catalog (
  id BIGSERIAL PRIMARY KEY,
  device_model TEXT NOT NULL,
  storage_gb INT NOT NULL DEFAULT 0,
  condition TEXT NOT NULL DEFAULT '',
  offer_price NUMERIC(12,2) NOT NULL DEFAULT 0,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS offers_history (
  id BIGSERIAL PRIMARY KEY,
  offer_id BIGINT NOT NULL,
  email TEXT NOT NULL,
  ip_address TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  offer_history_id BIGINT NULL,
  status TEXT NOT NULL,
  tracking_code TEXT NULL,
  label_url TEXT NULL,
  shipped_at TIMESTAMPTZ NULL,
  received_at TIMESTAMPTZ NULL,
  total_shipping_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// One auto-created order per accepted offer, even under concurrent
		// identical requests. Partial so operator-supplied orders without an
		// offer reference stay unconstrained.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_offer_history_id ON orders(offer_history_id) WHERE offer_history_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_orders_tracking_code ON orders(tracking_code)`,
		`
CREATE TABLE IF NOT EXISTS trackings (
  id BIGSERIAL PRIMARY KEY,
  tracking_code TEXT NOT NULL,
  order_id BIGINT NULL,
  status TEXT NOT NULL DEFAULT '',
  status_detail TEXT NULL,
  carrier TEXT NULL,
  carrier_service TEXT NULL,
  shipment_id TEXT NULL,
  public_url TEXT NULL,
  signed_by TEXT NULL,
  is_return BOOLEAN NOT NULL DEFAULT FALSE,
  finalized BOOLEAN NOT NULL DEFAULT FALSE,
  est_delivery_date TIMESTAMPTZ NULL,
  weight DOUBLE PRECISION NULL,
  carrier_origin TEXT NULL,
  carrier_destination TEXT NULL,
  tracking_details JSONB NULL,
  shipment_cost NUMERIC(12,2) NULL,
  shipment_currency TEXT NULL,
  direction TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (tracking_code)
)`,
		`CREATE INDEX IF NOT EXISTS idx_trackings_order_id ON trackings(order_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
