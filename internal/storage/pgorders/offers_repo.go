package pgorders

import (
	"context"

	"github.com/pkg/errors"

	"github.com/icellshop/labelbox/internal/models"
)

func (s *Storage) RegisterOffer(ctx context.Context, offerID uint64, email string, ipAddress *string) (uint64, error) {
	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO offers_history (offer_id, email, ip_address, created_at)
VALUES ($1, $2, $3, now())
RETURNING id
`, offerID, email, ipAddress).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert offer history")
	}
	return id, nil
}

func (s *Storage) ListActiveOffers(ctx context.Context) ([]*models.Offer, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, device_model, storage_gb, condition, offer_price, active, created_at
FROM offers_catalog
WHERE active = TRUE
ORDER BY id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select offers")
	}
	defer rows.Close()

	out := []*models.Offer{}
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.DeviceModel, &o.StorageGB, &o.Condition, &o.OfferPrice, &o.Active, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan offer")
		}
		out = append(out, &o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
