package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/icellshop/labelbox/internal/broker/messages"
	"github.com/icellshop/labelbox/internal/cache"
	"github.com/icellshop/labelbox/internal/models"
)

const signaturePrefix = "hmac-sha256-hex="

// ErrBadSignature rejects a webhook whose HMAC does not match the raw body.
var ErrBadSignature = errors.New("webhook signature mismatch")

type Repository interface {
	ResolveOrderByTrackingCode(ctx context.Context, trackingCode string) (*uint64, error)
	UpsertTracking(ctx context.Context, in models.TrackingUpsert) (*models.Tracking, error)
	RecomputeShippingCost(ctx context.Context, orderID uint64) (decimal.Decimal, error)
	MarkOrderShipped(ctx context.Context, orderID uint64, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	secret   []byte
	repo     Repository
	cache    cache.BytesCache
	cacheTTL time.Duration
	producer Publisher
	log      *slog.Logger
}

func New(secret string, repo Repository, c cache.BytesCache, cacheTTL time.Duration, producer Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		secret:   []byte(secret),
		repo:     repo,
		cache:    c,
		cacheTTL: cacheTTL,
		producer: producer,
		log:      log,
	}
}

// VerifySignature checks the X-Hmac-Signature header against the raw request
// body. The header format is "hmac-sha256-hex=<hex digest>". An unconfigured
// secret rejects everything: an empty HMAC key would let anyone forge events.
func (s *Service) VerifySignature(rawBody []byte, header string) error {
	if len(s.secret) == 0 {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(rawBody)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(header)) {
		return ErrBadSignature
	}
	return nil
}

// Outcome reports what ProcessEvent did with an already-verified event.
type Outcome struct {
	Handled      bool
	TrackingCode string
	OrderID      *uint64
}

type event struct {
	Object      string          `json:"object"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type eventResult struct {
	Object       string `json:"object"`
	ID           string `json:"id"`
	TrackingCode string `json:"tracking_code"`

	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
	Carrier      string `json:"carrier"`

	SignedBy        *string    `json:"signed_by"`
	IsReturn        bool       `json:"is_return"`
	Finalized       bool       `json:"finalized"`
	EstDeliveryDate *time.Time `json:"est_delivery_date"`
	Weight          *float64   `json:"weight"`
	PublicURL       string     `json:"public_url"`
	ShipmentID      string     `json:"shipment_id"`

	CarrierDetail *struct {
		Service             string `json:"service"`
		OriginLocation      string `json:"origin_location"`
		DestinationLocation string `json:"destination_location"`
	} `json:"carrier_detail"`

	SelectedRate *struct {
		Rate     string `json:"rate"`
		Currency string `json:"currency"`
	} `json:"selected_rate"`

	TrackingDetails json.RawMessage `json:"tracking_details"`
}

// ProcessEvent ingests one verified carrier event. Events that are not
// Tracker or Shipment updates are acknowledged without touching storage.
// Events for unknown tracking codes still get a tracking row with a null
// order link; a later purchase attaches the order id on the next upsert.
func (s *Service) ProcessEvent(ctx context.Context, rawBody []byte) (Outcome, error) {
	var ev event
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return Outcome{}, errors.Wrap(err, "decode event")
	}
	if ev.Object != "Event" {
		return Outcome{}, nil
	}

	var res eventResult
	if err := json.Unmarshal(ev.Result, &res); err != nil {
		return Outcome{}, errors.Wrap(err, "decode event result")
	}
	if res.Object != "Tracker" && res.Object != "Shipment" {
		return Outcome{}, nil
	}
	if res.TrackingCode == "" {
		return Outcome{}, errors.New("event result has no tracking_code")
	}

	orderID, err := s.repo.ResolveOrderByTrackingCode(ctx, res.TrackingCode)
	if err != nil {
		return Outcome{}, err
	}

	tracking, err := s.repo.UpsertTracking(ctx, upsertFromEvent(res, orderID))
	if err != nil {
		return Outcome{}, err
	}

	if orderID != nil {
		if _, err := s.repo.RecomputeShippingCost(ctx, *orderID); err != nil {
			return Outcome{}, err
		}
		if res.Status == "in_transit" {
			if err := s.repo.MarkOrderShipped(ctx, *orderID, time.Now().UTC()); err != nil {
				return Outcome{}, err
			}
		}
	}

	s.refreshCache(ctx, tracking)
	s.publishUpdate(ctx, tracking)

	return Outcome{Handled: true, TrackingCode: res.TrackingCode, OrderID: orderID}, nil
}

func upsertFromEvent(res eventResult, orderID *uint64) models.TrackingUpsert {
	up := models.TrackingUpsert{
		TrackingCode:    res.TrackingCode,
		OrderID:         orderID,
		Status:          res.Status,
		StatusDetail:    optStr(res.StatusDetail),
		Carrier:         optStr(res.Carrier),
		PublicURL:       optStr(res.PublicURL),
		SignedBy:        res.SignedBy,
		IsReturn:        res.IsReturn,
		Finalized:       res.Finalized,
		EstDeliveryDate: res.EstDeliveryDate,
		Weight:          res.Weight,
		Direction:       models.DirectionToICellShop,
	}
	if res.IsReturn {
		up.Direction = models.DirectionReturnToSender
	}

	switch res.Object {
	case "Tracker":
		up.ShipmentID = optStr(res.ShipmentID)
	case "Shipment":
		up.ShipmentID = optStr(res.ID)
	}

	if res.CarrierDetail != nil {
		up.CarrierService = optStr(res.CarrierDetail.Service)
		up.CarrierOrigin = optStr(res.CarrierDetail.OriginLocation)
		up.CarrierDestination = optStr(res.CarrierDetail.DestinationLocation)
	}
	if res.SelectedRate != nil {
		if d, err := decimal.NewFromString(res.SelectedRate.Rate); err == nil {
			up.ShipmentCost = &d
		}
		up.ShipmentCurrency = optStr(res.SelectedRate.Currency)
	}
	if len(res.TrackingDetails) > 0 && string(res.TrackingDetails) != "null" {
		details := string(res.TrackingDetails)
		up.TrackingDetails = &details
	}
	return up
}

func (s *Service) refreshCache(ctx context.Context, t *models.Tracking) {
	if s.cache == nil || s.cacheTTL <= 0 || t == nil {
		return
	}
	b, _ := json.Marshal(t)
	if err := s.cache.Set(ctx, currentKey(t.TrackingCode), b, s.cacheTTL); err != nil {
		s.log.Error("tracking cache refresh failed", "tracking_code", t.TrackingCode, "error", err)
	}
}

func (s *Service) publishUpdate(ctx context.Context, t *models.Tracking) {
	if s.producer == nil || t == nil {
		return
	}
	msg := messages.TrackingUpdated{
		TrackingCode: t.TrackingCode,
		OrderID:      t.OrderID,
		Status:       t.Status,
		ShipmentCost: t.ShipmentCost,
		Source:       messages.SourceWebhook,
		OccurredAt:   time.Now().UTC(),
	}
	if t.StatusDetail != nil {
		msg.StatusDetail = *t.StatusDetail
	}
	if t.Carrier != nil {
		msg.Carrier = *t.Carrier
	}
	if t.ShipmentCurrency != nil {
		msg.ShipmentCurrency = *t.ShipmentCurrency
	}
	b, _ := json.Marshal(msg)
	if err := s.producer.Publish(ctx, messages.TopicTrackingUpdated, []byte(t.TrackingCode), b); err != nil {
		s.log.Error("publish tracking update failed", "tracking_code", t.TrackingCode, "error", err)
	}
}

func currentKey(code string) string {
	return fmt.Sprintf("tracking:%s:current", code)
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
