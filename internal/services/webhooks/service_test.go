package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/icellshop/labelbox/internal/models"
)

type fakeRepo struct {
	orderByCode map[string]uint64
	resolveErr  error
	upsertErr   error

	upserts    []models.TrackingUpsert
	recomputes []uint64
	shipped    []uint64
}

func (f *fakeRepo) ResolveOrderByTrackingCode(_ context.Context, code string) (*uint64, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	id, ok := f.orderByCode[code]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (f *fakeRepo) UpsertTracking(_ context.Context, in models.TrackingUpsert) (*models.Tracking, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserts = append(f.upserts, in)
	return &models.Tracking{
		ID:           1,
		TrackingCode: in.TrackingCode,
		OrderID:      in.OrderID,
		Status:       in.Status,
		StatusDetail: in.StatusDetail,
		Carrier:      in.Carrier,
		ShipmentCost: in.ShipmentCost,
		Direction:    in.Direction,
	}, nil
}

func (f *fakeRepo) RecomputeShippingCost(_ context.Context, orderID uint64) (decimal.Decimal, error) {
	f.recomputes = append(f.recomputes, orderID)
	return decimal.Zero, nil
}

func (f *fakeRepo) MarkOrderShipped(_ context.Context, orderID uint64, _ time.Time) error {
	f.shipped = append(f.shipped, orderID)
	return nil
}

type fakeCache struct {
	set map[string][]byte
}

func (f *fakeCache) Get(_ context.Context, _ string) ([]byte, bool, error) { return nil, false, nil }
func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if f.set == nil {
		f.set = map[string][]byte{}
	}
	f.set[key] = value
	return nil
}
func (f *fakeCache) Delete(_ context.Context, _ string) error { return nil }

type fakeProducer struct {
	keys []string
}

func (f *fakeProducer) Publish(_ context.Context, _ string, key, _ []byte) error {
	f.keys = append(f.keys, string(key))
	return nil
}

const secret = "whsec_test"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "hmac-sha256-hex=" + hex.EncodeToString(mac.Sum(nil))
}

func trackerEvent() []byte {
	return []byte(`{
		"object": "Event",
		"description": "tracker.updated",
		"result": {
			"object": "Tracker",
			"id": "trk_1",
			"shipment_id": "shp_1",
			"tracking_code": "EZ1000000001",
			"status": "in_transit",
			"status_detail": "arrived_at_facility",
			"carrier": "USPS",
			"carrier_detail": {
				"service": "Priority",
				"origin_location": "MONTERREY NL",
				"destination_location": "CIUDAD DE MEXICO DF"
			},
			"public_url": "https://track.easypost.com/trk_1",
			"tracking_details": [{"message": "Arrived at Facility"}]
		}
	}`)
}

func TestVerifySignature(t *testing.T) {
	svc := New(secret, &fakeRepo{}, nil, 0, nil, nil)
	body := trackerEvent()

	require.NoError(t, svc.VerifySignature(body, sign(body)))

	tampered := append([]byte{}, body...)
	tampered[0] = ' '
	require.ErrorIs(t, svc.VerifySignature(tampered, sign(body)), ErrBadSignature)
	require.ErrorIs(t, svc.VerifySignature(body, "hmac-sha256-hex=deadbeef"), ErrBadSignature)
	require.ErrorIs(t, svc.VerifySignature(body, ""), ErrBadSignature)
}

func TestVerifySignature_EmptySecretRejectsAll(t *testing.T) {
	svc := New("", &fakeRepo{}, nil, 0, nil, nil)
	body := trackerEvent()

	// a signature computed with an empty key must not authenticate
	mac := hmac.New(sha256.New, nil)
	mac.Write(body)
	forged := "hmac-sha256-hex=" + hex.EncodeToString(mac.Sum(nil))

	require.ErrorIs(t, svc.VerifySignature(body, forged), ErrBadSignature)
	require.ErrorIs(t, svc.VerifySignature(body, ""), ErrBadSignature)
}

func TestProcessEvent_LinkedTracker(t *testing.T) {
	repo := &fakeRepo{orderByCode: map[string]uint64{"EZ1000000001": 7}}
	c := &fakeCache{}
	producer := &fakeProducer{}
	svc := New(secret, repo, c, time.Minute, producer, nil)

	out, err := svc.ProcessEvent(context.Background(), trackerEvent())
	require.NoError(t, err)
	require.True(t, out.Handled)
	require.Equal(t, "EZ1000000001", out.TrackingCode)
	require.NotNil(t, out.OrderID)
	require.Equal(t, uint64(7), *out.OrderID)

	require.Len(t, repo.upserts, 1)
	up := repo.upserts[0]
	require.Equal(t, uint64(7), *up.OrderID)
	require.Equal(t, "in_transit", up.Status)
	require.Equal(t, "arrived_at_facility", *up.StatusDetail)
	require.Equal(t, "Priority", *up.CarrierService)
	require.Equal(t, "MONTERREY NL", *up.CarrierOrigin)
	require.NotNil(t, up.TrackingDetails)
	require.Contains(t, *up.TrackingDetails, "Arrived at Facility")

	// in_transit stamps shipped_at and recomputes the order total
	require.Equal(t, []uint64{7}, repo.recomputes)
	require.Equal(t, []uint64{7}, repo.shipped)

	require.Contains(t, c.set, "tracking:EZ1000000001:current")
	require.Equal(t, []string{"EZ1000000001"}, producer.keys)
}

func TestProcessEvent_UnknownCodeKeepsNullLink(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(secret, repo, nil, 0, nil, nil)

	out, err := svc.ProcessEvent(context.Background(), trackerEvent())
	require.NoError(t, err)
	require.True(t, out.Handled)
	require.Nil(t, out.OrderID)

	require.Len(t, repo.upserts, 1)
	require.Nil(t, repo.upserts[0].OrderID)
	require.Empty(t, repo.recomputes)
	require.Empty(t, repo.shipped)
}

func TestProcessEvent_NonTrackerAckedUntouched(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(secret, repo, nil, 0, nil, nil)

	for _, body := range []string{
		`{"object":"Event","result":{"object":"Batch","id":"batch_1"}}`,
		`{"object":"Payment","result":{"object":"Tracker","tracking_code":"EZ1"}}`,
	} {
		out, err := svc.ProcessEvent(context.Background(), []byte(body))
		require.NoError(t, err)
		require.False(t, out.Handled)
	}
	require.Empty(t, repo.upserts)
}

func TestProcessEvent_ShipmentEvent(t *testing.T) {
	repo := &fakeRepo{orderByCode: map[string]uint64{"EZ2000000002": 9}}
	svc := New(secret, repo, nil, 0, nil, nil)

	body := []byte(`{
		"object": "Event",
		"description": "shipment.purchased",
		"result": {
			"object": "Shipment",
			"id": "shp_9",
			"tracking_code": "EZ2000000002",
			"status": "pre_transit",
			"selected_rate": {"rate": "8.25", "currency": "USD"}
		}
	}`)
	out, err := svc.ProcessEvent(context.Background(), body)
	require.NoError(t, err)
	require.True(t, out.Handled)

	require.Len(t, repo.upserts, 1)
	up := repo.upserts[0]
	require.Equal(t, "shp_9", *up.ShipmentID)
	require.True(t, up.ShipmentCost.Equal(decimal.RequireFromString("8.25")))
	require.Equal(t, "USD", *up.ShipmentCurrency)
	require.Equal(t, []uint64{9}, repo.recomputes)
	require.Empty(t, repo.shipped)
}

func TestProcessEvent_ResolveErrorFailsEvent(t *testing.T) {
	repo := &fakeRepo{resolveErr: errors.New("connection refused")}
	svc := New(secret, repo, nil, 0, nil, nil)

	_, err := svc.ProcessEvent(context.Background(), trackerEvent())
	require.Error(t, err)
	require.Empty(t, repo.upserts)
}

func TestProcessEvent_BadPayload(t *testing.T) {
	svc := New(secret, &fakeRepo{}, nil, 0, nil, nil)

	_, err := svc.ProcessEvent(context.Background(), []byte("not json"))
	require.Error(t, err)

	_, err = svc.ProcessEvent(context.Background(), []byte(`{"object":"Event","result":{"object":"Tracker"}}`))
	require.Error(t, err)
}
