package notifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/icellshop/labelbox/internal/broker/messages"
	"github.com/icellshop/labelbox/internal/integrations/mail"
	"github.com/icellshop/labelbox/internal/models"
)

type fakeRepo struct {
	received map[uint64]time.Time
	err      error
}

func (f *fakeRepo) MarkOrderReceived(_ context.Context, orderID uint64, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	if f.received == nil {
		f.received = map[uint64]time.Time{}
	}
	f.received[orderID] = at
	return nil
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) (mail.Result, error) {
	if f.err != nil {
		return mail.Result{}, f.err
	}
	f.sent = append(f.sent, msg)
	return mail.Result{ID: "<msg-1>"}, nil
}

func payload(t *testing.T, msg messages.TrackingUpdated) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestHandleMessage_Delivered(t *testing.T) {
	repo := &fakeRepo{}
	mailer := &fakeMailer{}
	n := New(repo, mailer, "ops@icellshop.test", nil)

	orderID := uint64(7)
	at := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)
	err := n.HandleMessage(context.Background(), payload(t, messages.TrackingUpdated{
		TrackingCode: "EZ100",
		OrderID:      &orderID,
		Status:       models.TrackingStatusDelivered,
		Carrier:      "USPS",
		OccurredAt:   at,
	}))
	require.NoError(t, err)

	require.Equal(t, at, repo.received[7])
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "ops@icellshop.test", mailer.sent[0].To)
	require.Contains(t, mailer.sent[0].Subject, "orden 7")

	st := n.Stats()
	require.Equal(t, int64(1), st.TotalProcessed)
	require.Equal(t, int64(1), st.TotalDelivered)
	require.Equal(t, int64(0), st.TotalErrors)
}

func TestHandleMessage_NonDeliveredIgnored(t *testing.T) {
	repo := &fakeRepo{}
	n := New(repo, &fakeMailer{}, "ops@icellshop.test", nil)

	orderID := uint64(7)
	for _, status := range []string{"in_transit", "out_for_delivery", "pre_transit"} {
		err := n.HandleMessage(context.Background(), payload(t, messages.TrackingUpdated{
			TrackingCode: "EZ100", OrderID: &orderID, Status: status,
		}))
		require.NoError(t, err)
	}
	require.Empty(t, repo.received)

	// delivered without an order link also has nothing to mark
	err := n.HandleMessage(context.Background(), payload(t, messages.TrackingUpdated{
		TrackingCode: "EZ100", Status: "delivered",
	}))
	require.NoError(t, err)
	require.Empty(t, repo.received)
}

func TestHandleMessage_StoreErrorPropagates(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection refused")}
	n := New(repo, &fakeMailer{}, "ops@icellshop.test", nil)

	orderID := uint64(7)
	err := n.HandleMessage(context.Background(), payload(t, messages.TrackingUpdated{
		TrackingCode: "EZ100", OrderID: &orderID, Status: "delivered",
	}))
	require.Error(t, err)

	st := n.Stats()
	require.Equal(t, int64(1), st.TotalErrors)
	require.Contains(t, st.LastError, "connection refused")
}

func TestHandleMessage_MailFailureDoesNotFail(t *testing.T) {
	repo := &fakeRepo{}
	n := New(repo, &fakeMailer{err: errors.New("mailgun down")}, "ops@icellshop.test", nil)

	orderID := uint64(7)
	err := n.HandleMessage(context.Background(), payload(t, messages.TrackingUpdated{
		TrackingCode: "EZ100", OrderID: &orderID, Status: "delivered",
	}))
	require.NoError(t, err)
	require.Contains(t, repo.received, uint64(7))

	st := n.Stats()
	require.Equal(t, int64(1), st.TotalErrors)
}

func TestHandleMessage_BadPayload(t *testing.T) {
	n := New(&fakeRepo{}, &fakeMailer{}, "", nil)

	require.Error(t, n.HandleMessage(context.Background(), []byte("not json")))
	require.Error(t, n.HandleMessage(context.Background(), []byte(`{"status":"delivered"}`)))
}
