package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/icellshop/labelbox/internal/broker/messages"
	"github.com/icellshop/labelbox/internal/services/notifier"
)

type fakeRepo struct {
	mu       sync.Mutex
	received []uint64
}

func (f *fakeRepo) MarkOrderReceived(_ context.Context, orderID uint64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, orderID)
	return nil
}

func (f *fakeRepo) receivedOrders() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64{}, f.received...)
}

type fakeConsumer struct {
	values [][]byte
}

func (c *fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, v := range c.values {
		if err := handler(nil, v); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunStatusNotifier(t *testing.T) {
	repo := &fakeRepo{}
	n := notifier.New(repo, nil, "", nil)

	orderID := uint64(7)
	msg, err := json.Marshal(messages.TrackingUpdated{
		TrackingCode: "EZ100",
		OrderID:      &orderID,
		Status:       "delivered",
		OccurredAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := statusNotifierOpts{
		httpAddr: "127.0.0.1:0",
		onListen: func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runStatusNotifier(ctx, opts, n, &fakeConsumer{values: [][]byte{msg}})
	}()

	addr := <-addrCh

	require.Eventually(t, func() bool {
		return len(repo.receivedOrders()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, uint64(7), repo.receivedOrders()[0])

	resp, err := http.Get("http://" + addr + "/stats")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var st notifier.Stats
	require.NoError(t, json.Unmarshal(body, &st))
	require.Equal(t, int64(1), st.TotalProcessed)
	require.Equal(t, int64(1), st.TotalDelivered)

	resp, err = http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	cancel()
	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting notifier to stop")
	case <-errCh:
	}
}
