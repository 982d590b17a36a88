package kafka

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	err := p.Publish(context.Background(), "tracking.updated", []byte("EZ100"), []byte(`{"tracking_code":"EZ100"}`))
	require.NoError(t, err)

	require.Len(t, fw.msgs, 1)
	require.Equal(t, "tracking.updated", fw.msgs[0].Topic)
	require.Equal(t, []byte("EZ100"), fw.msgs[0].Key)

	require.NoError(t, p.Close())
	require.True(t, fw.closed)
}

func TestProducer_PublishError(t *testing.T) {
	p := newProducerWithWriter(&fakeWriter{err: errors.New("broker down")})

	err := p.Publish(context.Background(), "tracking.updated", nil, []byte("{}"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "kafka publish")
}
