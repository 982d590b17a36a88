package kafka

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(_ context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestConsumer_ConsumeCommitsHandled(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{
		{Key: []byte("EZ100"), Value: []byte(`{"status":"in_transit"}`)},
		{Key: []byte("EZ200"), Value: []byte(`{"status":"delivered"}`)},
	}}
	c := newConsumerWithReader(fr)

	var seen []string
	err := c.Consume(context.Background(), func(key, _ []byte) error {
		seen = append(seen, string(key))
		return nil
	})
	require.ErrorIs(t, errors.Cause(err), io.EOF)

	require.Equal(t, []string{"EZ100", "EZ200"}, seen)
	require.Len(t, fr.committed, 2)
}

func TestConsumer_HandlerErrorSkipsCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{
		{Key: []byte("EZ100"), Value: []byte("{}")},
	}}
	c := newConsumerWithReader(fr)

	wantErr := errors.New("handler failed")
	err := c.Consume(context.Background(), func(_, _ []byte) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Empty(t, fr.committed)
}
