package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/icellshop/labelbox/internal/services/notifier"
)

type statusNotifierOpts struct {
	httpAddr string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runStatusNotifier(ctx context.Context, opts statusNotifierOpts, n *notifier.Notifier, consumer kafkaConsumer) error {
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runNotifierHTTPServer(ctx, opts, n)
	}()

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- consumeLoop(ctx, n, consumer)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-consumeErr:
		return err
	}
}

// consumeLoop keeps the consumer alive across transient broker and handler
// failures; only context cancellation stops it.
func consumeLoop(ctx context.Context, n *notifier.Notifier, consumer kafkaConsumer) error {
	for {
		err := consumer.Consume(ctx, func(_ []byte, value []byte) error {
			return n.HandleMessage(ctx, value)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("consume loop restarting", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
}
