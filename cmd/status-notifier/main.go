package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/icellshop/labelbox/config"
	"github.com/icellshop/labelbox/internal/broker/kafka"
	"github.com/icellshop/labelbox/internal/broker/messages"
	"github.com/icellshop/labelbox/internal/integrations/mail/mailgunmail"
	"github.com/icellshop/labelbox/internal/services/notifier"
	"github.com/icellshop/labelbox/internal/storage/pgorders"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse failed: %v", err))
	}

	topic := cfg.Kafka.TrackingUpdatedTopicName
	if topic == "" {
		topic = messages.TopicTrackingUpdated
	}
	consumerGroup := cfg.LabelBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "status-notifier"
	}
	httpAddr := cfg.LabelBox.NotifierHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st, err := pgorders.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	mailer := mailgunmail.New(cfg.Mailgun.Domain, os.Getenv("MAILGUN_API_KEY"), cfg.Mailgun.FromEmail)
	n := notifier.New(st, mailer, cfg.Mailgun.OpsEmail, slog.Default())

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("status-notifier starting", "topic", topic, "group", consumerGroup, "http", httpAddr)
	if err := runStatusNotifier(ctx, statusNotifierOpts{httpAddr: httpAddr}, n, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}
