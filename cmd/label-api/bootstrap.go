package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/icellshop/labelbox/config"
	labelsapi "github.com/icellshop/labelbox/internal/api/labels_api"
	"github.com/icellshop/labelbox/internal/broker/kafka"
	"github.com/icellshop/labelbox/internal/cache/rediscache"
	"github.com/icellshop/labelbox/internal/integrations/easypost"
	"github.com/icellshop/labelbox/internal/integrations/easypost/easyposthttp"
	"github.com/icellshop/labelbox/internal/integrations/easypost/fake"
	"github.com/icellshop/labelbox/internal/integrations/mail/mailgunmail"
	"github.com/icellshop/labelbox/internal/pdfutil"
	"github.com/icellshop/labelbox/internal/services/labels"
	"github.com/icellshop/labelbox/internal/services/trackings"
	"github.com/icellshop/labelbox/internal/services/webhooks"
	"github.com/icellshop/labelbox/internal/storage/pgorders"
)

type labelAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     labelAPIOpts
	api      *labelsapi.LabelsAPI
	producer *kafka.Producer
	closeDB  func()
}

func mustBootstrapLabelAPI() *labelAPIApp {
	_ = godotenv.Load()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse failed: %v", err))
	}

	httpAddr := cfg.LabelBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	cacheTTL := time.Duration(cfg.LabelBox.TrackingCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	rateLimit := int64(cfg.LabelBox.LabelRateLimitPerMinute)
	if rateLimit <= 0 {
		rateLimit = 5
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	log := slog.Default()

	var carrier easypost.Client
	if apiKey := os.Getenv("EASYPOST_API_KEY"); apiKey != "" {
		carrier = easyposthttp.New(cfg.EasyPost.BaseURL, apiKey)
	} else {
		// local/dev runs without a carrier account
		log.Warn("EASYPOST_API_KEY not set, using fake carrier client")
		carrier = fake.New()
	}

	mailer := mailgunmail.New(cfg.Mailgun.Domain, os.Getenv("MAILGUN_API_KEY"), cfg.Mailgun.FromEmail)

	labelsSvc := labels.New(st, carrier, mailer, pdfutil.New(), producer, log)

	whSecret := os.Getenv("EASYPOST_WEBHOOK_SECRET")
	if whSecret == "" {
		log.Warn("EASYPOST_WEBHOOK_SECRET not set, all webhook deliveries will be rejected")
	}
	webhooksSvc := webhooks.New(whSecret, st, rc, cacheTTL, producer, log)
	trackingsSvc := trackings.New(st, rc, cacheTTL)

	api := labelsapi.New(labelsSvc, webhooksSvc, trackingsSvc, st, rc, rateLimit, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &labelAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: labelAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
		},
		api:      api,
		producer: producer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *labelAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *labelAPIApp) Run() error {
	return runLabelAPI(a.ctx, a.opts, a.api)
}
