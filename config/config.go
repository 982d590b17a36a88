package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	EasyPost EasyPostConfig `yaml:"easypost"`
	Mailgun  MailgunConfig  `yaml:"mailgun"`
	LabelBox LabelBoxConfig `yaml:"labelbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	TrackingUpdatedTopicName string `yaml:"tracking_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EasyPost API key and webhook secret come from the EASYPOST_API_KEY /
// EASYPOST_WEBHOOK_SECRET env vars, never from the yaml file.
type EasyPostConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Mailgun API key comes from the MAILGUN_API_KEY env var.
type MailgunConfig struct {
	Domain    string `yaml:"domain"`
	FromEmail string `yaml:"from_email"`
	OpsEmail  string `yaml:"ops_email"`
}

type LabelBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	TrackingCacheTTLSeconds int `yaml:"tracking_cache_ttl_seconds"`

	// Per-client limit on POST /generar-etiqueta. Every allowed request is
	// a billable carrier purchase, so this is spend protection, not QoS.
	LabelRateLimitPerMinute int `yaml:"label_rate_limit_per_minute"`

	NotifierHTTPAddr string `yaml:"notifier_http_addr"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
