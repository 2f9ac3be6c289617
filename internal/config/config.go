package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AWS     AWSConfig
	Tables  TableConfig
	Cart    CartConfig
	Events  EventsConfig
	Media   MediaConfig
	Orders  OrdersConfig
	Payment PaymentConfig
	HTTP    HTTPConfig
	Logging LoggingConfig
}

type AWSConfig struct {
	Region           string
	EndpointOverride string
}

type TableConfig struct {
	Products    string
	Orders      string
	Admins      string
	Idempotency string
	Carts       string
}

type CartConfig struct {
	Store string // dynamo | memory
	TTL   time.Duration
}

type EventsConfig struct {
	Backend          string // sqs | kafka | none
	QueueURL         string
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaGroupID     string
	MetricsNamespace string
}

type MediaConfig struct {
	Bucket  string
	BaseURL string
}

type OrdersConfig struct {
	IDPrefix       string
	DeliveryETA    time.Duration
	IdempotencyTTL time.Duration
}

type PaymentConfig struct {
	CallbackToken string // empty disables the gateway callback route
}

type HTTPConfig struct {
	Addr     string
	RunLocal bool
}

type LoggingConfig struct {
	Level string
}

func LoadConfig() Config {
	return Config{
		AWS: AWSConfig{
			Region:           getEnv("AWS_REGION", "us-east-1"),
			EndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		},
		Tables: TableConfig{
			Products:    getEnv("PRODUCTS_TABLE", "products"),
			Orders:      getEnv("ORDERS_TABLE", "orders"),
			Admins:      getEnv("ADMINS_TABLE", "admins"),
			Idempotency: getEnv("IDEMPOTENCY_TABLE", "idempotency"),
			Carts:       getEnv("CARTS_TABLE", "carts"),
		},
		Cart: CartConfig{
			Store: getEnv("CART_STORE", "dynamo"),
			TTL:   getEnvAsDuration("CART_TTL", 30*24*time.Hour),
		},
		Events: EventsConfig{
			Backend:          getEnv("EVENTS_BACKEND", "sqs"),
			QueueURL:         getEnv("ORDERS_QUEUE_URL", ""),
			KafkaBrokers:     getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:       getEnv("KAFKA_TOPIC", "orders"),
			KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "storefront-metrics"),
			MetricsNamespace: getEnv("METRICS_NAMESPACE", "LBVP/Storefront"),
		},
		Media: MediaConfig{
			Bucket:  getEnv("MEDIA_BUCKET", ""),
			BaseURL: getEnv("MEDIA_BASE_URL", ""),
		},
		Orders: OrdersConfig{
			IDPrefix:       getEnv("ORDER_ID_PREFIX", "LBVP"),
			DeliveryETA:    getEnvAsDuration("DELIVERY_ETA", 5*24*time.Hour),
			IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Payment: PaymentConfig{
			CallbackToken: getEnv("PAYMENT_CALLBACK_TOKEN", ""),
		},
		HTTP: HTTPConfig{
			Addr:     getEnv("HTTP_ADDR", ":8080"),
			RunLocal: getEnv("RUN_LOCAL", "") == "true",
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// bare numbers are minutes
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
