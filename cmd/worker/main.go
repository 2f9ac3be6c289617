package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/aws"
	"github.com/imrishuroy/lbvp-storefront/internal/config"
	"github.com/imrishuroy/lbvp-storefront/internal/kafka"
	"github.com/imrishuroy/lbvp-storefront/internal/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.Logging.Level, cfg.HTTP.RunLocal)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}
	metrics := aws.NewMetrics(clients.CloudWatch, cfg.Events.MetricsNamespace)

	// with Kafka as the event backend the worker is a long-running consumer
	if cfg.Events.Backend == "kafka" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		consumer := kafka.NewConsumer(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, cfg.Events.KafkaGroupID, logger)
		logger.Info("consuming order events", zap.String("topic", cfg.Events.KafkaTopic))
		if err := consumer.Run(ctx, metrics.Record); err != nil {
			logger.Fatal("kafka consumer stopped", zap.Error(err))
		}
		return
	}

	p := NewProcessor(metrics, logger)

	// If RUN_LOCAL=true, process a single simulated SQS event and exit.
	if cfg.HTTP.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"type":"order.submitted","order_id":"LBVPLOCAL1","payment_method":"cod","total":59800,"item_count":1,"occurred_at":"2025-01-01T00:00:00Z"}`
		}
		event := lambdaevents.SQSEvent{
			Records: []lambdaevents.SQSMessage{{MessageId: "local-1", Body: body}},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local handler failed", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}
