package main

import (
	"context"
	"log"
	"net/http"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/admin"
	"github.com/imrishuroy/lbvp-storefront/internal/aws"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/checkout"
	"github.com/imrishuroy/lbvp-storefront/internal/config"
	"github.com/imrishuroy/lbvp-storefront/internal/events"
	"github.com/imrishuroy/lbvp-storefront/internal/handlers"
	"github.com/imrishuroy/lbvp-storefront/internal/identity"
	"github.com/imrishuroy/lbvp-storefront/internal/idempotency"
	"github.com/imrishuroy/lbvp-storefront/internal/kafka"
	"github.com/imrishuroy/lbvp-storefront/internal/localstore"
	"github.com/imrishuroy/lbvp-storefront/internal/logging"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
)

func setupRouter(cfg handlers.HandlerConfig, trustHeaders bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware(cfg.Logger))
	r.Use(identity.Middleware(trustHeaders))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func newPublisher(cfg config.Config, clients *aws.AWSClients, logger *zap.Logger) events.Publisher {
	switch cfg.Events.Backend {
	case "kafka":
		return kafka.NewProducer(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	case "sqs":
		if cfg.Events.QueueURL != "" {
			return aws.NewPublisher(clients.SQS, cfg.Events.QueueURL)
		}
		logger.Warn("ORDERS_QUEUE_URL not set, order events disabled")
	}
	return events.Nop{}
}

func newCartStore(cfg config.Config, clients *aws.AWSClients) localstore.Store {
	if cfg.Cart.Store == "memory" {
		return localstore.NewMemory()
	}
	return localstore.NewDynamo(clients.DynamoDB, cfg.Tables.Carts, cfg.Cart.TTL)
}

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

	publisher := newPublisher(cfg, clients, logger)
	if p, ok := publisher.(*kafka.Producer); ok {
		defer p.Close()
	}

	catalogStore := catalog.NewStore(clients.DynamoDB, cfg.Tables.Products)
	orderStore := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders)
	lifecycle := orders.NewService(orderStore, publisher, logger)
	validator := checkout.NewValidator(catalogStore)

	var media admin.MediaUploader
	if cfg.Media.Bucket != "" {
		media = aws.NewMediaStore(clients.S3, cfg.Media.Bucket, clients.Region, cfg.Media.BaseURL)
	}

	hcfg := handlers.HandlerConfig{
		Catalog:   catalogStore,
		Carts:     newCartStore(cfg, clients),
		Validator: validator,
		Checkout: checkout.NewService(
			validator,
			orderStore,
			lifecycle,
			idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.Orders.IdempotencyTTL),
			publisher,
			logger,
			checkout.Options{IDPrefix: cfg.Orders.IDPrefix, DeliveryETA: cfg.Orders.DeliveryETA},
		),
		Tracker: orders.NewTracker(orderStore, cfg.Orders.DeliveryETA),
		Admin: admin.NewService(
			identity.ContextSource{},
			admin.NewStore(clients.DynamoDB, cfg.Tables.Admins),
			catalogStore,
			orderStore,
			lifecycle,
			media,
			logger,
		),
		Logger:               logger,
		PaymentCallbackToken: cfg.Payment.CallbackToken,
		SecureCookies:        !cfg.HTTP.RunLocal,
	}

	r := setupRouter(hcfg, cfg.HTTP.RunLocal)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.HTTP.RunLocal {
		logger.Info("running local server", zap.String("addr", cfg.HTTP.Addr))
		if err := r.Run(cfg.HTTP.Addr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req lambdaevents.APIGatewayProxyRequest) (lambdaevents.APIGatewayProxyResponse, error) {
		// ProxyWithContext keeps the authorizer context reachable from handlers
		return adapter.ProxyWithContext(ctx, req)
	})
}
