package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/admin"
	"github.com/imrishuroy/lbvp-storefront/internal/aws"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/config"
	"github.com/imrishuroy/lbvp-storefront/internal/logging"
)

func main() {
	path := flag.String("file", "seed/catalog.yaml", "catalog seed file")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.Logging.Level, true)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	f, err := os.Open(*path)
	if err != nil {
		logger.Fatal("open seed file", zap.String("file", *path), zap.Error(err))
	}
	seed, err := loadSeed(f)
	f.Close()
	if err != nil {
		logger.Fatal("read seed file", zap.Error(err))
	}

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}
	if err := run(ctx, seed, catalog.NewStore(clients.DynamoDB, cfg.Tables.Products), admin.NewStore(clients.DynamoDB, cfg.Tables.Admins), logger); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
}

// run writes every product and admin in seed. The admin set is written
// directly: the first admin cannot be granted through the admin API.
func run(ctx context.Context, seed *seedFile, products *catalog.Store, admins *admin.Store, logger *zap.Logger) error {
	for _, p := range seed.Products {
		it, err := p.item()
		if err != nil {
			return err
		}
		saved, err := products.Upsert(ctx, it)
		if err != nil {
			return err
		}
		logger.Info("seeded product", zap.String("product_id", saved.ID), zap.String("name", saved.Name))
	}
	for _, a := range seed.Admins {
		if _, err := admins.Grant(ctx, a.ID, a.Email, "seed"); err != nil {
			return err
		}
		logger.Info("seeded admin", zap.String("principal_id", a.ID))
	}
	return nil
}
