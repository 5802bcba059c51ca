package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/adapter/storage"
	"github.com/rl1809/liora-bloom/internal/config"
	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/logger"
)

type seedProduct struct {
	id, name, category, price, sale string
	popular                         bool
}

// Stable ids so a second run leaves existing rows alone.
var starterCatalog = []seedProduct{
	{id: "seed-assorted-12", name: "12 Assorted Roses", category: "Assorted Roses", price: "450", popular: true},
	{id: "seed-assorted-24", name: "24 Assorted Roses", category: "Assorted Roses", price: "780"},
	{id: "seed-red-12", name: "12 Red Roses", category: "Red Roses", price: "520", sale: "480", popular: true},
	{id: "seed-red-50", name: "50 Red Roses Box", category: "Red Roses", price: "1850"},
	{id: "seed-personalised-name", name: "Name Bouquet", category: "Personalised", price: "950"},
	{id: "seed-funeral-wreath", name: "White Lily Wreath", category: "Funeral Packages", price: "1200"},
}

func main() {
	configPath := flag.String("config", "", "path to a config file")
	adminID := flag.String("admin", "", "profile id to promote to admin")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Options{Service: "liora-seed", Env: cfg.App.Env, Level: cfg.App.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN, storage.PoolOptions{MaxOpenConns: 2, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	if err != nil {
		log.Fatal("failed to connect mysql", zap.Error(err))
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	repo := storage.NewMySQLAdapter(db)

	created := 0
	for i, sp := range starterCatalog {
		existing, err := repo.GetProduct(ctx, sp.id)
		if err != nil {
			log.Fatal("failed to read product", zap.String("product_id", sp.id), zap.Error(err))
		}
		if existing != nil {
			continue
		}

		// older entries first, so listings come out in catalog order
		at := time.Now().UTC().Add(-time.Duration(len(starterCatalog)-i) * time.Minute)
		p := domain.Product{
			ID:        sp.id,
			Name:      sp.name,
			Category:  sp.category,
			Price:     decimal.RequireFromString(sp.price),
			Popular:   sp.popular,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if sp.sale != "" {
			p.SalePrice = decimal.NewNullDecimal(decimal.RequireFromString(sp.sale))
		}
		if err := repo.CreateProduct(ctx, p); err != nil {
			log.Fatal("failed to create product", zap.String("product_id", sp.id), zap.Error(err))
		}
		created++
	}
	log.Info("catalog seeded", zap.Int("created", created), zap.Int("total", len(starterCatalog)))

	if *adminID != "" {
		if err := repo.SetRole(ctx, *adminID, domain.RoleAdmin); err != nil {
			log.Fatal("failed to promote admin", zap.String("user_id", *adminID), zap.Error(err))
		}
		log.Info("admin promoted", zap.String("user_id", *adminID))
	}
}
