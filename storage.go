package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domproduct "github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type stores struct {
	products  domproduct.Repository
	orders    domorder.Repository
	discounts domdiscount.Repository
	carts     domcart.Repository
	closers   []func() error
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openStores picks the order/product/discount backend from storage.driver and
// the cart backend from redis.enabled, then seeds the configured catalogue.
func openStores(ctx context.Context, cfg config.Config, logger observability.Logger) (*stores, error) {
	s := &stores{}

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(db); err != nil {
				s.close()
				return nil, err
			}
		}
		if err := seedPostgres(ctx, db, cfg.Storage.Catalog); err != nil {
			s.close()
			return nil, err
		}
		s.products = postgres.NewProductRepository(db)
		s.orders = postgres.NewOrderRepository(db)
		s.discounts = postgres.NewDiscountRepository(db)
	default:
		s.products = memory.NewProductRepository(catalog(cfg.Storage.Catalog)...)
		s.orders = memory.NewOrderRepository()
		s.discounts = memory.NewDiscountRepository()
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			s.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.carts = redisstore.NewCartRepository(client, cfg.Redis.CartTTL)
	} else {
		s.carts = memory.NewCartRepository()
	}

	logger.Info("stores_ready",
		observability.F("storage", cfg.Storage.Driver),
		observability.F("redis_carts", cfg.Redis.Enabled),
		observability.F("catalog_size", len(cfg.Storage.Catalog)),
	)
	return s, nil
}

func seedPostgres(ctx context.Context, db *sql.DB, items []config.Product) error {
	repo := postgres.NewProductRepository(db)
	for _, p := range catalog(items) {
		if err := repo.Seed(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	return nil
}

func catalog(items []config.Product) []domproduct.Product {
	out := make([]domproduct.Product, 0, len(items))
	for _, p := range items {
		out = append(out, domproduct.Product{
			ID:       p.ID,
			Name:     p.Name,
			Category: p.Category,
			Price:    p.Price,
			Stock:    p.Stock,
		})
	}
	return out
}
