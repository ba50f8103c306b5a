package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ticketing/internal/config"
	"ticketing/internal/db"
	"ticketing/internal/logger"
	"ticketing/internal/repository"
	"ticketing/internal/seed"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "ticketing-seed",
		Development: cfg.LogDevelopment,
	})
	defer func() { _ = log.Sync() }()

	log.Info("starting seed", zap.String("driver", cfg.DBDriver))

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	store := repository.NewStore(gormDB)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	admin, err := seed.Admin(ctx, store, cfg.Admin, cfg.BcryptCost, log)
	if err != nil {
		log.Fatal("seed admin", zap.Error(err))
	}

	if cfg.Admin.SeedDemoEvents {
		if _, err := seed.DemoEvents(ctx, store, admin, time.Now().UTC(), log); err != nil {
			log.Fatal("seed demo events", zap.Error(err))
		}
	}
	log.Info("seed completed")
}
