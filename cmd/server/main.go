package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ticketing/docs"
	"ticketing/internal/auth"
	"ticketing/internal/cache"
	"ticketing/internal/config"
	"ticketing/internal/db"
	"ticketing/internal/handler"
	"ticketing/internal/logger"
	"ticketing/internal/queue"
	"ticketing/internal/repository"
	"ticketing/internal/repository/memory"
	"ticketing/internal/router"
	"ticketing/internal/seed"
	"ticketing/internal/service"
)

// @title Event Ticketing API
// @version 1.0
// @description Event ticketing API with seat inventory, bookings, and JWT authentication.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "ticketing-api",
		Development: cfg.LogDevelopment,
	})
	defer func() { _ = log.Sync() }()

	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("storage init", zap.Error(err))
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cacheClient.Close() }()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, continuing without cache and rate limits", zap.Error(err))
	}
	cancelPing()

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		amqpPublisher := queue.NewAMQPPublisher(cfg.RabbitMQURL, log)
		defer func() { _ = amqpPublisher.Close() }()
		publisher = amqpPublisher
	}

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(store.Users(), jwtService, tokenStore, publisher, cfg.BcryptCost, log)
	eventService := service.NewEventService(store, cacheClient, log, cfg.BookingMaxRetries)
	bookingService := service.NewBookingService(store, cacheClient, publisher, log, cfg.BookingMaxRetries)
	adminService := service.NewAdminService(store, log)

	e := router.New(router.Dependencies{
		Config:      cfg,
		Log:         log,
		Cache:       cacheClient,
		AuthService: authService,
		Auth:        handler.NewAuthHandler(authService, bookingService),
		Events:      handler.NewEventHandler(eventService),
		Bookings:    handler.NewBookingHandler(bookingService),
		Admin:       handler.NewAdminHandler(adminService, bookingService),
		Health:      handler.NewHealthHandler(),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	log.Info("swagger documentation available", zap.String("url", swaggerURL(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
}

// openStore selects the storage backend. The memory driver keeps everything in process
// and seeds the bootstrap admin on every start.
func openStore(cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	if cfg.DBDriver == "memory" {
		store := memory.NewStore()
		if cfg.Admin.Password != "" {
			if _, err := seed.Admin(context.Background(), store, cfg.Admin, cfg.BcryptCost, log); err != nil {
				return nil, err
			}
		}
		log.Warn("using in-memory storage, data is lost on restart")
		return store, nil
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			return nil, err
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, err
	}
	return repository.NewStore(gormDB), nil
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	switch {
	case host == "":
		host = "http://localhost:" + cfg.ServerPort
	case !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://"):
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
