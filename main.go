package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"storeapi/internal/config"
	"storeapi/internal/database"
	"storeapi/internal/database/memory"
	"storeapi/internal/handlers"
	"storeapi/internal/logging"
	"storeapi/internal/models"
	"storeapi/internal/notify"
	"storeapi/internal/services"
)

func main() {
	cfg, envErr := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg(".env not loaded, using process environment")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store unavailable")
	}

	notifier, closeNotifier := openNotifier(cfg, logger)

	orders := services.NewOrderService(store, notifier, logging.Component(logger, "orders"), services.OrderOptions{
		DeliveryDays:    cfg.DefaultDeliveryDays,
		DefaultCurrency: models.Currency(cfg.DefaultCurrency),
	})
	deps := handlers.Deps{
		Store:              store,
		Carts:              services.NewCartService(store, logging.Component(logger, "cart")),
		Orders:             orders,
		Dashboards:         services.NewDashboardService(store.Stats(), logging.Component(logger, "dashboard")),
		Catalog:            services.NewCatalogService(store, logging.Component(logger, "catalog")),
		Logger:             logging.Component(logger, "http"),
		JWTSecret:          cfg.JWTSecret,
		RequestTimeout:     cfg.RequestTimeout,
		CheckoutRatePerMin: cfg.CheckoutRatePerMin,
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("driver", cfg.StoreDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	closeNotifier()
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("store close failed")
	}
}

func openStore(cfg config.Config, logger zerolog.Logger) (database.Store, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required for the mongo store")
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.DBName)
	logger.Info().Str("db", db.Name()).Msg("mongodb connected")

	if err := database.EnsureIndexes(db, logging.Component(logger, "indexes")); err != nil {
		logger.Warn().Err(err).Msg("index setup incomplete")
	}
	return database.NewMongoStore(client, db), nil
}

// openNotifier falls back to logging events when Redis is not configured
// or not reachable at startup.
func openNotifier(cfg config.Config, logger zerolog.Logger) (notify.Notifier, func()) {
	logNotifier := notify.NewLogNotifier(logging.Component(logger, "events"))
	if cfg.RedisURL == "" {
		return logNotifier, func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid REDIS_URL, order events will only be logged")
		return logNotifier, func() {}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, order events will only be logged")
		_ = client.Close()
		return logNotifier, func() {}
	}

	logger.Info().Str("channel", cfg.OrderEventsChannel).Msg("publishing order events to redis")
	return notify.NewRedisNotifier(client, cfg.OrderEventsChannel), func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("redis close failed")
		}
	}
}
