package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mvtrinh/sneaker-market/internal/adapter/events"
	"github.com/mvtrinh/sneaker-market/internal/adapter/handler"
	"github.com/mvtrinh/sneaker-market/internal/adapter/storage"
	"github.com/mvtrinh/sneaker-market/internal/config"
	"github.com/mvtrinh/sneaker-market/internal/core/service"
	"github.com/mvtrinh/sneaker-market/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("service", "sneaker-market").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := storage.Open(ctx, cfg.MySQL.DSN, cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect mysql")
	}
	defer db.Close()
	log.Info().Msg("connected to mysql")

	if err := storage.RunMigrations(db, cfg.MySQL.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations applied")

	store := storage.NewMySQLStore(db)

	// Redis is optional: without it, checkout runs without the
	// duplicate-submission guard but stays correct.
	var guard port.IdempotencyGuard
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, duplicate-checkout guard disabled")
		} else {
			defer rdb.Close()
			guard = storage.NewRedisGuard(rdb)
			log.Info().Msg("connected to redis")
		}
	}

	// Kafka is optional too: no brokers means events are discarded.
	var publisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher enabled")
	}

	availability := service.NewAvailability(store)
	reservations := service.NewReservationManager(store, service.ReservationConfig{
		DefaultDuration: cfg.Reservation.DefaultDuration.Std(),
		MaxDuration:     cfg.Reservation.MaxDuration.Std(),
	})
	cart := service.NewCart(store)
	checkout := service.NewCheckout(store, guard, publisher)
	expiredCart := service.NewExpiredCartArchive(store, cfg.ExpiredCart.DedupeWindow.Std())

	// Background janitor. Availability never depends on it; it only
	// keeps the reservations table tidy.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.Reservation.CleanupInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := reservations.CleanExpired(ctx); err != nil {
					log.Error().Err(err).Msg("reservation cleanup failed")
				}
			}
		}
	}()

	httpHandler := handler.NewHTTPHandler(availability, reservations, cart, checkout, expiredCart)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpHandler.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Std())
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	cancel()
	wg.Wait()
	log.Info().Msg("stopped")
}
