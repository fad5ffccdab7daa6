package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	httpapi "github.com/bidware/bidware/internal/api/http"
	"github.com/bidware/bidware/internal/application/bidding"
	appListing "github.com/bidware/bidware/internal/application/listing"
	"github.com/bidware/bidware/internal/application/paymentgate"
	"github.com/bidware/bidware/internal/application/sweeper"
	"github.com/bidware/bidware/internal/config"
	"github.com/bidware/bidware/internal/domain/notification"
	"github.com/bidware/bidware/internal/infrastructure/natspub"
	"github.com/bidware/bidware/internal/infrastructure/postgres"
	"github.com/bidware/bidware/internal/infrastructure/rediscache"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	listingRepo := postgres.NewListingRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)

	// infrastructure; Redis and NATS are both optional, the service degrades
	// to store-only reads and no outbid notices when they are not configured
	var notifier notification.Notifier = notification.Nop{}
	if cfg.NATSURL != "" {
		natsNotifier, err := natspub.New(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, outbid notices disabled")
		} else {
			defer natsNotifier.Close()
			notifier = natsNotifier
		}
	}

	var bidCache *rediscache.BidCache
	biddingOpts := []bidding.Option{bidding.WithMaxAttempts(cfg.BidAttempts)}
	if cfg.RedisAddr != "" {
		bidCache, err = rediscache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, bid cache disabled")
			bidCache = nil
		} else {
			defer bidCache.Close()
			biddingOpts = append(biddingOpts, bidding.WithBidCache(bidCache))
		}
	}

	// services
	listingSvc := appListing.NewService(listingRepo, paymentRepo, logger)
	if bidCache != nil {
		listingSvc = listingSvc.WithBidCache(bidCache)
	}
	biddingSvc := bidding.NewService(listingRepo, notifier, logger, biddingOpts...)
	gate := paymentgate.NewAdapter(paymentRepo, listingRepo, logger)
	sweep := sweeper.New(listingRepo, logger, sweeper.WithInterval(cfg.SweepInterval))

	// API server
	apiServer := httpapi.NewServer(listingSvc, biddingSvc, gate)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// background transition sweep
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweep.Run(sweepCtx)

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stopSweep()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
