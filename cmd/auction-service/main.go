package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"vehicle-auction-service/internal/adapters/broadcaster"
	"vehicle-auction-service/internal/adapters/db"
	"vehicle-auction-service/internal/adapters/memory"
	"vehicle-auction-service/internal/adapters/metrics"
	"vehicle-auction-service/internal/adapters/redis"
	"vehicle-auction-service/internal/adapters/scheduler"
	"vehicle-auction-service/internal/adapters/ws"
	"vehicle-auction-service/internal/app"
	"vehicle-auction-service/internal/config"
	"vehicle-auction-service/internal/domain/bidding"
	"vehicle-auction-service/internal/ports/outbound"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Str("storage", cfg.Storage).Msg("Starting Vehicle Auction Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, closeStorage := openStorage(ctx, cfg)
	defer closeStorage()

	redisClient := redis.NewClient(cfg.Redis)
	if err := redis.PingRedis(ctx, redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	defer redisBroadcaster.Close()

	var recorder outbound.Metrics
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder(metrics.RecorderParams{})
	}

	proxyCeiling, err := decimal.NewFromString(cfg.Engine.ProxyMaxCeiling)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.Engine.ProxyMaxCeiling).Msg("Invalid proxy maximum ceiling")
	}

	locks := app.NewLockRegistry()

	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo:         repos.Auctions,
		LotRepo:             repos.Lots,
		BidRepo:             repos.Bids,
		WinnerRepo:          repos.Winners,
		VehicleRepo:         repos.Vehicles,
		Locks:               locks,
		Broadcaster:         redisBroadcaster,
		Metrics:             recorder,
		DefaultTimerSeconds: cfg.Engine.DefaultTimerSeconds,
		Logger:              log.Logger,
	})
	bidService, err := app.NewBidService(app.BidServiceParams{
		BidRepo:     repos.Bids,
		LotRepo:     repos.Lots,
		AuctionRepo: repos.Auctions,
		WinnerRepo:  repos.Winners,
		BidderRepo:  repos.Bidders,
		Locks:       locks,
		Broadcaster: redisBroadcaster,
		Metrics:     recorder,
		Policy: bidding.Policy{
			ProxyCeiling: proxyCeiling,
			RateLimit:    cfg.Engine.BidRateLimit,
			RateWindow:   cfg.Engine.BidRateWindow,
		},
		WinnerCacheSize: cfg.Engine.WinnerCacheSize,
		Logger:          log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bid service")
	}

	log.Info().Msg("Business services initialized")

	lotScheduler := scheduler.NewLotScheduler(scheduler.LotSchedulerParams{
		RedisClient: redisClient,
		Advancer:    auctionService,
		Interval:    cfg.Scheduler.Interval,
		RetryDelay:  cfg.Scheduler.RetryDelay,
		BatchSize:   cfg.Scheduler.BatchSize,
		MaxWorkers:  cfg.Scheduler.MaxWorkers,
		Logger:      log.Logger,
	})
	lotScheduler.Start()

	auctionService.SetScheduler(lotScheduler)
	bidService.SetScheduler(lotScheduler)
	log.Info().Msg("Lot scheduler started")

	wsServer := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		AuctionService: auctionService,
		BidService:     bidService,
		Broadcaster:    redisBroadcaster,
		Logger:         log.Logger,
	})

	go func() {
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start WebSocket server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	lotScheduler.Stop()
	log.Info().Msg("Lot scheduler stopped")

	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping WebSocket server")
	}

	log.Info().Msg("Graceful shutdown completed")
}

// openStorage returns the repositories for the configured driver and a close func
func openStorage(ctx context.Context, cfg *config.Config) (db.Repositories, func()) {
	if cfg.Storage == config.StorageMemory {
		store := memory.NewStore()
		log.Warn().Msg("Using in-memory storage; state is lost on restart")
		return db.Repositories{
			Auctions: store.Auctions(),
			Lots:     store.Lots(),
			Bids:     store.Bids(),
			Winners:  store.Winners(),
			Vehicles: store.Vehicles(),
			Bidders:  store.Bidders(),
		}, func() {}
	}

	dbConn, err := db.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, dbConn, log.Logger); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	return db.NewRepositoryFactory(dbConn).GetAllRepositories(), func() {
		if err := dbConn.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
