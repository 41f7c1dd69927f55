package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goodbites/listings-service/internal/app/listings/config"
	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/docstore/memory"
	"goodbites/listings-service/internal/app/listings/docstore/mongostore"
	"goodbites/listings-service/internal/app/listings/handler"
	"goodbites/listings-service/internal/app/listings/identity"
	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/listings-service/internal/app/listings/infrastructure/assets"
	"goodbites/listings-service/internal/app/listings/infrastructure/cache"
	"goodbites/listings-service/internal/app/listings/infrastructure/messaging"
	"goodbites/listings-service/internal/app/listings/processor"
	"goodbites/listings-service/internal/app/listings/service"
	"goodbites/pkg/logger"
)

const serviceName = "listings-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.Log.Level)
	if cfg.Log.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.Log.LogstashAddr, serviceName, cfg.Log.Level); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", cfg.Log.LogstashAddr).Msg("Connected to Logstash")
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open document store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("Error closing document store")
		}
	}()

	var listingCache infrastructure.ListingCache
	if cfg.Redis.CacheTTL > 0 {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, listings cache disabled")
		} else {
			defer redisCache.Close()
			listingCache = redisCache
			logger.Info().Str("address", cfg.Redis.Address()).Dur("ttl", cfg.Redis.CacheTTL).Msg("Connected to Redis")
		}
	}

	var publisher infrastructure.MessagePublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaProducer.Close()
		publisher = kafkaProducer
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("Initialized Kafka producer")
	}

	assetStorage, assetHandler, err := openAssets(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize asset storage")
	}
	defer assetStorage.Close()

	reader := service.NewListingReader(store, listingCache)
	aggregator := service.NewRatingAggregator(store, identity.ContextProvider{}, listingCache, publisher)
	subscriptions := service.NewSubscriptionManager(store)
	photos := service.NewAssetService(store, assetStorage, listingCache)

	if cfg.Audit.Schedule != "" {
		audit := processor.NewAggregateAuditJob(store)
		if err := audit.Start(ctx, cfg.Audit.Schedule); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start aggregate audit")
		}
		defer audit.Stop()
	}

	authMiddleware := handler.NewAuthMiddleware(cfg.JWT.Secret)
	streamHandler := handler.NewStreamHandler(subscriptions)
	router := handler.SetupRoutes(
		handler.NewListingHandler(reader, aggregator, photos),
		streamHandler,
		assetHandler,
		authMiddleware,
	)

	// WriteTimeout не задан: SSE соединения живут дольше любого таймаута
	server := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Str("store", cfg.Store.Driver).
			Msg("Starting Listings Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Listings Service...")

	// SSE потоки не завершаются сами, Shutdown ждал бы их до таймаута
	streamHandler.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Listings Service stopped gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn().Msg("Using in-memory document store, data is lost on restart")
		return memory.New(memory.Options{MaxTxAttempts: cfg.Store.MaxTxAttempts}), nil
	}

	client, err := mongostore.Connect(ctx, cfg.MongoDB.URI)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("database", cfg.MongoDB.Database).Msg("Connected to MongoDB")

	return mongostore.New(ctx, client, cfg.MongoDB.Database, mongostore.Options{
		MaxTxAttempts: cfg.Store.MaxTxAttempts,
		ServiceName:   serviceName,
	}), nil
}

// openAssets возвращает хранилище фото и, для in-memory режима, обработчик раздачи
func openAssets(ctx context.Context, cfg *config.Config) (infrastructure.AssetStorage, *handler.AssetHandler, error) {
	if cfg.Assets.Driver == config.AssetsDriverGCS {
		gcs, err := assets.NewGCSStorage(ctx, assets.GCSConfig{
			Bucket:        cfg.Assets.Bucket,
			PublicBaseURL: cfg.Assets.PublicBaseURL,
			EmulatorHost:  cfg.Assets.EmulatorHost,
		})
		if err != nil {
			return nil, nil, err
		}
		return gcs, nil, nil
	}

	baseURL := cfg.Assets.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://" + cfg.Server.Address() + "/assets"
	}
	mem := assets.NewMemoryStorage(baseURL)
	return mem, handler.NewAssetHandler(mem), nil
}
