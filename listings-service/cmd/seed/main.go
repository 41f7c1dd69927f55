// Команда seed заполняет хранилище сгенерированными заведениями с отзывами.
// Подключение берется из тех же переменных окружения, что и у сервиса.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goodbites/listings-service/internal/app/listings/config"
	"goodbites/listings-service/internal/app/listings/docstore/mongostore"
	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/listings-service/internal/app/listings/infrastructure/cache"
	"goodbites/listings-service/internal/app/listings/seed"
	"goodbites/listings-service/internal/app/listings/service"
	"goodbites/pkg/logger"
)

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	count := flag.Int("count", 20, "number of listings to generate")
	seedValue := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init("listings-seed", cfg.Log.Level)

	if cfg.Store.Driver != config.StoreDriverMongo {
		logger.Fatal().Str("driver", cfg.Store.Driver).Msg("Seeding requires STORE_DRIVER=mongo")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongostore.Connect(ctx, cfg.MongoDB.URI)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	store := mongostore.New(ctx, client, cfg.MongoDB.Database, mongostore.Options{ServiceName: "listings-seed"})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("Error closing document store")
		}
	}()

	// после загрузки сбрасываем кеш, иначе сервис до истечения TTL отдает старые списки
	var listingCache infrastructure.ListingCache
	if cfg.Redis.CacheTTL > 0 {
		if redisCache, err := cache.NewRedisCache(cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, cache will not be invalidated")
		} else {
			defer redisCache.Close()
			listingCache = redisCache
		}
	}

	samples := seed.NewGenerator(*seedValue).GenerateSampleData(*count)
	loaded, err := service.NewSeedLoader(store, listingCache).BulkLoad(ctx, samples)
	if err != nil {
		logger.Error().Err(err).Int("loaded", loaded).Int("requested", *count).Msg("Seeding finished with errors")
		exitCode = 1
		return
	}

	logger.Info().Int("loaded", loaded).Uint64("seed", *seedValue).Msg("Seeding completed")
}
