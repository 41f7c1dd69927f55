package service

import (
	"context"
	"errors"
	"fmt"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/listings-service/internal/app/listings/repository"
	"goodbites/listings-service/internal/app/listings/seed"
	"goodbites/pkg/logger"

	"github.com/rs/zerolog"
)

// SeedLoader записывает готовые заведения с отзывами напрямую в хранилище,
// минуя агрегатор: агрегаты в Sample уже посчитаны генератором
type SeedLoader struct {
	store docstore.Store
	cache listingCache
	log   zerolog.Logger
}

func NewSeedLoader(store docstore.Store, cache infrastructure.ListingCache) *SeedLoader {
	log := logger.Component("seed_loader")
	return &SeedLoader{
		store: store,
		cache: newListingCache(cache, log),
		log:   log,
	}
}

// BulkLoad вставляет каждое заведение, затем его отзывы.
// Ошибка одного заведения не останавливает загрузку остальных;
// возвращает число загруженных заведений и объединенную ошибку.
func (l *SeedLoader) BulkLoad(ctx context.Context, samples []seed.Sample) (int, error) {
	var errs []error
	loaded := 0

	for i, s := range samples {
		if err := ctx.Err(); err != nil {
			errs = append(errs, translate(err))
			break
		}

		id, err := l.store.Insert(ctx, repository.ListingsCollection, docstore.Document{
			ID:   s.Listing.ID,
			Data: repository.EncodeListing(s.Listing),
		})
		if err != nil {
			l.log.Error().Err(err).Int("sample", i).Msg("Failed to insert listing")
			errs = append(errs, fmt.Errorf("load listing %q: %w", s.Listing.Name, translate(err)))
			continue
		}

		for _, r := range s.Reviews {
			r.ListingID = id
			if _, err := l.store.Insert(ctx, repository.ReviewsCollection, docstore.Document{
				ID:   r.ID,
				Data: repository.EncodeReview(r),
			}); err != nil {
				l.log.Error().Err(err).Str("listing_id", id).Msg("Failed to insert review")
				errs = append(errs, fmt.Errorf("load review of listing %s: %w", id, translate(err)))
			}
		}
		loaded++
	}

	if loaded > 0 {
		l.cache.invalidate(ctx)
	}

	l.log.Info().Int("loaded", loaded).Int("total", len(samples)).Msg("Sample data loaded")
	return loaded, errors.Join(errs...)
}
