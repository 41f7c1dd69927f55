package service

import (
	"context"
	"fmt"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/listings-service/internal/app/listings/repository"
	"goodbites/pkg/logger"
)

const serviceName = "listings-service"

// ListingReader выполняет одноразовые выборки заведений и отзывов
type ListingReader struct {
	store docstore.Store
	cache listingCache
}

// NewListingReader создает читателя; cache может быть nil
func NewListingReader(store docstore.Store, cache infrastructure.ListingCache) *ListingReader {
	return &ListingReader{
		store: store,
		cache: newListingCache(cache, logger.Component("listing_reader")),
	}
}

// FetchListings возвращает заведения, подходящие под spec, в порядке сортировки spec.
// Если подключен кеш и ему можно доверять, сначала проверяется снимок текущего поколения.
func (r *ListingReader) FetchListings(ctx context.Context, spec entity.FilterSpec) ([]entity.Listing, error) {
	q, err := repository.ComposeListingsQuery(repository.ListingsQuery(), spec)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", translate(err))
	}

	generation, cached, ok := r.cache.snapshot(ctx, spec)
	if ok {
		return cached, nil
	}

	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", translate(err))
	}
	listings, err := repository.DecodeListings(docs)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", translate(err))
	}

	r.cache.store(ctx, generation, spec, listings)
	return listings, nil
}

// FetchListingByID возвращает одно заведение или ErrNotFound
func (r *ListingReader) FetchListingByID(ctx context.Context, id string) (*entity.Listing, error) {
	if id == "" {
		return nil, fmt.Errorf("fetch listing: %w: empty listing id", ErrInvalidArgument)
	}

	doc, err := r.store.Get(ctx, repository.ListingsCollection, id)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", id, translate(err))
	}

	listing, err := repository.DecodeListing(doc)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", id, translate(err))
	}
	return &listing, nil
}

// FetchReviews возвращает отзывы заведения, новые первыми.
// Отзывы несуществующего заведения - пустой список, как и в хранилище.
func (r *ListingReader) FetchReviews(ctx context.Context, listingID string) ([]entity.Review, error) {
	if listingID == "" {
		return nil, fmt.Errorf("fetch reviews: %w: empty listing id", ErrInvalidArgument)
	}

	docs, err := r.store.Find(ctx, repository.ReviewsQuery(listingID))
	if err != nil {
		return nil, fmt.Errorf("fetch reviews of listing %s: %w", listingID, translate(err))
	}

	reviews, err := repository.DecodeReviews(docs)
	if err != nil {
		return nil, fmt.Errorf("fetch reviews of listing %s: %w", listingID, translate(err))
	}
	return reviews, nil
}
