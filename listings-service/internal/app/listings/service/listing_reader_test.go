package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/docstore/memory"
	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/infrastructure/mocks"
	"goodbites/listings-service/internal/app/listings/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func numRatingsOf(listings []entity.Listing) []int {
	out := make([]int, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.NumRatings)
	}
	return out
}

func TestFetchListings_CityOrderedByReviewCount(t *testing.T) {
	store := memory.New(memory.Options{})
	insertListing(t, store, entity.Listing{Name: "A", City: "London", NumRatings: 3})
	insertListing(t, store, entity.Listing{Name: "B", City: "London", NumRatings: 10})
	insertListing(t, store, entity.Listing{Name: "C", City: "Paris", NumRatings: 50})
	insertListing(t, store, entity.Listing{Name: "D", City: "London", NumRatings: 7})

	listings, err := NewListingReader(store, nil).FetchListings(context.Background(),
		entity.FilterSpec{City: "London", Sort: entity.SortByReview})

	require.NoError(t, err)
	assert.Equal(t, []int{10, 7, 3}, numRatingsOf(listings))
}

func TestFetchListings_DefaultSortByAverageRating(t *testing.T) {
	store := memory.New(memory.Options{})
	insertListing(t, store, entity.Listing{Name: "low", AvgRating: 2.5})
	insertListing(t, store, entity.Listing{Name: "high", AvgRating: 4.8})
	insertListing(t, store, entity.Listing{Name: "mid", AvgRating: 3.9})

	listings, err := NewListingReader(store, nil).FetchListings(context.Background(), entity.FilterSpec{})

	require.NoError(t, err)
	require.Len(t, listings, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{listings[0].Name, listings[1].Name, listings[2].Name})
}

func TestFetchListings_AllFilters(t *testing.T) {
	store := memory.New(memory.Options{})
	insertListing(t, store, entity.Listing{Name: "match", Category: "Sushi", City: "Paris", Price: 2})
	insertListing(t, store, entity.Listing{Name: "other price", Category: "Sushi", City: "Paris", Price: 3})
	insertListing(t, store, entity.Listing{Name: "other city", Category: "Sushi", City: "London", Price: 2})

	listings, err := NewListingReader(store, nil).FetchListings(context.Background(),
		entity.FilterSpec{Category: "Sushi", City: "Paris", Price: 2})

	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "match", listings[0].Name)
}

func TestFetchListings_InvalidPrice(t *testing.T) {
	store := memory.New(memory.Options{})

	_, err := NewListingReader(store, nil).FetchListings(context.Background(), entity.FilterSpec{Price: 9})

	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestFetchListings_MalformedTimestamp(t *testing.T) {
	store := memory.New(memory.Options{})
	_, err := store.Insert(context.Background(), repository.ListingsCollection, docstore.Document{
		ID:   "broken",
		Data: bson.M{repository.FieldName: "No time", repository.FieldTimestamp: "not a date"},
	})
	require.NoError(t, err)

	_, err = NewListingReader(store, nil).FetchListings(context.Background(), entity.FilterSpec{})

	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestFetchListings_StoreUnavailable(t *testing.T) {
	store := memory.New(memory.Options{})
	store.SetUnavailable(true)

	_, err := NewListingReader(store, nil).FetchListings(context.Background(), entity.FilterSpec{})

	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFetchListings_CancelledContext(t *testing.T) {
	store := memory.New(memory.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewListingReader(store, nil).FetchListings(ctx, entity.FilterSpec{})

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchListings_CacheHitSkipsStore(t *testing.T) {
	store := memory.New(memory.Options{})
	store.SetUnavailable(true)
	cache := new(mocks.MockListingCache)
	ctx := context.Background()
	spec := entity.FilterSpec{City: "London"}
	cached := []entity.Listing{{ID: "l1", Name: "Cached"}}

	cache.On("Generation", ctx).Return(int64(3), nil)
	cache.On("GetListings", ctx, int64(3), spec).Return(cached, true, nil)

	listings, err := NewListingReader(store, cache).FetchListings(ctx, spec)

	require.NoError(t, err)
	assert.Equal(t, cached, listings)
	cache.AssertNotCalled(t, "SetListings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchListings_CacheMissStoresSnapshot(t *testing.T) {
	store := memory.New(memory.Options{})
	insertListing(t, store, entity.Listing{ID: "l1", Name: "Fresh"})
	cache := new(mocks.MockListingCache)
	ctx := context.Background()
	spec := entity.FilterSpec{}

	cache.On("Generation", ctx).Return(int64(5), nil)
	cache.On("GetListings", ctx, int64(5), spec).Return(nil, false, nil)
	cache.On("SetListings", ctx, int64(5), spec, mock.MatchedBy(func(l []entity.Listing) bool {
		return len(l) == 1 && l[0].ID == "l1"
	})).Return(nil).Once()

	listings, err := NewListingReader(store, cache).FetchListings(ctx, spec)

	require.NoError(t, err)
	assert.Len(t, listings, 1)
	cache.AssertExpectations(t)
}

func TestFetchListings_CacheFailureFallsBackToStore(t *testing.T) {
	store := memory.New(memory.Options{})
	insertListing(t, store, entity.Listing{ID: "l1"})
	cache := new(mocks.MockListingCache)

	cache.On("Generation", mock.Anything).Return(int64(0), errors.New("redis down"))

	listings, err := NewListingReader(store, cache).FetchListings(context.Background(), entity.FilterSpec{})

	require.NoError(t, err)
	assert.Len(t, listings, 1)
	cache.AssertNotCalled(t, "SetListings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchListingByID(t *testing.T) {
	store := memory.New(memory.Options{})
	id := insertListing(t, store, entity.Listing{Name: "Cafe", Category: "Brunch", City: "Paris", Price: 2, Photo: "p.png"})
	reader := NewListingReader(store, nil)

	l, err := reader.FetchListingByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, l.ID)
	assert.Equal(t, "Cafe", l.Name)
	assert.Equal(t, 2, l.Price)
	assert.Equal(t, "p.png", l.Photo)

	_, err = reader.FetchListingByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reader.FetchListingByID(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFetchReviews_NewestFirstTiesByID(t *testing.T) {
	store := memory.New(memory.Options{})
	insertListing(t, store, entity.Listing{ID: "l1"})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, r := range []entity.Review{
		{ID: "r1", ListingID: "l1", Rating: 3, Timestamp: base},
		{ID: "r2", ListingID: "l1", Rating: 4, Timestamp: base.Add(time.Hour)},
		{ID: "r3", ListingID: "l1", Rating: 5, Timestamp: base},
		{ID: "other", ListingID: "l2", Rating: 1, Timestamp: base},
	} {
		_, err := store.Insert(context.Background(), repository.ReviewsCollection, docstore.Document{ID: r.ID, Data: repository.EncodeReview(r)})
		require.NoError(t, err)
	}

	reviews, err := NewListingReader(store, nil).FetchReviews(context.Background(), "l1")

	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, []string{"r2", "r3", "r1"}, []string{reviews[0].ID, reviews[1].ID, reviews[2].ID})
}

func TestFetchReviews_EmptyForUnknownListing(t *testing.T) {
	store := memory.New(memory.Options{})

	reviews, err := NewListingReader(store, nil).FetchReviews(context.Background(), "nope")

	require.NoError(t, err)
	assert.Empty(t, reviews)
}
