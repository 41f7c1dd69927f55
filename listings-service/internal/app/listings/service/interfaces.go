package service

import (
	"context"

	"goodbites/listings-service/internal/app/listings/entity"
)

// ListingQueryService - одноразовые выборки для HTTP слоя
type ListingQueryService interface {
	FetchListings(ctx context.Context, spec entity.FilterSpec) ([]entity.Listing, error)
	FetchListingByID(ctx context.Context, id string) (*entity.Listing, error)
	FetchReviews(ctx context.Context, listingID string) ([]entity.Review, error)
}

type ReviewService interface {
	AddReview(ctx context.Context, listingID string, req entity.AddReviewRequest) (*entity.Review, error)
}

type LiveSubscriptionService interface {
	SubscribeListings(ctx context.Context, spec entity.FilterSpec, cb func([]entity.Listing)) (*Subscription, error)
	SubscribeListing(ctx context.Context, id string, cb func(*entity.Listing)) (*Subscription, error)
	SubscribeReviews(ctx context.Context, listingID string, cb func([]entity.Review)) (*Subscription, error)
}

type PhotoService interface {
	UpdateListingImage(ctx context.Context, listingID, filename, contentType string, data []byte) (string, error)
}

var (
	_ ListingQueryService     = (*ListingReader)(nil)
	_ ReviewService           = (*RatingAggregator)(nil)
	_ LiveSubscriptionService = (*SubscriptionManager)(nil)
	_ PhotoService            = (*AssetService)(nil)
)
