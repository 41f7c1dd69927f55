package mocks

import (
	"context"

	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/service"

	"github.com/stretchr/testify/mock"
)

// MockListingQueryService мок для ListingQueryService
type MockListingQueryService struct {
	mock.Mock
}

func (m *MockListingQueryService) FetchListings(ctx context.Context, spec entity.FilterSpec) ([]entity.Listing, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Listing), args.Error(1)
}

func (m *MockListingQueryService) FetchListingByID(ctx context.Context, id string) (*entity.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}

func (m *MockListingQueryService) FetchReviews(ctx context.Context, listingID string) ([]entity.Review, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

// MockReviewService мок для ReviewService
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) AddReview(ctx context.Context, listingID string, req entity.AddReviewRequest) (*entity.Review, error) {
	args := m.Called(ctx, listingID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

// MockLiveSubscriptionService мок для LiveSubscriptionService.
// Callback можно вызвать из Run, чтобы сымитировать доставку.
type MockLiveSubscriptionService struct {
	mock.Mock
}

func (m *MockLiveSubscriptionService) SubscribeListings(ctx context.Context, spec entity.FilterSpec, cb func([]entity.Listing)) (*service.Subscription, error) {
	args := m.Called(ctx, spec, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Subscription), args.Error(1)
}

func (m *MockLiveSubscriptionService) SubscribeListing(ctx context.Context, id string, cb func(*entity.Listing)) (*service.Subscription, error) {
	args := m.Called(ctx, id, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Subscription), args.Error(1)
}

func (m *MockLiveSubscriptionService) SubscribeReviews(ctx context.Context, listingID string, cb func([]entity.Review)) (*service.Subscription, error) {
	args := m.Called(ctx, listingID, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Subscription), args.Error(1)
}

// MockPhotoService мок для PhotoService
type MockPhotoService struct {
	mock.Mock
}

func (m *MockPhotoService) UpdateListingImage(ctx context.Context, listingID, filename, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, listingID, filename, contentType, data)
	return args.String(0), args.Error(1)
}
