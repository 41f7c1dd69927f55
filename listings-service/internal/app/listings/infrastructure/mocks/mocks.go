package mocks

import (
	"context"
	"sync"

	"goodbites/listings-service/internal/app/listings/entity"

	"github.com/stretchr/testify/mock"
)

// MockMessagePublisher мок для Kafka MessagePublisher
type MockMessagePublisher struct {
	mock.Mock
	mu       sync.Mutex
	Messages [][]byte
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, value)
	m.mu.Unlock()
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockListingCache мок для кеша списка заведений
type MockListingCache struct {
	mock.Mock
}

func (m *MockListingCache) Generation(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListingCache) GetListings(ctx context.Context, generation int64, spec entity.FilterSpec) ([]entity.Listing, bool, error) {
	args := m.Called(ctx, generation, spec)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]entity.Listing), args.Bool(1), args.Error(2)
}

func (m *MockListingCache) SetListings(ctx context.Context, generation int64, spec entity.FilterSpec, listings []entity.Listing) error {
	args := m.Called(ctx, generation, spec, listings)
	return args.Error(0)
}

func (m *MockListingCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockListingCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockAssetStorage мок для хранилища файлов
type MockAssetStorage struct {
	mock.Mock
}

func (m *MockAssetStorage) Store(ctx context.Context, data []byte, pathHint, contentType string) (string, error) {
	args := m.Called(ctx, data, pathHint, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockAssetStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}
