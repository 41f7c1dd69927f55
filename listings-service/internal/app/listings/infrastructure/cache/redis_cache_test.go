package cache

import (
	"context"
	"testing"
	"time"

	"goodbites/listings-service/internal/app/listings/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RedisCacheTestSuite тестовый suite для кеша на miniredis
type RedisCacheTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	cache     *RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheTestSuite))
}

func (s *RedisCacheTestSuite) SetupSuite() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.cache, err = NewRedisCache(s.miniRedis.Addr(), "", 0, 10*time.Minute)
	require.NoError(s.T(), err)
}

func (s *RedisCacheTestSuite) SetupTest() {
	s.miniRedis.FlushAll()
}

func (s *RedisCacheTestSuite) TearDownSuite() {
	s.cache.Close()
	s.miniRedis.Close()
}

func (s *RedisCacheTestSuite) TestGeneration_StartsAtZero() {
	gen, err := s.cache.Generation(context.Background())

	s.NoError(err)
	s.Equal(int64(0), gen)
}

func (s *RedisCacheTestSuite) TestSetAndGet() {
	ctx := context.Background()
	spec := entity.FilterSpec{City: "London", Sort: entity.SortByReview}
	listings := []entity.Listing{{ID: "l1", Name: "Cafe", NumRatings: 3, AvgRating: 4.5}}

	s.Require().NoError(s.cache.SetListings(ctx, 0, spec, listings))

	got, hit, err := s.cache.GetListings(ctx, 0, spec)
	s.NoError(err)
	s.True(hit)
	s.Equal(listings, got)

	// другой spec - другой ключ
	_, hit, err = s.cache.GetListings(ctx, 0, entity.FilterSpec{City: "Paris"})
	s.NoError(err)
	s.False(hit)
}

func (s *RedisCacheTestSuite) TestInvalidate_HidesOldSnapshots() {
	ctx := context.Background()
	spec := entity.FilterSpec{}

	gen, err := s.cache.Generation(ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.cache.SetListings(ctx, gen, spec, []entity.Listing{{ID: "stale"}}))

	s.Require().NoError(s.cache.Invalidate(ctx))

	newGen, err := s.cache.Generation(ctx)
	s.Require().NoError(err)
	s.Equal(gen+1, newGen)

	_, hit, err := s.cache.GetListings(ctx, newGen, spec)
	s.NoError(err)
	s.False(hit)
}

func (s *RedisCacheTestSuite) TestEmptyResultIsCached() {
	ctx := context.Background()

	s.Require().NoError(s.cache.SetListings(ctx, 0, entity.FilterSpec{Category: "None"}, nil))

	got, hit, err := s.cache.GetListings(ctx, 0, entity.FilterSpec{Category: "None"})
	s.NoError(err)
	s.True(hit)
	s.Empty(got)
}

func (s *RedisCacheTestSuite) TestTTLApplied() {
	ctx := context.Background()
	s.Require().NoError(s.cache.SetListings(ctx, 0, entity.FilterSpec{}, []entity.Listing{{ID: "l1"}}))

	s.miniRedis.FastForward(11 * time.Minute)

	_, hit, err := s.cache.GetListings(ctx, 0, entity.FilterSpec{})
	s.NoError(err)
	s.False(hit)
}

func (s *RedisCacheTestSuite) TestRedisDown() {
	cache, err := NewRedisCache(s.miniRedis.Addr(), "", 0, time.Minute)
	s.Require().NoError(err)
	defer cache.Close()

	s.miniRedis.SetError("server unavailable")
	defer s.miniRedis.SetError("")

	_, err = cache.Generation(context.Background())
	s.Error(err)
	s.Error(cache.Invalidate(context.Background()))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache("127.0.0.1:1", "", 0, time.Minute)
	require.Error(t, err)
}
