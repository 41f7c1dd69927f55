package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	generationKey   = "listings:generation"
	listingsKeyBase = "listings:snapshot"
	serviceName     = "listings-service"
)

// RedisCache хранит снимки списка заведений.
// Ключ снимка включает номер поколения; Invalidate увеличивает поколение,
// и старые снимки просто доживают свой TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ infrastructure.ListingCache = (*RedisCache)(nil)

func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Generation возвращает текущее поколение; отсутствие ключа - поколение 0
func (r *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		metrics.RecordRedisError(serviceName, "get_generation")
		return 0, fmt.Errorf("failed to get cache generation: %w", err)
	}
	return gen, nil
}

func (r *RedisCache) GetListings(ctx context.Context, generation int64, spec entity.FilterSpec) ([]entity.Listing, bool, error) {
	data, err := r.client.Get(ctx, snapshotKey(generation, spec)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		metrics.RecordRedisError(serviceName, "get_listings")
		return nil, false, fmt.Errorf("failed to get listings from cache: %w", err)
	}

	var listings []entity.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal listings: %w", err)
	}
	return listings, true, nil
}

func (r *RedisCache) SetListings(ctx context.Context, generation int64, spec entity.FilterSpec, listings []entity.Listing) error {
	if listings == nil {
		listings = []entity.Listing{}
	}
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("failed to marshal listings: %w", err)
	}

	if err := r.client.Set(ctx, snapshotKey(generation, spec), data, r.ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, "set_listings")
		return fmt.Errorf("failed to set listings in cache: %w", err)
	}
	return nil
}

// Invalidate начинает новое поколение снимков
func (r *RedisCache) Invalidate(ctx context.Context) error {
	if err := r.client.Incr(ctx, generationKey).Err(); err != nil {
		metrics.RecordRedisError(serviceName, "invalidate")
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func snapshotKey(generation int64, spec entity.FilterSpec) string {
	return listingsKeyBase + ":" + strconv.FormatInt(generation, 10) + ":" +
		strconv.Quote(spec.Category) + ":" + strconv.Quote(spec.City) + ":" +
		strconv.Itoa(spec.Price) + ":" + strconv.Quote(spec.Sort)
}
