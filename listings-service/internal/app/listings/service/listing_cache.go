package service

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/pkg/metrics"

	"github.com/rs/zerolog"
)

// cacheStates - состояние доверия к каждому экземпляру кеша в процессе.
// Читатель и писатели получают кеш по отдельности, поэтому состояние
// привязано к самому кешу, а не к сервису.
var cacheStates sync.Map // infrastructure.ListingCache -> *cacheState

// cacheState считает неудачные сбросы кеша. Кеш не доверен, пока после
// последней неудачи не прошел успешный Invalidate: до этого в нем может
// лежать снимок, сделанный до уже закоммиченной записи.
type cacheState struct {
	failures  atomic.Uint64
	recovered atomic.Uint64
}

func (s *cacheState) trusted() bool {
	return s.recovered.Load() >= s.failures.Load()
}

// markRecovered отмечает, что неудачи до epoch включительно покрыты новым поколением
func (s *cacheState) markRecovered(epoch uint64) {
	for {
		cur := s.recovered.Load()
		if cur >= epoch || s.recovered.CompareAndSwap(cur, epoch) {
			return
		}
	}
}

// listingCache - кеш снимков вместе с его состоянием доверия; нулевое значение - кеш выключен
type listingCache struct {
	cache infrastructure.ListingCache
	state *cacheState
	log   zerolog.Logger
}

func newListingCache(cache infrastructure.ListingCache, log zerolog.Logger) listingCache {
	if cache == nil {
		return listingCache{log: log}
	}
	return listingCache{cache: cache, state: cacheStateOf(cache), log: log}
}

func cacheStateOf(cache infrastructure.ListingCache) *cacheState {
	if !reflect.TypeOf(cache).Comparable() {
		return &cacheState{}
	}
	state, _ := cacheStates.LoadOrStore(cache, &cacheState{})
	return state.(*cacheState)
}

// invalidate начинает новое поколение снимков. Неудача помечает кеш
// недоверенным для всех его пользователей в процессе.
func (c listingCache) invalidate(ctx context.Context) bool {
	if c.cache == nil {
		return true
	}

	epoch := c.state.failures.Load()
	if err := c.cache.Invalidate(ctx); err != nil {
		c.state.failures.Add(1)
		c.log.Warn().Err(err).Msg("Failed to invalidate listings cache, bypassing it until the next successful invalidation")
		return false
	}
	c.state.markRecovered(epoch)
	return true
}

// snapshot возвращает поколение кеша и снимок, если он есть.
// Поколение -1 - кеш нельзя использовать для этого чтения.
// Ошибки кеша не прерывают чтение: запрос уходит в хранилище.
func (c listingCache) snapshot(ctx context.Context, spec entity.FilterSpec) (int64, []entity.Listing, bool) {
	if c.cache == nil {
		return -1, nil, false
	}
	if !c.state.trusted() && !c.invalidate(ctx) {
		return -1, nil, false
	}

	generation, err := c.cache.Generation(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read cache generation")
		return -1, nil, false
	}

	listings, hit, err := c.cache.GetListings(ctx, generation, spec)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read listings from cache")
		return generation, nil, false
	}
	if hit {
		metrics.RecordCacheHit(serviceName, "listings")
		return generation, listings, true
	}
	metrics.RecordCacheMiss(serviceName, "listings")
	return generation, nil, false
}

func (c listingCache) store(ctx context.Context, generation int64, spec entity.FilterSpec, listings []entity.Listing) {
	if c.cache == nil || generation < 0 || !c.state.trusted() {
		return
	}
	if err := c.cache.SetListings(ctx, generation, spec, listings); err != nil {
		c.log.Warn().Err(err).Msg("Failed to write listings to cache")
	}
}
