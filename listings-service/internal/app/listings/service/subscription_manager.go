package service

import (
	"context"
	"fmt"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/repository"
	"goodbites/pkg/logger"
	"goodbites/pkg/metrics"

	"github.com/rs/zerolog"
)

// Виды подписок для метрик и логов
const (
	subscriptionListings = "listings"
	subscriptionListing  = "listing"
	subscriptionReviews  = "reviews"
)

// Subscription - активная live-подписка. Нулевое значение - пустая подписка,
// её Cancel ничего не делает.
type Subscription struct {
	inner *docstore.Subscription
}

// Cancel снимает подписку. Повторные вызовы безопасны; после возврата
// новый вызов callback не начнётся.
func (s *Subscription) Cancel() {
	if s == nil || s.inner == nil {
		return
	}
	s.inner.Cancel()
}

// SubscriptionManager регистрирует постоянные подписки на выборки.
// Каждая доставка - полный текущий результат запроса.
type SubscriptionManager struct {
	store docstore.Store
	log   zerolog.Logger
}

func NewSubscriptionManager(store docstore.Store) *SubscriptionManager {
	return &SubscriptionManager{
		store: store,
		log:   logger.Component("subscription_manager"),
	}
}

// SubscribeListings подписывает cb на список заведений под spec.
// Первая доставка - текущий результат, дальше - при каждом его изменении.
func (m *SubscriptionManager) SubscribeListings(ctx context.Context, spec entity.FilterSpec, cb func([]entity.Listing)) (*Subscription, error) {
	if cb == nil {
		return m.rejectNilCallback(subscriptionListings)
	}

	q, err := repository.ComposeListingsQuery(repository.ListingsQuery(), spec)
	if err != nil {
		return &Subscription{}, fmt.Errorf("subscribe listings: %w", translate(err))
	}

	return m.watch(ctx, subscriptionListings, q, func(docs []docstore.Document) error {
		listings, err := repository.DecodeListings(docs)
		if err != nil {
			return err
		}
		cb(listings)
		return nil
	})
}

// SubscribeListing подписывает cb на одно заведение. nil в доставке -
// заведения нет в хранилище.
func (m *SubscriptionManager) SubscribeListing(ctx context.Context, id string, cb func(*entity.Listing)) (*Subscription, error) {
	if cb == nil {
		return m.rejectNilCallback(subscriptionListing)
	}
	if id == "" {
		return &Subscription{}, fmt.Errorf("subscribe listing: %w: empty listing id", ErrInvalidArgument)
	}

	return m.watch(ctx, subscriptionListing, repository.ListingByIDQuery(id), func(docs []docstore.Document) error {
		if len(docs) == 0 {
			cb(nil)
			return nil
		}
		listing, err := repository.DecodeListing(docs[0])
		if err != nil {
			return err
		}
		cb(&listing)
		return nil
	})
}

// SubscribeReviews подписывает cb на отзывы заведения, новые первыми
func (m *SubscriptionManager) SubscribeReviews(ctx context.Context, listingID string, cb func([]entity.Review)) (*Subscription, error) {
	if cb == nil {
		return m.rejectNilCallback(subscriptionReviews)
	}
	if listingID == "" {
		return &Subscription{}, fmt.Errorf("subscribe reviews: %w: empty listing id", ErrInvalidArgument)
	}

	return m.watch(ctx, subscriptionReviews, repository.ReviewsQuery(listingID), func(docs []docstore.Document) error {
		reviews, err := repository.DecodeReviews(docs)
		if err != nil {
			return err
		}
		cb(reviews)
		return nil
	})
}

func (m *SubscriptionManager) rejectNilCallback(kind string) (*Subscription, error) {
	m.log.Error().Str("kind", kind).Msg("Subscription rejected: nil callback")
	return &Subscription{}, fmt.Errorf("subscribe %s: %w: nil callback", kind, ErrInvalidArgument)
}

// watch регистрирует подписку в хранилище. Ошибка декодирования
// пропускает одну доставку: следующая изменённая выборка будет доставлена.
func (m *SubscriptionManager) watch(ctx context.Context, kind string, q docstore.Query, deliver func([]docstore.Document) error) (*Subscription, error) {
	log := m.log.With().Str("kind", kind).Str("collection", q.Collection).Logger()

	inner, err := m.store.Watch(ctx, q, func(docs []docstore.Document) {
		if err := deliver(docs); err != nil {
			log.Error().Err(err).Msg("Skipping delivery: failed to decode documents")
		}
	})
	if err != nil {
		return &Subscription{}, fmt.Errorf("subscribe %s: %w", kind, translate(err))
	}

	metrics.ListingSubscriptionsActive.WithLabelValues(kind).Inc()
	log.Debug().Msg("Subscription registered")

	// подписку может снять и хранилище при Close, поэтому gauge уменьшается здесь
	inner.AfterStop(func() {
		metrics.ListingSubscriptionsActive.WithLabelValues(kind).Dec()
		log.Debug().Msg("Subscription cancelled")
	})

	return &Subscription{inner: inner}, nil
}
