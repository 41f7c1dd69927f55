package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/identity"
	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/listings-service/internal/app/listings/repository"
	"goodbites/pkg/logger"
	"goodbites/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RatingAggregator добавляет отзывы и поддерживает агрегаты рейтинга заведения.
// Согласованность агрегатов обеспечивает транзакция хранилища, без блокировок в сервисе.
type RatingAggregator struct {
	store     docstore.Store
	identity  identity.Provider
	cache     listingCache
	publisher infrastructure.MessagePublisher // может быть nil
	now       func() time.Time
	log       zerolog.Logger
}

// NewRatingAggregator создает агрегатор; cache и publisher могут быть nil
func NewRatingAggregator(
	store docstore.Store,
	identityProvider identity.Provider,
	cache infrastructure.ListingCache,
	publisher infrastructure.MessagePublisher,
) *RatingAggregator {
	log := logger.Component("rating_aggregator")
	return &RatingAggregator{
		store:     store,
		identity:  identityProvider,
		cache:     newListingCache(cache, log),
		publisher: publisher,
		now:       time.Now,
		log:       log,
	}
}

// WithClock подменяет источник времени отзывов
func (a *RatingAggregator) WithClock(now func() time.Time) *RatingAggregator {
	a.now = now
	return a
}

// ratingResult - агрегаты заведения после коммита
type ratingResult struct {
	numRatings int
	avgRating  float64
}

// AddReview атомарно добавляет отзыв и пересчитывает агрегаты заведения.
// 1. Проверяет аргументы до обращения к хранилищу
// 2. В одной транзакции обновляет агрегаты и вставляет отзыв
// 3. После коммита сбрасывает кеш и отправляет событие REVIEW_CREATED в Kafka
func (a *RatingAggregator) AddReview(ctx context.Context, listingID string, req entity.AddReviewRequest) (*entity.Review, error) {
	if err := validateReview(listingID, req); err != nil {
		return nil, fmt.Errorf("add review to listing %s: %w", listingID, err)
	}

	review := entity.Review{
		ID:        a.store.NewID(),
		ListingID: listingID,
		Rating:    req.Rating,
		Text:      req.Text,
		UserName:  req.UserName,
		// хранилище держит время с точностью до миллисекунд
		Timestamp: a.now().UTC().Truncate(time.Millisecond),
	}
	if a.identity != nil {
		if callerID, ok := a.identity.CurrentCallerID(ctx); ok {
			review.UserID = callerID
		}
	}

	result, err := a.applyRatingTransaction(ctx, listingID, review.ID, review)
	if err != nil {
		return nil, fmt.Errorf("add review to listing %s: %w", listingID, err)
	}

	metrics.RecordReviewCreated(review.Rating)
	a.cache.invalidate(ctx)
	a.publishReviewCreated(ctx, review, result)

	return &review, nil
}

func validateReview(listingID string, req entity.AddReviewRequest) error {
	if listingID == "" {
		return fmt.Errorf("%w: empty listing id", ErrInvalidArgument)
	}
	if req.Rating < entity.MinRating || req.Rating > entity.MaxRating {
		return fmt.Errorf("%w: rating %d out of range %d..%d", ErrInvalidArgument, req.Rating, entity.MinRating, entity.MaxRating)
	}
	if utf8.RuneCountInString(req.Text) > entity.MaxReviewText {
		return fmt.Errorf("%w: review text longer than %d characters", ErrInvalidArgument, entity.MaxReviewText)
	}
	return nil
}

// applyRatingTransaction читает агрегаты заведения, пересчитывает их и
// вместе с ними вставляет отзыв. При конфликте хранилище перезапускает
// тело транзакции со свежим чтением.
func (a *RatingAggregator) applyRatingTransaction(ctx context.Context, listingID, reviewID string, review entity.Review) (ratingResult, error) {
	var result ratingResult
	attempts := 0

	err := a.store.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		attempts++
		metrics.RatingTxAttempts.Inc()
		if attempts > 1 {
			a.log.Debug().Str("listing_id", listingID).Int("attempt", attempts).Msg("Retrying rating transaction")
		}

		doc, err := tx.Get(repository.ListingsCollection, listingID)
		if err != nil {
			return err
		}
		numRatings, sumRating, err := repository.DecodeRatingAggregate(doc)
		if err != nil {
			return err
		}

		newNum := numRatings + 1
		newSum := sumRating + float64(review.Rating)
		newAvg := newSum / float64(newNum)

		if err := tx.Update(repository.ListingsCollection, listingID, repository.AggregateFields(newNum, newSum, newAvg)); err != nil {
			return err
		}
		if err := tx.Insert(repository.ReviewsCollection, docstore.Document{ID: reviewID, Data: repository.EncodeReview(review)}); err != nil {
			return err
		}

		result = ratingResult{numRatings: newNum, avgRating: newAvg}
		return nil
	})
	if err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			metrics.RatingTxConflicts.Inc()
			a.log.Warn().Str("listing_id", listingID).Int("attempts", attempts).Msg("Rating transaction retry budget exhausted")
		}
		return ratingResult{}, translate(err)
	}
	return result, nil
}

// publishReviewCreated отправляет событие в Kafka. Ошибка только логируется:
// отзыв уже закоммичен.
func (a *RatingAggregator) publishReviewCreated(ctx context.Context, review entity.Review, result ratingResult) {
	if a.publisher == nil {
		return
	}

	event := entity.ReviewEvent{
		EventID:    uuid.NewString(),
		EventType:  entity.ReviewCreatedEvent,
		ReviewID:   review.ID,
		ListingID:  review.ListingID,
		UserID:     review.UserID,
		Rating:     review.Rating,
		NumRatings: result.numRatings,
		AvgRating:  result.avgRating,
		Timestamp:  review.Timestamp,
	}

	data, err := json.Marshal(event)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to marshal review event")
		return
	}

	// ключ - ID заведения, чтобы события одного заведения шли в одну партицию
	if err := a.publisher.PublishMessage(ctx, review.ListingID, data); err != nil {
		a.log.Warn().Err(err).Str("review_id", review.ID).Msg("Failed to publish review created event")
	}
}
