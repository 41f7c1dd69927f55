package processor

import (
	"context"
	"testing"
	"time"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/docstore/memory"
	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/repository"
	"goodbites/listings-service/internal/app/listings/service"
	"goodbites/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var auditTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedListing(t *testing.T, store docstore.Store, l entity.Listing, ratings ...int) {
	t.Helper()
	l.Timestamp = auditTime
	_, err := store.Insert(context.Background(), repository.ListingsCollection, docstore.Document{
		ID:   l.ID,
		Data: repository.EncodeListing(l),
	})
	require.NoError(t, err)

	for _, rating := range ratings {
		_, err := store.Insert(context.Background(), repository.ReviewsCollection, docstore.Document{
			Data: repository.EncodeReview(entity.Review{ListingID: l.ID, Rating: rating, Timestamp: auditTime}),
		})
		require.NoError(t, err)
	}
}

func TestRunOnce_ConsistentAggregates(t *testing.T) {
	store := memory.New(memory.Options{})
	seedListing(t, store, entity.Listing{ID: "l1", NumRatings: 2, SumRating: 7, AvgRating: 3.5}, 3, 4)
	seedListing(t, store, entity.Listing{ID: "l2"})

	report, err := NewAggregateAuditJob(store).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Empty(t, report.Drifts)
}

func TestRunOnce_DetectsDrift(t *testing.T) {
	store := memory.New(memory.Options{})
	seedListing(t, store, entity.Listing{ID: "ok", NumRatings: 1, SumRating: 5, AvgRating: 5}, 5)
	seedListing(t, store, entity.Listing{ID: "lost-review", NumRatings: 1, SumRating: 4, AvgRating: 4}, 4, 2)
	seedListing(t, store, entity.Listing{ID: "bad-avg", NumRatings: 2, SumRating: 6, AvgRating: 2}, 1, 5)

	job := NewAggregateAuditJob(store)
	report, err := job.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	require.Len(t, report.Drifts, 2)

	byID := map[string]Drift{}
	for _, d := range report.Drifts {
		byID[d.ListingID] = d
	}
	assert.ElementsMatch(t, []string{DriftCount, DriftSum, DriftAvg}, byID["lost-review"].Kinds)
	assert.Equal(t, 2, byID["lost-review"].ActualNum)
	assert.Equal(t, 6.0, byID["lost-review"].ActualSum)
	assert.Equal(t, []string{DriftAvg}, byID["bad-avg"].Kinds)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AggregateAuditDriftListings.WithLabelValues(DriftCount)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AggregateAuditDriftListings.WithLabelValues(DriftSum)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AggregateAuditDriftListings.WithLabelValues(DriftAvg)))

	// повторный проход по исправленным данным обнуляет gauge, а не копит счетчик
	fixed := memory.New(memory.Options{})
	seedListing(t, fixed, entity.Listing{ID: "ok", NumRatings: 1, SumRating: 5, AvgRating: 5}, 5)
	_, err = NewAggregateAuditJob(fixed).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AggregateAuditDriftListings.WithLabelValues(DriftAvg)))
}

// reviewsHookStore выполняет hook перед каждым чтением отзывов
type reviewsHookStore struct {
	docstore.Store
	hook func()
}

func (s *reviewsHookStore) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if q.Collection == repository.ReviewsCollection && s.hook != nil {
		s.hook()
	}
	return s.Store.Find(ctx, q)
}

func TestRunOnce_ReviewAddedBetweenReadsIsNotDrift(t *testing.T) {
	inner := memory.New(memory.Options{})
	seedListing(t, inner, entity.Listing{ID: "l1", NumRatings: 2, SumRating: 6, AvgRating: 3}, 4, 2)

	store := &reviewsHookStore{Store: inner}
	aggregator := service.NewRatingAggregator(inner, nil, nil, nil)
	store.hook = func() {
		store.hook = nil
		_, err := aggregator.AddReview(context.Background(), "l1", entity.AddReviewRequest{Rating: 5})
		require.NoError(t, err)
	}

	report, err := NewAggregateAuditJob(store).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Zero(t, report.Skipped)
	assert.Empty(t, report.Drifts)
}

func TestRunOnce_ListingChangingOnEveryReadIsSkipped(t *testing.T) {
	inner := memory.New(memory.Options{})
	seedListing(t, inner, entity.Listing{ID: "l1", NumRatings: 1, SumRating: 3, AvgRating: 3}, 3)

	aggregator := service.NewRatingAggregator(inner, nil, nil, nil)
	store := &reviewsHookStore{Store: inner, hook: func() {
		_, err := aggregator.AddReview(context.Background(), "l1", entity.AddReviewRequest{Rating: 4})
		require.NoError(t, err)
	}}

	report, err := NewAggregateAuditJob(store).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Drifts)
}

func TestRunOnce_DoesNotModifyStore(t *testing.T) {
	store := memory.New(memory.Options{})
	seedListing(t, store, entity.Listing{ID: "l1", NumRatings: 9, SumRating: 9, AvgRating: 1}, 3)

	_, err := NewAggregateAuditJob(store).RunOnce(context.Background())
	require.NoError(t, err)

	doc, err := store.Get(context.Background(), repository.ListingsCollection, "l1")
	require.NoError(t, err)
	num, sum, err := repository.DecodeRatingAggregate(doc)
	require.NoError(t, err)
	assert.Equal(t, 9, num)
	assert.Equal(t, 9.0, sum)
}

func TestRunOnce_StoreUnavailable(t *testing.T) {
	store := memory.New(memory.Options{})
	store.SetUnavailable(true)
	job := NewAggregateAuditJob(store)

	report, err := job.RunOnce(context.Background())

	assert.ErrorIs(t, err, docstore.ErrUnavailable)
	assert.Nil(t, report)
}

func TestAuditJob_StartStop(t *testing.T) {
	job := NewAggregateAuditJob(memory.New(memory.Options{}))

	require.NoError(t, job.Start(context.Background(), "0 */30 * * * *"))
	assert.Len(t, job.cron.Entries(), 1)

	job.Stop()
}

func TestAuditJob_InvalidSchedule(t *testing.T) {
	job := NewAggregateAuditJob(memory.New(memory.Options{}))

	err := job.Start(context.Background(), "every now and then")

	assert.Error(t, err)
	assert.Empty(t, job.cron.Entries())
}
