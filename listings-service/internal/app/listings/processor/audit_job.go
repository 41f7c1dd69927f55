package processor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/repository"
	"goodbites/pkg/logger"
	"goodbites/pkg/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Виды расхождений агрегатов, они же значения метки kind
const (
	DriftCount = "count"
	DriftSum   = "sum"
	DriftAvg   = "avg"
)

const (
	avgEpsilon    = 1e-9
	auditAttempts = 2
)

// Drift - расхождение агрегатов одного заведения с его отзывами
type Drift struct {
	ListingID string
	Kinds     []string

	StoredNum int
	StoredSum float64
	StoredAvg float64
	ActualNum int
	ActualSum float64
}

// AuditReport - итог одного прохода аудита.
// Skipped - заведения, агрегаты которых менялись во время проверки.
type AuditReport struct {
	Checked int
	Skipped int
	Drifts  []Drift
}

// AggregateAuditJob периодически сверяет агрегаты заведений с отзывами.
// Только читает хранилище: исправление агрегатов остаётся за оператором.
type AggregateAuditJob struct {
	cron  *cron.Cron
	store docstore.Store
	log   zerolog.Logger
}

// NewAggregateAuditJob создает задачу; расписание в формате cron с секундами
func NewAggregateAuditJob(store docstore.Store) *AggregateAuditJob {
	return &AggregateAuditJob{
		cron:  cron.New(cron.WithSeconds()),
		store: store,
		log:   logger.Component("aggregate_audit"),
	}
}

func (j *AggregateAuditJob) Start(ctx context.Context, schedule string) error {
	j.log.Info().Str("schedule", schedule).Msg("Starting aggregate audit scheduler")

	_, err := j.cron.AddFunc(schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Error().Err(err).Msg("Aggregate audit failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule aggregate audit %q: %w", schedule, err)
	}

	j.cron.Start()
	return nil
}

func (j *AggregateAuditJob) Stop() {
	j.log.Info().Msg("Stopping aggregate audit scheduler...")
	<-j.cron.Stop().Done()
}

// RunOnce проходит по всем заведениям и сравнивает num/sum/avg
// с пересчетом по отзывам. Итог выставляет в gauge по видам расхождений.
func (j *AggregateAuditJob) RunOnce(ctx context.Context) (*AuditReport, error) {
	docs, err := j.store.Find(ctx, repository.ListingsQuery())
	if err != nil {
		return nil, fmt.Errorf("audit: list listings: %w", err)
	}

	report := &AuditReport{}
	for _, doc := range docs {
		listing, err := repository.DecodeListing(doc)
		if err != nil {
			j.log.Warn().Err(err).Str("listing_id", doc.ID).Msg("Skipping malformed listing")
			continue
		}

		d, stable, err := j.auditListing(ctx, listing)
		if err != nil {
			return nil, err
		}
		if !stable {
			report.Skipped++
			continue
		}

		report.Checked++
		if len(d.Kinds) == 0 {
			continue
		}

		j.log.Warn().
			Str("listing_id", d.ListingID).
			Strs("kinds", d.Kinds).
			Int("stored_num", d.StoredNum).
			Int("actual_num", d.ActualNum).
			Float64("stored_sum", d.StoredSum).
			Float64("actual_sum", d.ActualSum).
			Msg("Listing aggregates drifted from reviews")
		report.Drifts = append(report.Drifts, d)
	}

	drifted := map[string]int{DriftCount: 0, DriftSum: 0, DriftAvg: 0}
	for _, d := range report.Drifts {
		for _, kind := range d.Kinds {
			drifted[kind]++
		}
	}
	for kind, n := range drifted {
		metrics.AggregateAuditDriftListings.WithLabelValues(kind).Set(float64(n))
	}

	j.log.Info().
		Int("checked", report.Checked).
		Int("skipped", report.Skipped).
		Int("drifted", len(report.Drifts)).
		Msg("Aggregate audit completed")
	return report, nil
}

// auditListing сравнивает агрегаты заведения с его отзывами.
// Отзывы читаются отдельным запросом, поэтому после них заведение
// перечитывается: если агрегаты за это время изменились, сравнение
// повторяется один раз, а затем заведение пропускается (stable = false).
func (j *AggregateAuditJob) auditListing(ctx context.Context, listing entity.Listing) (Drift, bool, error) {
	for attempt := 0; attempt < auditAttempts; attempt++ {
		reviews, err := j.store.Find(ctx, repository.ReviewsQuery(listing.ID))
		if err != nil {
			return Drift{}, false, fmt.Errorf("audit: reviews of listing %s: %w", listing.ID, err)
		}
		decoded, err := repository.DecodeReviews(reviews)
		if err != nil {
			j.log.Warn().Err(err).Str("listing_id", listing.ID).Msg("Skipping listing with malformed reviews")
			return Drift{}, false, nil
		}

		doc, err := j.store.Get(ctx, repository.ListingsCollection, listing.ID)
		if errors.Is(err, docstore.ErrNotFound) {
			return Drift{}, false, nil
		}
		if err != nil {
			return Drift{}, false, fmt.Errorf("audit: reread listing %s: %w", listing.ID, err)
		}
		current, err := repository.DecodeListing(doc)
		if err != nil {
			j.log.Warn().Err(err).Str("listing_id", listing.ID).Msg("Skipping malformed listing")
			return Drift{}, false, nil
		}
		if !sameAggregates(listing, current) {
			j.log.Debug().Str("listing_id", listing.ID).Int("attempt", attempt+1).Msg("Listing changed during audit")
			listing = current
			continue
		}

		return compare(listing, decoded), true, nil
	}
	return Drift{}, false, nil
}

func sameAggregates(a, b entity.Listing) bool {
	return a.NumRatings == b.NumRatings && a.SumRating == b.SumRating && a.AvgRating == b.AvgRating
}

func compare(listing entity.Listing, reviews []entity.Review) Drift {
	actualSum := 0.0
	for _, r := range reviews {
		actualSum += float64(r.Rating)
	}

	d := Drift{
		ListingID: listing.ID,
		StoredNum: listing.NumRatings,
		StoredSum: listing.SumRating,
		StoredAvg: listing.AvgRating,
		ActualNum: len(reviews),
		ActualSum: actualSum,
	}
	if d.StoredNum != d.ActualNum {
		d.Kinds = append(d.Kinds, DriftCount)
	}
	if math.Abs(d.StoredSum-d.ActualSum) > avgEpsilon {
		d.Kinds = append(d.Kinds, DriftSum)
	}
	if math.Abs(d.StoredAvg-expectedAvg(d.ActualNum, d.ActualSum)) > avgEpsilon {
		d.Kinds = append(d.Kinds, DriftAvg)
	}
	return d
}

func expectedAvg(num int, sum float64) float64 {
	if num == 0 {
		return 0
	}
	return sum / float64(num)
}
