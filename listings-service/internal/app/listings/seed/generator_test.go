package seed

import (
	"testing"

	"goodbites/listings-service/internal/app/listings/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSampleData_AggregatesMatchReviews(t *testing.T) {
	samples := NewGenerator(42).GenerateSampleData(50)

	require.Len(t, samples, 50)
	for _, s := range samples {
		num, sum, avg := Aggregate(s.Reviews)
		assert.Equal(t, num, s.Listing.NumRatings)
		assert.Equal(t, sum, s.Listing.SumRating)
		assert.InDelta(t, avg, s.Listing.AvgRating, 1e-9)

		assert.GreaterOrEqual(t, s.Listing.Price, entity.MinPriceTier)
		assert.LessOrEqual(t, s.Listing.Price, entity.MaxPriceTier)
		assert.False(t, s.Listing.Timestamp.IsZero())
		for _, r := range s.Reviews {
			assert.GreaterOrEqual(t, r.Rating, entity.MinRating)
			assert.LessOrEqual(t, r.Rating, entity.MaxRating)
			assert.NotEmpty(t, r.Text)
		}
	}
}

func TestGenerateSampleData_SameSeedSameData(t *testing.T) {
	a := NewGenerator(7).GenerateSampleData(5)
	b := NewGenerator(7).GenerateSampleData(5)

	for i := range a {
		assert.Equal(t, a[i].Listing.Name, b[i].Listing.Name)
		assert.Equal(t, a[i].Listing.City, b[i].Listing.City)
		assert.Equal(t, len(a[i].Reviews), len(b[i].Reviews))
	}
}

func TestAggregate_Empty(t *testing.T) {
	num, sum, avg := Aggregate(nil)

	assert.Zero(t, num)
	assert.Zero(t, sum)
	assert.Zero(t, avg)
}
