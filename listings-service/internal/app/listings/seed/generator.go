// Package seed генерирует демонстрационные заведения с отзывами
package seed

import (
	"fmt"
	"math/rand/v2"
	"time"

	"goodbites/listings-service/internal/app/listings/entity"
)

// Sample - заведение вместе с его отзывами; агрегаты заведения уже
// посчитаны по отзывам
type Sample struct {
	Listing entity.Listing
	Reviews []entity.Review
}

var (
	adjectives = []string{"Savory", "Golden", "Rustic", "Hidden", "Little", "Smoky", "Urban", "Royal", "Lucky", "Green"}
	nouns      = []string{"Spoon", "Garden", "Kitchen", "Table", "Corner", "Oven", "Bistro", "Diner", "Grill", "House"}
	categories = []string{"Brunch", "Burgers", "Coffee", "Deli", "Dim Sum", "Indian", "Italian", "Mediterranean", "Mexican", "Pizza", "Ramen", "Sushi"}
	cities     = []string{"Albuquerque", "Arlington", "Atlanta", "Austin", "Baltimore", "Boston", "Chicago", "Denver", "London", "Paris", "San Francisco", "Seattle"}
	comments   = map[int][]string{
		1: {"Would never eat here again!", "Cold food and slow service."},
		2: {"Not my cup of tea.", "Overpriced for what you get."},
		3: {"Exactly okay :/", "Decent, nothing special."},
		4: {"Actually pretty good, would recommend!", "Friendly staff and tasty plates."},
		5: {"This is my favorite place. Literally.", "Best meal I've had in months."},
	}
)

const maxReviewsPerListing = 5

// Generator выдает псевдослучайные, но воспроизводимые данные
type Generator struct {
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator создает генератор; одинаковый seed дает одинаковые данные
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewPCG(seed, seed^0x5eed)),
		now: time.Now,
	}
}

// GenerateSampleData возвращает n заведений, у каждого от 0 до 5 отзывов
func (g *Generator) GenerateSampleData(n int) []Sample {
	now := g.now().UTC().Truncate(time.Millisecond)
	samples := make([]Sample, 0, n)

	for i := 0; i < n; i++ {
		created := now.Add(-time.Duration(g.rnd.IntN(90*24)) * time.Hour)
		listing := entity.Listing{
			Name:      fmt.Sprintf("%s %s", pick(g.rnd, adjectives), pick(g.rnd, nouns)),
			Category:  pick(g.rnd, categories),
			City:      pick(g.rnd, cities),
			Price:     entity.MinPriceTier + g.rnd.IntN(entity.MaxPriceTier),
			Timestamp: created,
		}

		reviewCount := g.rnd.IntN(maxReviewsPerListing + 1)
		reviews := make([]entity.Review, 0, reviewCount)
		for j := 0; j < reviewCount; j++ {
			rating := entity.MinRating + g.rnd.IntN(entity.MaxRating)
			reviews = append(reviews, entity.Review{
				Rating:    rating,
				Text:      pick(g.rnd, comments[rating]),
				UserID:    fmt.Sprintf("seed-user-%d", g.rnd.IntN(1000)),
				Timestamp: created.Add(time.Duration(j+1) * time.Hour),
			})
		}

		listing.NumRatings, listing.SumRating, listing.AvgRating = Aggregate(reviews)
		samples = append(samples, Sample{Listing: listing, Reviews: reviews})
	}
	return samples
}

// Aggregate считает агрегаты рейтинга по набору отзывов
func Aggregate(reviews []entity.Review) (num int, sum, avg float64) {
	for _, r := range reviews {
		sum += float64(r.Rating)
	}
	num = len(reviews)
	if num > 0 {
		avg = sum / float64(num)
	}
	return num, sum, avg
}

func pick[T any](rnd *rand.Rand, items []T) T {
	return items[rnd.IntN(len(items))]
}
