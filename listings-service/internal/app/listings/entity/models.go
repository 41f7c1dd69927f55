package entity

import "time"

// Listing - заведение каталога с агрегатами рейтинга
// NumRatings, SumRating и AvgRating меняются только транзакцией агрегатора
type Listing struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	City       string    `json:"city"`
	Price      int       `json:"price"` // Ценовая категория 1..4
	Photo      string    `json:"photo,omitempty"`
	NumRatings int       `json:"numRatings"`
	SumRating  float64   `json:"sumRating"`
	AvgRating  float64   `json:"avgRating"`
	Timestamp  time.Time `json:"timestamp"`
}

// Review - отзыв пользователя о заведении
// Не изменяется после создания, время создания выставляет агрегатор
type Review struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	UserName  string    `json:"user_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReviewEvent публикуется в Kafka после успешного коммита отзыва
type ReviewEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"` // REVIEW_CREATED
	ReviewID   string    `json:"review_id"`
	ListingID  string    `json:"listing_id"`
	UserID     string    `json:"user_id,omitempty"`
	Rating     int       `json:"rating"`
	NumRatings int       `json:"num_ratings"`
	AvgRating  float64   `json:"avg_rating"`
	Timestamp  time.Time `json:"timestamp"`
}

const ReviewCreatedEvent = "REVIEW_CREATED"

// Границы допустимых значений
const (
	MinRating     = 1
	MaxRating     = 5
	MinPriceTier  = 1
	MaxPriceTier  = 4
	MaxReviewText = 1000
)
