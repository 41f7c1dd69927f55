package repository

import (
	"errors"
	"fmt"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/entity"
)

// Коллекции хранилища
const (
	ListingsCollection = "listings"
	ReviewsCollection  = "reviews"
)

// Поля документа заведения
const (
	FieldName       = "name"
	FieldCategory   = "category"
	FieldCity       = "city"
	FieldPrice      = "price"
	FieldPhoto      = "photo"
	FieldNumRatings = "numRatings"
	FieldSumRating  = "sumRating"
	FieldAvgRating  = "avgRating"
	FieldTimestamp  = "timestamp"
)

// Поля документа отзыва
const (
	FieldListingID = "listing_id"
	FieldRating    = "rating"
	FieldText      = "text"
	FieldUserID    = "userId"
	FieldUserName  = "userName"

	// legacyFieldUserID - имя поля в документах, созданных до переименования
	legacyFieldUserID = "user_id"
)

var ErrInvalidFilter = errors.New("invalid filter")

// ListingsQuery - базовый запрос ко всем заведениям
func ListingsQuery() docstore.Query {
	return docstore.Collection(ListingsCollection)
}

// ComposeListingsQuery добавляет к base фильтры из spec и ровно одну сортировку.
// Фильтры идут в порядке category, city, price; пустые поля пропускаются.
// Неизвестное значение Sort сортирует по рейтингу, как и пустое.
// base не изменяется.
func ComposeListingsQuery(base docstore.Query, spec entity.FilterSpec) (docstore.Query, error) {
	if spec.Price != 0 && (spec.Price < entity.MinPriceTier || spec.Price > entity.MaxPriceTier) {
		return docstore.Query{}, fmt.Errorf("%w: price tier %d out of range %d..%d",
			ErrInvalidFilter, spec.Price, entity.MinPriceTier, entity.MaxPriceTier)
	}

	q := base
	if spec.Category != "" {
		q = q.Where(FieldCategory, spec.Category)
	}
	if spec.City != "" {
		q = q.Where(FieldCity, spec.City)
	}
	if spec.Price != 0 {
		q = q.Where(FieldPrice, spec.Price)
	}

	switch spec.Sort {
	case entity.SortByReview:
		q = q.OrderBy(FieldNumRatings, true)
	default:
		q = q.OrderBy(FieldAvgRating, true)
	}
	return q, nil
}

// ListingByIDQuery - запрос одного заведения для live-подписки
func ListingByIDQuery(id string) docstore.Query {
	return ListingsQuery().Where(docstore.IDField, id)
}

// ReviewsQuery - отзывы заведения, новые первыми
func ReviewsQuery(listingID string) docstore.Query {
	return docstore.Collection(ReviewsCollection).
		Where(FieldListingID, listingID).
		OrderBy(FieldTimestamp, true)
}
