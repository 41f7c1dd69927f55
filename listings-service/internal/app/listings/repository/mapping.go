package repository

import (
	"errors"
	"fmt"
	"math"
	"time"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrMalformedDocument = errors.New("malformed document")

// DecodeListing собирает заведение из документа хранилища.
// Отсутствующие агрегаты считаются нулями, отсутствующий timestamp - ошибка.
func DecodeListing(doc docstore.Document) (entity.Listing, error) {
	d := decoder{doc: doc}
	l := entity.Listing{
		ID:         doc.ID,
		Name:       d.stringField(FieldName),
		Category:   d.stringField(FieldCategory),
		City:       d.stringField(FieldCity),
		Price:      d.intField(FieldPrice),
		Photo:      d.stringField(FieldPhoto),
		NumRatings: d.intField(FieldNumRatings),
		SumRating:  d.floatField(FieldSumRating),
		AvgRating:  d.floatField(FieldAvgRating),
		Timestamp:  d.timeField(FieldTimestamp),
	}
	if d.err != nil {
		return entity.Listing{}, d.err
	}
	return l, nil
}

// DecodeReview собирает отзыв из документа хранилища
func DecodeReview(doc docstore.Document) (entity.Review, error) {
	d := decoder{doc: doc}
	r := entity.Review{
		ID:        doc.ID,
		ListingID: d.stringField(FieldListingID),
		Rating:    d.intField(FieldRating),
		Text:      d.stringField(FieldText),
		UserID:    d.stringField(FieldUserID),
		UserName:  d.stringField(FieldUserName),
		Timestamp: d.timeField(FieldTimestamp),
	}
	if r.UserID == "" {
		r.UserID = d.stringField(legacyFieldUserID)
	}
	if d.err != nil {
		return entity.Review{}, d.err
	}
	return r, nil
}

// DecodeListings декодирует результат запроса целиком; первая ошибка прерывает декодирование
func DecodeListings(docs []docstore.Document) ([]entity.Listing, error) {
	out := make([]entity.Listing, 0, len(docs))
	for _, doc := range docs {
		l, err := DecodeListing(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func DecodeReviews(docs []docstore.Document) ([]entity.Review, error) {
	out := make([]entity.Review, 0, len(docs))
	for _, doc := range docs {
		r, err := DecodeReview(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// EncodeListing возвращает поля документа заведения без ID
func EncodeListing(l entity.Listing) bson.M {
	return bson.M{
		FieldName:       l.Name,
		FieldCategory:   l.Category,
		FieldCity:       l.City,
		FieldPrice:      l.Price,
		FieldPhoto:      l.Photo,
		FieldNumRatings: l.NumRatings,
		FieldSumRating:  l.SumRating,
		FieldAvgRating:  l.AvgRating,
		FieldTimestamp:  l.Timestamp.UTC(),
	}
}

func EncodeReview(r entity.Review) bson.M {
	m := bson.M{
		FieldListingID: r.ListingID,
		FieldRating:    r.Rating,
		FieldTimestamp: r.Timestamp.UTC(),
	}
	if r.Text != "" {
		m[FieldText] = r.Text
	}
	if r.UserID != "" {
		m[FieldUserID] = r.UserID
	}
	if r.UserName != "" {
		m[FieldUserName] = r.UserName
	}
	return m
}

// AggregateFields - поля, которые обновляет транзакция добавления отзыва
func AggregateFields(numRatings int, sumRating, avgRating float64) bson.M {
	return bson.M{
		FieldNumRatings: numRatings,
		FieldSumRating:  sumRating,
		FieldAvgRating:  avgRating,
	}
}

// DecodeRatingAggregate читает только агрегаты рейтинга; отсутствующие поля - нули
func DecodeRatingAggregate(doc docstore.Document) (numRatings int, sumRating float64, err error) {
	d := decoder{doc: doc}
	numRatings = d.intField(FieldNumRatings)
	sumRating = d.floatField(FieldSumRating)
	if d.err != nil {
		return 0, 0, d.err
	}
	return numRatings, sumRating, nil
}

// decoder запоминает первую ошибку, чтобы не проверять каждое поле отдельно
type decoder struct {
	doc docstore.Document
	err error
}

func (d *decoder) fail(field string, v interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s: field %q has unexpected value %v (%T)", ErrMalformedDocument, d.doc.ID, field, v, v)
	}
}

func (d *decoder) stringField(field string) string {
	v, ok := d.doc.Data[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, v)
	}
	return s
}

func (d *decoder) floatField(field string) float64 {
	v, ok := d.doc.Data[field]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			d.fail(field, v)
			return 0
		}
		return n
	}
	d.fail(field, v)
	return 0
}

func (d *decoder) intField(field string) int {
	f := d.floatField(field)
	if f != math.Trunc(f) {
		d.fail(field, d.doc.Data[field])
		return 0
	}
	return int(f)
}

func (d *decoder) timeField(field string) time.Time {
	v, ok := d.doc.Data[field]
	if !ok || v == nil {
		if d.err == nil {
			d.err = fmt.Errorf("%w: %s: missing %q", ErrMalformedDocument, d.doc.ID, field)
		}
		return time.Time{}
	}
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	}
	d.fail(field, v)
	return time.Time{}
}
