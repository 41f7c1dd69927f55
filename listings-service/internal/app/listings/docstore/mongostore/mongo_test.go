package mongostore

import (
	"context"
	"errors"
	"testing"

	"goodbites/listings-service/internal/app/listings/docstore"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestSortDoc_AppendsIDTieBreak(t *testing.T) {
	q := docstore.Collection("listings").OrderBy("numRatings", true)

	assert.Equal(t, bson.D{{Key: "numRatings", Value: -1}, {Key: "_id", Value: -1}}, sortDoc(q))
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, sortDoc(docstore.Collection("listings")))
}

func TestFilterDoc(t *testing.T) {
	oid := primitive.NewObjectID()
	q := docstore.Collection("listings").Where("city", "London").Where(docstore.IDField, oid.Hex())

	got := filterDoc(q.Filters)

	assert.Equal(t, bson.E{Key: "city", Value: "London"}, got[0])
	assert.Equal(t, bson.E{Key: "_id", Value: bson.M{"$in": bson.A{oid.Hex(), oid}}}, got[1])
}

func TestIDFilter_PlainString(t *testing.T) {
	assert.Equal(t, bson.M{"_id": "seed-1"}, idFilter("seed-1"))
}

func TestToDocument(t *testing.T) {
	oid := primitive.NewObjectID()

	doc := toDocument(bson.M{"_id": oid, "name": "Cafe"})
	assert.Equal(t, oid.Hex(), doc.ID)
	assert.Equal(t, bson.M{"name": "Cafe"}, doc.Data)

	doc = toDocument(bson.M{"_id": "l1"})
	assert.Equal(t, "l1", doc.ID)
	assert.Empty(t, doc.Data)
}

func TestWatchPipeline_FiltersInsertsOnly(t *testing.T) {
	pipeline := watchPipeline([]docstore.Filter{{Field: "listing_id", Value: "l1"}})

	match := pipeline[0][0]
	assert.Equal(t, "$match", match.Key)

	or := match.Value.(bson.D)[0].Value.(bson.A)
	assert.Len(t, or, 2)
	assert.Contains(t, or[1].(bson.D), bson.E{Key: "fullDocument.listing_id", Value: "l1"})
	assert.Contains(t, or[1].(bson.D), bson.E{Key: "operationType", Value: "insert"})
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(docstore.ErrNotFound), docstore.ErrNotFound)

	err := classify(context.DeadlineExceeded)
	assert.ErrorIs(t, err, docstore.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = classify(mongo.CommandError{Code: 112, Name: "WriteConflict"})
	assert.ErrorIs(t, err, docstore.ErrUnavailable)

	plain := errors.New("validation failed")
	assert.Same(t, plain, classify(plain))
}

func TestHasLabel(t *testing.T) {
	err := mongo.CommandError{Code: 112, Labels: []string{labelTransientTx}}

	assert.True(t, hasLabel(err, labelTransientTx))
	assert.False(t, hasLabel(err, labelUnknownCommit))
	assert.False(t, hasLabel(errors.New("plain"), labelTransientTx))
}
