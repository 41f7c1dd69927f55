package docstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSubscription_DeliverSkipsUnchangedResult(t *testing.T) {
	var calls [][]Document
	sub := NewSubscription(func(docs []Document) { calls = append(calls, docs) }, nil)

	first := []Document{{ID: "a", Data: bson.M{"avgRating": 4.0}}}
	assert.True(t, sub.Deliver(first))
	assert.False(t, sub.Deliver([]Document{{ID: "a", Data: bson.M{"avgRating": 4.0}}}))
	assert.True(t, sub.Deliver([]Document{{ID: "a", Data: bson.M{"avgRating": 3.5}}}))

	require.Len(t, calls, 2)
	assert.Equal(t, 3.5, calls[1][0].Data["avgRating"])
}

func TestSubscription_EmptyInitialResultIsDelivered(t *testing.T) {
	calls := 0
	sub := NewSubscription(func([]Document) { calls++ }, nil)

	assert.True(t, sub.Deliver(nil))
	assert.False(t, sub.Deliver(nil))
	assert.Equal(t, 1, calls)
}

func TestSubscription_CancelIsIdempotentAndStopsDelivery(t *testing.T) {
	stops := 0
	calls := 0
	sub := NewSubscription(func([]Document) { calls++ }, func() { stops++ })

	sub.Cancel()
	sub.Cancel()

	assert.False(t, sub.Deliver([]Document{{ID: "a"}}))
	assert.Equal(t, 1, stops)
	assert.Equal(t, 0, calls)
	assert.True(t, sub.Stopped())
}

func TestSubscription_AfterStopRunsOnceWhoeverCancels(t *testing.T) {
	sub := NewSubscription(func([]Document) {}, nil)
	hooks := 0
	sub.AfterStop(func() { hooks++ })

	// отмена со стороны хранилища, например при Close
	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 1, hooks)

	late := 0
	sub.AfterStop(func() { late++ })
	assert.Equal(t, 1, late)
}

func TestSubscription_CancelFromCallbackDoesNotDeadlock(t *testing.T) {
	var sub *Subscription
	sub = NewSubscription(func([]Document) { sub.Cancel() }, nil)

	done := make(chan struct{})
	go func() {
		sub.Deliver([]Document{{ID: "a"}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Cancel inside callback deadlocked")
	}
	assert.False(t, sub.Deliver([]Document{{ID: "b"}}))
}

func TestSubscription_CancelDuringCallbackBlocksLaterDeliveries(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	sub := NewSubscription(func([]Document) {
		mu.Lock()
		calls++
		mu.Unlock()
		if calls == 1 {
			close(entered)
			<-release
		}
	}, nil)

	delivered := make(chan struct{})
	go func() {
		sub.Deliver([]Document{{ID: "a"}})
		close(delivered)
	}()
	<-entered

	sub.Cancel()
	close(release)
	<-delivered

	assert.False(t, sub.Deliver([]Document{{ID: "b"}}))
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestQuery_BuildersDoNotAlias(t *testing.T) {
	base := Collection("listings").Where("city", "London")
	a := base.Where("category", "Pizza")
	b := base.Where("category", "Sushi")

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "Pizza", a.Filters[1].Value)
	assert.Equal(t, "Sushi", b.Filters[1].Value)

	sorted := base.OrderBy("avgRating", true)
	assert.Empty(t, base.Sort)
	assert.True(t, sorted.TieBreakDesc())
	assert.False(t, base.TieBreakDesc())
}
