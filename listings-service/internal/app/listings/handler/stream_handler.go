package handler

import (
	"io"
	"sync"
	"time"

	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/service"
	"goodbites/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultHeartbeat = 30 * time.Second

// Имена SSE событий
const (
	eventListings  = "listings"
	eventListing   = "listing"
	eventReviews   = "reviews"
	eventHeartbeat = "heartbeat"
)

// StreamHandler отдает live-подписки клиентам через Server-Sent Events.
// Каждое событие несет полный текущий результат выборки.
type StreamHandler struct {
	subscriptions service.LiveSubscriptionService
	heartbeat     time.Duration
	log           zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewStreamHandler(subscriptions service.LiveSubscriptionService) *StreamHandler {
	return &StreamHandler{
		subscriptions: subscriptions,
		heartbeat:     defaultHeartbeat,
		log:           logger.Component("stream_handler"),
		done:          make(chan struct{}),
	}
}

// Close завершает все открытые потоки; новые потоки закрываются сразу
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// WithHeartbeat меняет интервал heartbeat событий
func (h *StreamHandler) WithHeartbeat(d time.Duration) *StreamHandler {
	h.heartbeat = d
	return h
}

// latest - канал на одно значение: новая доставка вытесняет непрочитанную.
// Доставки одной подписки последовательны, поэтому send не блокируется.
type latest[T any] chan T

func newLatest[T any]() latest[T] {
	return make(latest[T], 1)
}

func (l latest[T]) send(v T) {
	select {
	case <-l:
	default:
	}
	l <- v
}

func (h *StreamHandler) StreamListings(c *gin.Context) {
	spec, err := parseFilter(c)
	if err != nil {
		respondError(c, err, "")
		return
	}

	updates := newLatest[[]entity.Listing]()
	sub, err := h.subscriptions.SubscribeListings(c.Request.Context(), spec, updates.send)
	if err != nil {
		respondError(c, err, "Failed to subscribe to listings")
		return
	}
	defer sub.Cancel()

	stream(c, h, eventListings, updates, func(l []entity.Listing) any {
		return entity.ListingListResponse{Listings: l, Total: len(l)}
	})
}

// StreamListing шлет заведение целиком; null - заведение удалено или не существует
func (h *StreamHandler) StreamListing(c *gin.Context) {
	updates := newLatest[*entity.Listing]()
	sub, err := h.subscriptions.SubscribeListing(c.Request.Context(), c.Param("id"), updates.send)
	if err != nil {
		respondError(c, err, "Failed to subscribe to listing")
		return
	}
	defer sub.Cancel()

	stream(c, h, eventListing, updates, func(l *entity.Listing) any { return l })
}

func (h *StreamHandler) StreamReviews(c *gin.Context) {
	updates := newLatest[[]entity.Review]()
	sub, err := h.subscriptions.SubscribeReviews(c.Request.Context(), c.Param("id"), updates.send)
	if err != nil {
		respondError(c, err, "Failed to subscribe to reviews")
		return
	}
	defer sub.Cancel()

	stream(c, h, eventReviews, updates, func(r []entity.Review) any {
		return entity.ReviewListResponse{Reviews: r, Total: len(r)}
	})
}

// stream пишет события до отключения клиента
func stream[T any](c *gin.Context, h *StreamHandler, event string, updates latest[T], render func(T) any) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	h.log.Debug().Str("event", event).Str("path", c.Request.URL.Path).Msg("SSE client connected")

	c.Stream(func(io.Writer) bool {
		select {
		case v := <-updates:
			c.SSEvent(event, render(v))
			return true
		case <-heartbeat.C:
			c.SSEvent(eventHeartbeat, gin.H{"time": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		case <-h.done:
			return false
		}
	})

	h.log.Debug().Str("event", event).Str("path", c.Request.URL.Path).Msg("SSE client disconnected")
}
