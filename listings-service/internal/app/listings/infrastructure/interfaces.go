package infrastructure

import (
	"context"

	"goodbites/listings-service/internal/app/listings/entity"
)

// MessagePublisher интерфейс для отправки сообщений в очередь (Kafka)
// Используется для dependency injection и упрощения тестирования
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}

// ListingCache - кеш снимков списка заведений.
// Записи привязаны к поколению; Invalidate начинает новое поколение,
// и все записи старых поколений перестают читаться.
type ListingCache interface {
	Generation(ctx context.Context) (int64, error)
	GetListings(ctx context.Context, generation int64, spec entity.FilterSpec) ([]entity.Listing, bool, error)
	SetListings(ctx context.Context, generation int64, spec entity.FilterSpec, listings []entity.Listing) error
	Invalidate(ctx context.Context) error
	Close() error
}

// AssetStorage сохраняет бинарные данные и возвращает публичную ссылку на них
type AssetStorage interface {
	Store(ctx context.Context, data []byte, pathHint, contentType string) (string, error)
	Close() error
}
