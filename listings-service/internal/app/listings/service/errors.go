package service

import (
	"errors"
	"fmt"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/repository"
)

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("listing not found")
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry budget exhausted")
	ErrStoreUnavailable    = errors.New("document store unavailable")
	ErrMalformedDocument   = errors.New("malformed document")
	ErrInvalidFilter       = errors.New("invalid filter")
)

// translate переводит ошибки хранилища и маппинга в ошибки сервиса.
// Исходная ошибка остаётся в цепочке для логов.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, docstore.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	case errors.Is(err, docstore.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	case errors.Is(err, repository.ErrMalformedDocument):
		return fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	case errors.Is(err, repository.ErrInvalidFilter):
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	// неклассифицированный сбой драйвера считаем недоступностью хранилища
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
