package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/listings-service/internal/app/listings/repository"
	"goodbites/pkg/logger"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
)

// MaxImageSize - предельный размер загружаемого фото
const MaxImageSize = 10 << 20

// AssetService отвечает за ссылку на фото заведения
type AssetService struct {
	store   docstore.Store
	storage infrastructure.AssetStorage
	cache   listingCache
	log     zerolog.Logger
}

func NewAssetService(store docstore.Store, storage infrastructure.AssetStorage, cache infrastructure.ListingCache) *AssetService {
	log := logger.Component("asset_service")
	return &AssetService{
		store:   store,
		storage: storage,
		cache:   newListingCache(cache, log),
		log:     log,
	}
}

// SetAssetReference перезаписывает поле photo заведения.
// Остальные поля не трогает; для несуществующего заведения - ErrNotFound.
func (s *AssetService) SetAssetReference(ctx context.Context, listingID, url string) error {
	if listingID == "" {
		return fmt.Errorf("set photo of listing: %w: empty listing id", ErrInvalidArgument)
	}

	err := s.store.Update(ctx, repository.ListingsCollection, listingID, bson.M{repository.FieldPhoto: url})
	if err != nil {
		return fmt.Errorf("set photo of listing %s: %w", listingID, translate(err))
	}

	s.cache.invalidate(ctx)
	return nil
}

// UpdateListingImage сохраняет фото в хранилище файлов по пути
// images/<listingID>/<filename> и записывает ссылку в заведение
func (s *AssetService) UpdateListingImage(ctx context.Context, listingID, filename, contentType string, data []byte) (string, error) {
	if listingID == "" {
		return "", fmt.Errorf("upload photo of listing: %w: empty listing id", ErrInvalidArgument)
	}
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("upload photo of listing %s: %w: empty file name", listingID, ErrInvalidArgument)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("upload photo of listing %s: %w: empty file", listingID, ErrInvalidArgument)
	}
	if len(data) > MaxImageSize {
		return "", fmt.Errorf("upload photo of listing %s: %w: file larger than %d bytes", listingID, ErrInvalidArgument, MaxImageSize)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("upload photo of listing %s: %w: content type %q is not an image", listingID, ErrInvalidArgument, contentType)
	}

	// заведение проверяем до загрузки, чтобы не оставлять файлы-сироты
	if _, err := s.store.Get(ctx, repository.ListingsCollection, listingID); err != nil {
		return "", fmt.Errorf("upload photo of listing %s: %w", listingID, translate(err))
	}

	url, err := s.storage.Store(ctx, data, path.Join("images", listingID, name), contentType)
	if err != nil {
		return "", fmt.Errorf("upload photo of listing %s: %w", listingID, err)
	}

	if err := s.SetAssetReference(ctx, listingID, url); err != nil {
		return "", err
	}

	s.log.Info().Str("listing_id", listingID).Str("url", url).Msg("Listing photo updated")
	return url, nil
}
