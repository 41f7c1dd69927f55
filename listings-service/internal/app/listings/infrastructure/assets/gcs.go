// Package assets хранит фото заведений: в Google Cloud Storage или в памяти процесса
package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"goodbites/pkg/logger"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const uploadTimeout = 2 * time.Minute

// GCSConfig - параметры бакета
type GCSConfig struct {
	Bucket string
	// PublicBaseURL - префикс публичных ссылок, например CDN; пусто - storage.googleapis.com
	PublicBaseURL string
	// EmulatorHost - адрес fake-gcs-server; непустое значение отключает аутентификацию
	EmulatorHost string
}

// GCSStorage сохраняет файлы в бакет GCS
type GCSStorage struct {
	client *storage.Client
	cfg    GCSConfig
	log    zerolog.Logger
}

// NewGCSStorage создает клиента GCS. Учетные данные берутся из окружения
// (Application Default Credentials), в режиме эмулятора не нужны.
func NewGCSStorage(ctx context.Context, cfg GCSConfig) (*GCSStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	cfg.EmulatorHost = strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")

	var opts []option.ClientOption
	if cfg.EmulatorHost != "" {
		opts = append(opts, option.WithoutAuthentication(), option.WithEndpoint(cfg.EmulatorHost+"/storage/v1/"))
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	log := logger.Component("gcs_storage")
	log.Info().
		Str("bucket", cfg.Bucket).
		Str("emulator_host", cfg.EmulatorHost).
		Str("public_base_url", cfg.PublicBaseURL).
		Msg("Object storage initialized")

	return &GCSStorage{client: client, cfg: cfg, log: log}, nil
}

// Store загружает data в объект pathHint и возвращает публичную ссылку
func (g *GCSStorage) Store(ctx context.Context, data []byte, pathHint, contentType string) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(pathHint), "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := g.client.Bucket(g.cfg.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	g.log.Debug().Str("key", key).Int("size", len(data)).Msg("Object uploaded")
	return PublicURL(g.cfg, key), nil
}

// PublicURL строит ссылку на объект для клиентов
func PublicURL(cfg GCSConfig, key string) string {
	key = strings.TrimLeft(key, "/")
	escaped := (&url.URL{Path: key}).EscapedPath()

	switch {
	case cfg.PublicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", cfg.PublicBaseURL, cfg.Bucket, escaped)
	case cfg.EmulatorHost != "":
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", cfg.EmulatorHost, cfg.Bucket, url.PathEscape(key))
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.Bucket, escaped)
}

func (g *GCSStorage) Close() error {
	return g.client.Close()
}
