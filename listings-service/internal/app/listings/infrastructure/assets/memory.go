package assets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Object - сохраненный файл
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStorage хранит файлы в памяти; для локального запуска и тестов
type MemoryStorage struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (m *MemoryStorage) Store(ctx context.Context, data []byte, pathHint, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := strings.TrimLeft(strings.TrimSpace(pathHint), "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}

	m.mu.Lock()
	m.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	m.mu.Unlock()

	return m.baseURL + "/" + key, nil
}

// Get возвращает сохраненный файл по ключу
func (m *MemoryStorage) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[strings.TrimLeft(key, "/")]
	return obj, ok
}

func (m *MemoryStorage) Close() error {
	return nil
}
