package assets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  GCSConfig
		key  string
		want string
	}{
		{
			name: "default host",
			cfg:  GCSConfig{Bucket: "photos"},
			key:  "images/l1/a b.png",
			want: "https://storage.googleapis.com/photos/images/l1/a%20b.png",
		},
		{
			name: "public base url",
			cfg:  GCSConfig{Bucket: "photos", PublicBaseURL: "https://cdn.example.com"},
			key:  "/images/l1/a.png",
			want: "https://cdn.example.com/photos/images/l1/a.png",
		},
		{
			name: "emulator",
			cfg:  GCSConfig{Bucket: "photos", EmulatorHost: "http://localhost:4443"},
			key:  "images/l1/a.png",
			want: "http://localhost:4443/storage/v1/b/photos/o/images%2Fl1%2Fa.png?alt=media",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicURL(tt.cfg, tt.key))
		})
	}
}

func TestNewGCSStorage_RequiresBucket(t *testing.T) {
	_, err := NewGCSStorage(context.Background(), GCSConfig{})
	assert.Error(t, err)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage("http://localhost:8080/assets/")
	data := []byte("image")

	url, err := s.Store(context.Background(), data, "images/l1/a.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/assets/images/l1/a.png", url)

	data[0] = 'X'
	obj, ok := s.Get("images/l1/a.png")
	require.True(t, ok)
	assert.Equal(t, []byte("image"), obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = s.Store(context.Background(), data, " ", "image/png")
	assert.Error(t, err)
}
