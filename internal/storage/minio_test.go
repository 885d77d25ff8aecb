package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/thumbs/a.jpg", ObjectURL("https://cdn.test/thumbs/", "/a.jpg"))
	assert.Equal(t, "http://localhost:9000/thumbnails/b.jpg", ObjectURL("http://localhost:9000/thumbnails", "b.jpg"))
}

func TestNewThumbnailStorage_DefaultBase(t *testing.T) {
	s, err := NewThumbnailStorage(Config{Endpoint: "localhost:9000", Bucket: "thumbnails"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/thumbnails", s.base)

	s, err = NewThumbnailStorage(Config{Endpoint: "localhost:9000", Bucket: "thumbnails", PublicURL: "https://cdn.test/t/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/t", s.base)
}
