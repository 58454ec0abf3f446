package library

import (
	"context"
	"errors"

	"github.com/mrlokans/lectern/internal/kv"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds book bytes and cover images.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// FileBlobs keeps blobs as files under the data directory.
type FileBlobs struct {
	files *kv.FileStore
}

func NewFileBlobs(root string) (*FileBlobs, error) {
	files, err := kv.NewFileStore(root)
	if err != nil {
		return nil, err
	}
	return &FileBlobs{files: files}, nil
}

func (b *FileBlobs) Put(ctx context.Context, key string, data []byte, _ string) error {
	return b.files.Put(ctx, key, data)
}

func (b *FileBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.files.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

func (b *FileBlobs) Delete(ctx context.Context, key string) error {
	return b.files.Delete(ctx, key)
}
