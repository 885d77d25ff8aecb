// Package storage publishes rendered thumbnails to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL overrides the base of returned object URLs, e.g. a CDN in front of the bucket.
	PublicURL string
}

type ThumbnailStorage struct {
	client *miniogo.Client
	bucket string
	base   string
	logger *slog.Logger
}

func NewThumbnailStorage(cfg Config, logger *slog.Logger) (*ThumbnailStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	base := cfg.PublicURL
	if base == "" {
		base = client.EndpointURL().String() + "/" + cfg.Bucket
	}
	return &ThumbnailStorage{
		client: client,
		bucket: cfg.Bucket,
		base:   strings.TrimRight(base, "/"),
		logger: logger,
	}, nil
}

func (s *ThumbnailStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("storage.bucket.created", "bucket", s.bucket)
	}
	return nil
}

// UploadThumbnail stores the file under name and returns its public URL.
func (s *ThumbnailStorage) UploadThumbnail(ctx context.Context, localPath, name string) (string, error) {
	info, err := s.client.FPutObject(ctx, s.bucket, name, localPath, miniogo.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}
	s.logger.Debug("storage.thumbnail.uploaded", "bucket", s.bucket, "key", name, "size", info.Size)
	return ObjectURL(s.base, name), nil
}

// ObjectURL joins a public base and an object key.
func ObjectURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
