package service

import (
	"context"
	"fmt"

	"clip-ingest/config"
	"github.com/minio/minio-go/v7"
)

// ObjectStore is the gateway to durable object storage. Deletes are
// idempotent: removing a missing key is not an error.
type ObjectStore interface {
	Upload(ctx context.Context, key, localPath, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
	RemovePrefix(ctx context.Context, prefix string) error
}

type minioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewObjectStore(cfg *config.Config) ObjectStore {
	return &minioStore{
		client:  cfg.Storage,
		bucket:  cfg.MinIOBucket,
		baseURL: fmt.Sprintf("%s://%s", cfg.App.Protocol, cfg.App.Host),
	}
}

func (s *minioStore) Upload(ctx context.Context, key, localPath, contentType string) (string, error) {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key), nil
}

func (s *minioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// RemovePrefix deletes every object under prefix. ListObjects paginates
// internally; the loop drains it fully.
func (s *minioStore) RemovePrefix(ctx context.Context, prefix string) error {
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return object.Err
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}
