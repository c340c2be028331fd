// Package storage reads source documents from MinIO object storage.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"rag-assistant-go/internal/config"
	"rag-assistant-go/pkg/log"
)

// ObjectStore fetches whole objects from a MinIO-compatible endpoint.
type ObjectStore struct {
	client *minio.Client
}

// NewMinIO creates an ObjectStore for the configured endpoint.
func NewMinIO(cfg config.MinIOConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	log.Infof("MinIO client created for %s", cfg.Endpoint)
	return &ObjectStore{client: client}, nil
}

// ReadObject downloads bucket/object into memory.
func (s *ObjectStore) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, object, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, object, err)
	}
	log.Infof("read %d bytes from minio://%s/%s", len(data), bucket, object)
	return data, nil
}
