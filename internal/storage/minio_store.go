package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/SAP-F-2025/challenge-service/internal/config"
	"github.com/SAP-F-2025/challenge-service/internal/models"
)

// MinioStore keeps question media and answer audio in an S3 compatible bucket
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  *slog.Logger
}

func NewMinioStore(cfg config.MinioConfig, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(client.EndpointURL().String(), "/")
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Created media bucket", "bucket", s.bucket)
	return nil
}

// Upload stores the file under a fresh object key and returns its public URL
func (s *MinioStore) Upload(ctx context.Context, file models.MediaFile) (*models.StoredMedia, error) {
	key := objectKey(file)

	_, err := s.client.PutObject(ctx, s.bucket, key, file.Reader, file.Size, minio.PutObjectOptions{
		ContentType: file.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", file.FileName, err)
	}

	s.logger.Debug("Media uploaded", "key", key, "size", file.Size)
	return &models.StoredMedia{
		ID:  key,
		URL: objectURL(s.baseURL, s.bucket, key),
	}, nil
}

// objectKey groups objects by media context ("image", "audio", "answers", ...)
func objectKey(file models.MediaFile) string {
	folder := file.Context
	if folder == "" {
		folder = "misc"
	}
	ext := strings.ToLower(filepath.Ext(file.FileName))
	return fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)
}

func objectURL(baseURL, bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, bucket, key)
}
