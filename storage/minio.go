package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"TandemFM/config"
	"TandemFM/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MediaStore keeps uploaded audio files and cover art in object storage.
type MediaStore struct {
	client *minio.Client
	bucket string
}

// NewMediaStore connects to MinIO and ensures the bucket exists.
func NewMediaStore(cfg *config.Config) (*MediaStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("minio connected", logger.String("bucket", cfg.MinioBucket))
	return &MediaStore{client: client, bucket: cfg.MinioBucket}, nil
}

// PutAudio uploads an audio file under audio/{userID}/ and returns the
// object key.
func (s *MediaStore) PutAudio(ctx context.Context, userID int64, filename string, r io.Reader, size int64, contentType string) (string, error) {
	object := fmt.Sprintf("audio/%d/%s", userID, path.Base(filename))
	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio: %w", err)
	}
	return object, nil
}

// PutCover uploads cover art under covers/{userID}/ and returns the object
// key.
func (s *MediaStore) PutCover(ctx context.Context, userID int64, filename string, r io.Reader, size int64, contentType string) (string, error) {
	object := fmt.Sprintf("covers/%d/%s", userID, path.Base(filename))
	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload cover: %w", err)
	}
	return object, nil
}

// PresignedGet returns a temporary download URL for an object.
func (s *MediaStore) PresignedGet(ctx context.Context, object string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return u.String(), nil
}

// Remove deletes an object.
func (s *MediaStore) Remove(ctx context.Context, object string) error {
	return s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
}
