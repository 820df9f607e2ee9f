package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// ObjectStore defines the document storage operations the contract service
// needs.
type ObjectStore interface {
	Put(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, objectKey string) (io.ReadCloser, error)
	Remove(ctx context.Context, objectKey string) error
	Exists(ctx context.Context, objectKey string) (bool, error)

	// PresignedGetURL returns a time-limited download URL for the object.
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

type minioStore struct {
	client *Client
	logger logging.Logger
}

// NewObjectStore builds the MinIO-backed document store.
func NewObjectStore(client *Client, log logging.Logger) ObjectStore {
	return &minioStore{client: client, logger: log}
}

func (s *minioStore) Put(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.API().PutObject(ctx, s.client.Bucket(), objectKey, reader, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to store object "+objectKey)
	}
	s.logger.Debug("Stored object",
		logging.String("key", objectKey),
		logging.Int64("size", size),
	)
	return nil
}

func (s *minioStore) Get(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := s.client.API().GetObject(ctx, s.client.Bucket(), objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read object "+objectKey)
	}
	// GetObject is lazy; Stat forces the first round trip so missing keys
	// surface here rather than on first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, errors.New(errors.ErrCodeNotFound, "object not found: "+objectKey)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat object "+objectKey)
	}
	return obj, nil
}

func (s *minioStore) Remove(ctx context.Context, objectKey string) error {
	err := s.client.API().RemoveObject(ctx, s.client.Bucket(), objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to remove object "+objectKey)
	}
	return nil
}

func (s *minioStore) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := s.client.API().StatObject(ctx, s.client.Bucket(), objectKey, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat object "+objectKey)
	}
	return true, nil
}

func (s *minioStore) PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if expiry == 0 {
		expiry = s.client.cfg.PresignExpiry
	}
	u, err := s.client.API().PresignedGetObject(ctx, s.client.Bucket(), objectKey, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to presign object "+objectKey)
	}
	return u.String(), nil
}
