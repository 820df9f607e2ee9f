// Package minio stores uploaded contract documents in S3-compatible object
// storage.  Only metadata lives in PostgreSQL; the bytes live here.
package minio

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// API is the subset of the minio-go client the repository needs; narrowed for
// mocking.
type API interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
}

// Client wraps the minio-go client together with the contract bucket.
type Client struct {
	api    API
	cfg    config.MinIOConfig
	logger logging.Logger
	mu     sync.Mutex
	closed bool
}

// NewClient connects to object storage, verifies reachability, and ensures
// the contract bucket exists.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create object storage client")
	}

	c := &Client{api: api, cfg: cfg, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to object storage")
	}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("Object storage connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL),
	)
	return c, nil
}

// NewClientWithAPI wraps an existing API implementation (for testing).
func NewClientWithAPI(api API, cfg config.MinIOConfig, log logging.Logger) *Client {
	return &Client{api: api, cfg: cfg, logger: log}
}

func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to check bucket existence")
	}
	if !exists {
		if err := c.api.MakeBucket(ctx, c.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create bucket "+c.cfg.Bucket)
		}
		c.logger.Info("Created bucket", logging.String("bucket", c.cfg.Bucket))
	}
	return nil
}

// Bucket returns the contract bucket name.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// API returns the underlying storage API.
func (c *Client) API() API {
	return c.api
}

// HealthCheck verifies the bucket is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "object storage health check failed")
	}
	if !exists {
		return errors.New(errors.ErrCodeStorageError, "contract bucket missing: "+c.cfg.Bucket)
	}
	return nil
}

// Close marks the client closed.  minio-go holds no persistent connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
