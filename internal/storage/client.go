// Package storage uploads processed rent roll files to S3-compatible
// object storage and issues time-limited download URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rentroll/internal/config"
)

// ObjectStore is the storage surface the services need. A nil store means
// storage is disabled and results stay on local disk.
type ObjectStore interface {
	Ping(ctx context.Context) error
	UploadProcessed(ctx context.Context, objectName string, data []byte) (string, error)
	UploadFile(ctx context.Context, bucket, objectName, filePath string) (string, error)
	DownloadURL(ctx context.Context, objectName string) (string, error)
}

// Client implements ObjectStore using the minio-go SDK
type Client struct {
	client *minio.Client
	cfg    config.StorageConfig
	logger *slog.Logger
}

// NewClient creates an object storage client from configuration
func NewClient(cfg config.StorageConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials are required")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Client{client: client, cfg: cfg, logger: logger}, nil
}

// Ping verifies connectivity by listing buckets
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}
	return nil
}

// ensureBucket creates the bucket when it does not exist yet
func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
	}
	return nil
}

// UploadProcessed stores a processed CSV in the processed bucket and
// returns its object path.
func (c *Client) UploadProcessed(ctx context.Context, objectName string, data []byte) (string, error) {
	bucket := c.cfg.ProcessedBucket
	if err := c.ensureBucket(ctx, bucket); err != nil {
		return "", err
	}

	_, err := c.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", objectName, err)
	}

	c.logger.InfoContext(ctx, "uploaded processed file",
		slog.String("bucket", bucket),
		slog.String("object", objectName),
		slog.Int("bytes", len(data)),
	)

	return fmt.Sprintf("%s/%s", bucket, objectName), nil
}

// UploadFile stores a local file in the given bucket
func (c *Client) UploadFile(ctx context.Context, bucket, objectName, filePath string) (string, error) {
	if err := c.ensureBucket(ctx, bucket); err != nil {
		return "", err
	}

	_, err := c.client.FPutObject(ctx, bucket, objectName, filePath, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", objectName, err)
	}

	return fmt.Sprintf("%s/%s", bucket, objectName), nil
}

// DownloadURL issues a presigned GET URL for an object in the processed
// bucket, valid for the configured expiry.
func (c *Client) DownloadURL(ctx context.Context, objectName string) (string, error) {
	expiry := c.cfg.URLExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	u, err := c.client.PresignedGetObject(ctx, c.cfg.ProcessedBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign download URL for %q: %w", objectName, err)
	}
	return u.String(), nil
}
