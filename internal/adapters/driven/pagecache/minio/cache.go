// Package minio implements the page cache on an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

// Ensure Cache implements the interface.
var _ driven.PageCache = (*Cache)(nil)

// Config addresses the bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Cache stores pages as objects.
type Cache struct {
	client *minio.Client
	bucket string
}

// New connects to the endpoint and creates the bucket when missing.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created page cache bucket %s", cfg.Bucket)
	}
	return &Cache{client: client, bucket: cfg.Bucket}, nil
}

// Get returns the object stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("get page %s: %w", key, err)
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		if isMissing(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read page %s: %w", key, err)
	}
	return b, true, nil
}

// Put stores page under key.
func (c *Cache) Put(ctx context.Context, key string, page []byte) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(page), int64(len(page)),
		minio.PutObjectOptions{ContentType: "text/html"})
	if err != nil {
		return fmt.Errorf("put page %s: %w", key, err)
	}
	return nil
}

func isMissing(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
