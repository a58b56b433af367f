// Package storage keeps note attachments in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignTTL is how long a download URL stays valid.
const PresignTTL = time.Hour

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled returns true if storage is properly configured
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Service stores and serves attachments. A Service built from a disabled
// Config answers every call with ErrNotConfigured.
type Service struct {
	client *minio.Client
	bucket string
	region string
}

func NewService(cfg Config) (*Service, error) {
	if !cfg.Enabled() {
		log.Printf("storage: disabled, no S3 endpoint configured")
		return &Service{bucket: cfg.Bucket}, nil
	}

	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		endpoint = parsed.Host
		secure = parsed.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Service{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	log.Printf("storage: created bucket %s", s.bucket)
	return nil
}

func (s *Service) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *Service) PresignedURL(ctx context.Context, key string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}
	if !ValidKey(key) {
		return "", ErrInvalidKey
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, PresignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return presigned.String(), nil
}

// Delete removes an object. Missing objects are not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("s3 ping: %w", err)
	}
	return nil
}
