// Package storage signs direct download links for uploaded articles and
// images kept in the object store the backend writes to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"submita/internal/config"
)

const (
	BucketPDF   = "pdf"
	BucketImage = "image"
)

var ErrBucketNotAllowed = errors.New("bucket not served")

// AllowedBucket reports whether the portal serves files from bucket.
func AllowedBucket(bucket string) bool {
	return bucket == BucketPDF || bucket == BucketImage
}

// ValidFilename rejects empty names and anything that could escape the bucket.
func ValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\") && path.Clean(name) == name
}

type ObjectStore struct {
	client *minio.Client
	ttl    time.Duration
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ObjectStore{client: client, ttl: ttl}, nil
}

// PresignedURL returns a short-lived GET link rendering the file inline.
func (s *ObjectStore) PresignedURL(ctx context.Context, bucket, filename string) (*url.URL, error) {
	if !AllowedBucket(bucket) {
		return nil, ErrBucketNotAllowed
	}
	if !ValidFilename(filename) {
		return nil, fmt.Errorf("invalid filename %q", filename)
	}

	params := url.Values{}
	params.Set("response-content-disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	if bucket == BucketPDF {
		params.Set("response-content-type", "application/pdf")
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, filename, s.ttl, params)
	if err != nil {
		return nil, fmt.Errorf("presign %s/%s: %w", bucket, filename, err)
	}
	return u, nil
}

// Ping checks that the store answers for the pdf bucket.
func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, BucketPDF)
	return err
}
