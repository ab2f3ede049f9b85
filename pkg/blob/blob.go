package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"nocaflow/pkg/config"
	"nocaflow/pkg/logger"
)

// Client is the subset of the minio API the attachment store uses.
// Kept narrow so tests can stub it.
type Client interface {
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, params url.Values) (*url.URL, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
}

// Store writes attachment payloads to object storage and hands back
// presigned download URLs.
type Store struct {
	mc      Client
	bucket  string
	expires time.Duration
}

func NewStore(mc Client, bucket string, expires time.Duration) *Store {
	if expires <= 0 {
		expires = 24 * time.Hour
	}
	return &Store{mc: mc, bucket: bucket, expires: expires}
}

// Connect dials the configured object store and ensures the bucket
// exists.
func Connect(ctx context.Context, cfg config.BlobConfig) (*Store, error) {
	const op = "blob.Connect"

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	logger.Info("blob_store_connected", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return NewStore(mc, cfg.Bucket, time.Duration(cfg.URLExpiry)), nil
}

// AllowedType reports whether a media type may be attached to a
// message. Only images and PDF documents are accepted.
func AllowedType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if strings.HasPrefix(mt, "image/") {
		return true
	}
	return mt == "application/pdf"
}

// Put stores the payload under the given object id and returns a
// presigned GET URL for it.
func (s *Store) Put(ctx context.Context, id, mediaType string, data []byte) (string, error) {
	const op = "blob.Put"

	if !AllowedType(mediaType) {
		return "", fmt.Errorf("%s: unsupported media type %q", op, mediaType)
	}
	_, err := s.mc.PutObject(ctx, s.bucket, id, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mediaType})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	u, err := s.mc.PresignedGetObject(ctx, s.bucket, id, s.expires, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("attachment_stored", "id", id, "media_type", mediaType, "bytes", len(data))
	return u.String(), nil
}

// URL returns a fresh presigned GET URL for a stored object.
func (s *Store) URL(ctx context.Context, id string) (string, error) {
	const op = "blob.URL"

	u, err := s.mc.PresignedGetObject(ctx, s.bucket, id, s.expires, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u.String(), nil
}

// Remove deletes a stored object.
func (s *Store) Remove(ctx context.Context, id string) error {
	const op = "blob.Remove"

	if err := s.mc.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
