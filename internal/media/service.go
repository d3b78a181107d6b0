// Package media stores hero and inline images in S3-compatible object
// storage. Uploads arrive as data URIs from the editor and are handed back
// as stable URLs.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"labdesk/api/internal/util"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrInvalidDataURI = errors.New("invalid data uri")

// allowed upload content types, mapped to object name extensions.
var extByMime = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base for stored objects. When
	// empty, URLs are presigned against the endpoint instead.
	PublicURL string
}

type Service struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Service{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// UploadDataURI decodes an editor data URI, stores it under a fresh object
// name, and returns the URL callers should persist.
func (s *Service) UploadDataURI(ctx context.Context, dataURI string) (string, error) {
	mime, data, err := ParseDataURI(dataURI)
	if err != nil {
		return "", err
	}
	name := objectName(mime)

	if _, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mime,
	}); err != nil {
		return "", fmt.Errorf("store object: %w", err)
	}
	return s.objectURL(ctx, name)
}

// Delete removes a stored object. Unknown objects are not an error.
func (s *Service) Delete(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *Service) objectURL(ctx context.Context, name string) (string, error) {
	if s.publicURL != "" {
		return publicObjectURL(s.publicURL, s.bucket, name), nil
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, name, 7*24*time.Hour, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return presigned.String(), nil
}

// ParseDataURI splits a base64 data URI into its content type and payload.
// Only image types the editor can embed are accepted.
func ParseDataURI(dataURI string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mime, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" {
		return "", nil, fmt.Errorf("%w: expected base64 encoding", ErrInvalidDataURI)
	}
	if _, known := extByMime[mime]; !known {
		return "", nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidDataURI, mime)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}
	return mime, data, nil
}

func objectName(mime string) string {
	return util.NewID("img") + extByMime[mime]
}

func publicObjectURL(base, bucket, name string) string {
	return fmt.Sprintf("%s/%s/%s", base, bucket, name)
}
