package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores blobs in a Google Cloud Storage bucket. Objects are served
// either through a CDN domain in front of the bucket or via the bucket's
// public URL.
type GCSStore struct {
	client    *gcs.Client
	bucket    string
	cdnDomain string
}

func NewGCSStore(ctx context.Context, bucket, cdnDomain string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket name required")
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSStore{
		client:    client,
		bucket:    bucket,
		cdnDomain: strings.TrimSuffix(cdnDomain, "/"),
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close: %w", err)
	}
	return key, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
}

func (s *GCSStore) PublicURL(key string) (string, error) {
	if s.cdnDomain != "" {
		return "https://" + s.cdnDomain + "/" + key, nil
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key), nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func contentTypeForKey(key string) string {
	k := strings.ToLower(key)
	switch {
	case strings.HasSuffix(k, ".png"):
		return "image/png"
	case strings.HasSuffix(k, ".jpg"), strings.HasSuffix(k, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(k, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(k, ".json"):
		return "application/json"
	}
	return ""
}
