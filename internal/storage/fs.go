package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type FSStore struct {
	base       string
	publicBase string // e.g. PUBLIC_URL; blobs are served from /assets/<key>
}

func NewFSStore(base, publicBase string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base, publicBase: strings.TrimSuffix(publicBase, "/")}, nil
}

func (s *FSStore) Put(_ context.Context, key string, r io.Reader) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(dst)
}

// resolve maps a blob key onto the base directory and rejects any key whose
// cleaned path would escape it. Keys come straight off request URLs, so
// "../" traversal must be stopped here, not at the handlers.
func (s *FSStore) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	base := filepath.Clean(s.base)
	dst := filepath.Join(base, key)
	if dst == base || !strings.HasPrefix(dst, base+string(os.PathSeparator)) {
		return "", errors.New("invalid key")
	}
	return dst, nil
}

func (s *FSStore) PublicURL(key string) (string, error) {
	if s.publicBase != "" {
		return s.publicBase + "/assets/" + key, nil
	}
	// dev fallback when no public URL is configured
	u := url.URL{Scheme: "file", Path: filepath.Join(s.base, key)}
	return u.String(), nil
}
