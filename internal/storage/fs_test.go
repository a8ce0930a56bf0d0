package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := NewFSStore(filepath.Join(t.TempDir(), "blobs"), "https://athena.example")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Put(ctx, "ai_images/a.png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := s.Get(ctx, "ai_images/a.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "png-bytes" {
		t.Fatalf("content = %q", b)
	}

	u, err := s.PublicURL("ai_images/a.png")
	if err != nil || u != "https://athena.example/assets/ai_images/a.png" {
		t.Fatalf("url = %q, err %v", u, err)
	}
}

func TestFSStoreRejectsTraversalKeys(t *testing.T) {
	root := t.TempDir()
	// A file outside the blob base that must stay unreachable.
	if err := os.WriteFile(filepath.Join(root, "secret.txt"), []byte("top-secret"), 0o644); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	s, err := NewFSStore(filepath.Join(root, "blobs"), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{
		"../secret.txt",
		"a/../../secret.txt",
		"..",
		"",
		".",
	} {
		if _, err := s.Get(ctx, key); err == nil {
			t.Fatalf("Get(%q) succeeded, want error", key)
		}
		if _, err := s.Put(ctx, key, strings.NewReader("x")); err == nil {
			t.Fatalf("Put(%q) succeeded, want error", key)
		}
	}

	// Keys with inner dot segments that stay under the base are fine.
	if _, err := s.Put(ctx, "a/../b.txt", strings.NewReader("ok")); err != nil {
		t.Fatalf("put sibling key: %v", err)
	}
}
