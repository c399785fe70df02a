package fs

import (
	"context"
	"duesdesk/internal/blob/core"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := s.Put(ctx, "reports/defaulters-1.csv", strings.NewReader("Name,Roll No\n"), core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"rows": "0"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 13 || len(info.ETag) != 64 {
		t.Fatalf("unexpected info %+v", info)
	}
	got, rc, err := s.Get(ctx, "reports/defaulters-1.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, _ := io.ReadAll(rc)
	if string(body) != "Name,Roll No\n" || got.ContentType != "text/csv" || got.Metadata["rows"] != "0" {
		t.Fatalf("unexpected object %q %+v", body, got)
	}
	if _, err := os.Stat(filepath.Join(root, "reports", "defaulters-1.csv.meta.json")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	url, err := s.PresignURL(ctx, "reports/defaulters-1.csv", core.SignedURLOptions{})
	if err != nil || !strings.HasPrefix(url, "file://") {
		t.Fatalf("unexpected url %q %v", url, err)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Put(ctx, "a.json", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "a.json", strings.NewReader("2"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, "x.meta.json", strings.NewReader("2"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("reserved suffix should be rejected, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.PresignURL(ctx, "missing.json", core.SignedURLOptions{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "/etc/passwd"); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStoreListSkipsForeignFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"receipts/b.json", "receipts/a.json", "reports/c.csv"} {
		if _, err := s.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray: %v", err)
	}
	list, err := s.List(ctx, "receipts/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "receipts/a.json" || list[1].Key != "receipts/b.json" {
		t.Fatalf("unexpected listing %+v", list)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(all))
	}

	if err := os.WriteFile(filepath.Join(root, "receipts", "a.json.meta.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("corrupt sidecar: %v", err)
	}
	if _, err := s.List(ctx, "receipts/"); err == nil {
		t.Fatalf("corrupt sidecar should fail listing")
	}
}
