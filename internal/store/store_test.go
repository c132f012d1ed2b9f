package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Put(ctx, "a.webm", []byte("blob")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "a.webm")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "blob" {
		t.Errorf("Get: got %q, want %q", got, "blob")
	}

	if err := s.Delete(ctx, "a.webm"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "a.webm"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete of absent key: %v", err)
	}
}

func TestMemoryStoreCopiesBlob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	blob := []byte("original")
	if err := s.Put(ctx, "k", blob); err != nil {
		t.Fatalf("Put: %v", err)
	}
	blob[0] = 'X'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("stored blob aliased the caller's slice: %q", got)
	}
}

func TestDirStorePutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewDirStore(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	if err := s.Put(ctx, "render.webm", []byte("video")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "render.webm")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "video" {
		t.Errorf("Get: got %q", got)
	}

	if err := s.Delete(ctx, "render.webm"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "render.webm"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "render.webm"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestDirStoreFlattensHostileKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewDirStore(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	if err := s.Put(ctx, "../escape.webm", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.webm")); err == nil {
		t.Fatal("hostile key escaped the store directory")
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
}
