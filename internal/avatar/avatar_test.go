package avatar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "avatars"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "avatars")

	if _, err := NewStore(dir); err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("upload dir was not created: %v", err)
	}
}

func TestSave_ReturnsPublicPath(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save([]byte("fake image bytes"), "me.png")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.HasPrefix(path, PublicPrefix) {
		t.Errorf("path = %q, want prefix %q", path, PublicPrefix)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Errorf("path = %q, want original extension preserved", path)
	}
}

func TestSave_WritesContent(t *testing.T) {
	store := newTestStore(t)

	content := []byte("pixels")
	path, err := store.Save(content, "pic.jpg")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	onDisk := filepath.Join(store.Dir(), strings.TrimPrefix(path, PublicPrefix))
	got, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("stored content = %q, want %q", got, content)
	}
}

func TestSave_UniqueNames(t *testing.T) {
	store := newTestStore(t)

	p1, _ := store.Save([]byte("a"), "x.png")
	p2, _ := store.Save([]byte("b"), "x.png")

	if p1 == p2 {
		t.Errorf("two saves of the same original name share path %q", p1)
	}
}

func TestSave_NoExtension(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save([]byte("raw"), "noext")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if strings.Contains(filepath.Base(strings.TrimPrefix(path, PublicPrefix)), ".") {
		t.Errorf("path = %q, want no extension", path)
	}
}
