package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"nebularag/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderReadsTextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "first document\n")
	writeFile(t, filepath.Join(dir, "sub", "b.md"), "# second document")
	writeFile(t, filepath.Join(dir, "ignored.json"), `{"not": "indexed"}`)

	docs, err := NewLoader(nil, nil).Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	// sorted path order: a.txt before sub/b.md
	if docs[0] != "first document" {
		t.Errorf("unexpected first document %q", docs[0])
	}
	if docs[1] != "# second document" {
		t.Errorf("unexpected second document %q", docs[1])
	}
}

func TestLoaderSkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.txt"), "   \n\t")
	writeFile(t, filepath.Join(dir, "real.txt"), "content")

	docs, err := NewLoader(nil, nil).Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
}

func TestLoaderNoReadableInput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "binary.bin"), "xxxx")

	_, err := NewLoader(nil, nil).Load(dir)
	if !errors.Is(err, domain.ErrNoReadableInput) {
		t.Errorf("expected ErrNoReadableInput, got %v", err)
	}
}

func TestLoaderMissingRoot(t *testing.T) {
	_, err := NewLoader(nil, nil).Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestLoaderRootIsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	writeFile(t, path, "content")

	_, err := NewLoader(nil, nil).Load(path)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLoaderExcludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "keep")
	writeFile(t, filepath.Join(dir, "drafts", "skip.txt"), "skip")

	docs, err := NewLoader(nil, []string{"drafts/**"}).Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0] != "keep" {
		t.Errorf("expected only 'keep', got %v", docs)
	}
}
