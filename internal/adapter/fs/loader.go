package fs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"nebularag/internal/domain"
	"nebularag/internal/log"
)

// DefaultIncludes are the document patterns indexed when none are configured.
var DefaultIncludes = []string{"**/*.txt", "**/*.md", "**/*.pdf"}

// Loader reads document texts from a directory tree. Plain text and markdown
// are read as UTF-8; PDFs go through text extraction. Files that cannot be
// read are skipped with a warning so one bad file does not sink the corpus.
type Loader struct {
	walker *Walker

	// Progress, when set, is called after each file with the number of
	// files handled so far, the total, and the file's path.
	Progress func(done, total int, path string)
}

func NewLoader(includes, excludes []string) *Loader {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	return &Loader{walker: NewWalker(includes, excludes)}
}

// Load returns the non-empty contents of every matching file under root, in
// sorted path order. A missing or non-directory root is an error; a tree
// with no readable documents is domain.ErrNoReadableInput.
func (l *Loader) Load(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("documents directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidArgument, root)
	}

	files, err := l.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	var docs []string
	for i, path := range files {
		text, err := readDocument(path)
		if err != nil {
			log.Info("skipping unreadable file", "path", path, "reason", err.Error())
		} else if text = strings.TrimSpace(text); text != "" {
			docs = append(docs, text)
		}
		if l.Progress != nil {
			l.Progress(i+1, len(files), path)
		}
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no readable documents under %s", domain.ErrNoReadableInput, root)
	}
	return docs, nil
}

func readDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
