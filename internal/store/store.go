// Package store persists downloaded documents and reads documents to upload.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AppXpress/Integration-API-Utility/internal/config"
	"github.com/AppXpress/Integration-API-Utility/internal/xmldoc"
)

// Sink receives fetched documents. Implementations are safe for concurrent use.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	Location(name string) string
	Close() error
}

// Document is a named XML payload.
type Document struct {
	Name string
	Data []byte
}

// Open returns the sink for a downloader output folder: a local directory,
// an sftp:// URL, or any gocloud blob URL (file://, mem://).
func Open(ctx context.Context, cfg config.Downloader) (Sink, error) {
	folder := cfg.OutputFolder
	switch {
	case strings.HasPrefix(folder, "sftp://"):
		return DialSFTP(ctx, folder, cfg.SFTP)
	case strings.Contains(folder, "://"):
		return OpenBlob(ctx, folder)
	default:
		return NewLocal(folder)
	}
}

// Local writes documents into a directory on the local filesystem.
type Local struct {
	dir string
}

// NewLocal returns a sink for an existing directory.
func NewLocal(dir string) (*Local, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("output folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output folder %s is not a directory", dir)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(_ context.Context, name string, data []byte) error {
	path := l.Location(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (l *Local) Location(name string) string {
	return filepath.Join(l.dir, cleanName(name))
}

func (l *Local) Close() error {
	return nil
}

// ReadFolder loads every regular file in dir, sorted by name. Each file must
// hold a well-formed XML document; documents in other charsets are
// transcoded to UTF-8.
func ReadFolder(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := xmldoc.Validate(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if data, err = xmldoc.ToUTF8(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		docs = append(docs, Document{Name: entry.Name(), Data: data})
	}
	return docs, nil
}

// cleanName keeps server supplied names inside the target folder.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	if name == "." || name == ".." || name == "" {
		return "_"
	}
	return name
}
