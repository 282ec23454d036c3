// Package storage holds note attachment files on disk. Metadata lives in
// Postgres; this package only deals in bytes.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore persists attachment payloads. Save returns the relative path the
// deletion path later hands back to Remove.
type FileStore interface {
	Save(originalName string, r io.Reader) (path string, size int64, err error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
	Exists(path string) bool
}

// DiskStore is a FileStore rooted at a single directory. Stored names are
// randomized; the original filename never touches the filesystem.
type DiskStore struct {
	baseDir string
}

// NewDiskStore creates the base directory if needed.
func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

// Save writes the payload under a unique generated name and returns the
// store-relative path.
func (d *DiskStore) Save(originalName string, r io.Reader) (string, int64, error) {
	name, err := uniqueFilename(originalName)
	if err != nil {
		return "", 0, err
	}

	full := filepath.Join(d.baseDir, name)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("creating attachment file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", 0, fmt.Errorf("writing attachment file: %w", err)
	}
	return name, size, nil
}

// Open returns the stored payload for streaming to a client.
func (d *DiskStore) Open(path string) (io.ReadCloser, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Remove deletes the stored payload. Missing files are not an error; the
// two-phase note delete may retry paths already gone.
func (d *DiskStore) Remove(path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing attachment file: %w", err)
	}
	return nil
}

// Exists reports whether the payload is still on disk.
func (d *DiskStore) Exists(path string) bool {
	full, err := d.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// resolve rejects paths that would escape the base directory.
func (d *DiskStore) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid attachment path %q", path)
	}
	return filepath.Join(d.baseDir, clean), nil
}

// uniqueFilename combines a timestamp, random bytes, and the original
// extension.
func uniqueFilename(originalName string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating attachment name: %w", err)
	}
	ext := sanitizeExt(filepath.Ext(originalName))
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), hex.EncodeToString(buf), ext), nil
}

func sanitizeExt(ext string) string {
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if r != '.' && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}
