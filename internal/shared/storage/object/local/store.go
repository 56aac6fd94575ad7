package local

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"review-backend/internal/shared/storage/object"
	"review-backend/internal/shared/util"
)

// Store implements ObjectStore using the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) object.ObjectStore {
	return &Store{baseDir: baseDir}
}

// Save writes the reader under the scope's hashed namespace. The storage key
// embeds a random prefix so repeated saves of the same file never collide.
func (s *Store) Save(ctx context.Context, scope string, fileName string, r io.Reader) (string, int64, string, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}

	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", 0, "", fmt.Errorf("sanitize file name: %w", err)
	}
	storageKey := filepath.Join(util.HashScope(scope), randomID()+"_"+name)

	f, err := s.create(storageKey)
	if err != nil {
		return "", 0, "", err
	}
	defer f.Close()

	size, mimeType, err := sniffCopy(f, r)
	if err != nil {
		return "", 0, "", err
	}
	return storageKey, size, mimeType, nil
}

// SaveWithKey writes the reader to disk at a specific storage key.
func (s *Store) SaveWithKey(ctx context.Context, storageKey string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	clean, err := cleanKey(storageKey)
	if err != nil {
		return 0, err
	}
	f, err := s.create(clean)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write body: %w", err)
	}
	return written, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean, err := cleanKey(storageKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.baseDir, clean))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open object %s: %w", clean, object.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) create(storageKey string) (*os.File, error) {
	fullPath := filepath.Join(s.baseDir, storageKey)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// sniffCopy copies r into w, detecting the mime type from the first 512 bytes.
func sniffCopy(w io.Writer, r io.Reader) (int64, string, error) {
	var sniff [512]byte
	n, err := io.ReadFull(r, sniff[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, "", fmt.Errorf("read sniff: %w", err)
	}
	mimeType := http.DetectContentType(sniff[:n])

	written, err := io.Copy(w, io.MultiReader(bytes.NewReader(sniff[:n]), r))
	if err != nil {
		return 0, "", fmt.Errorf("write body: %w", err)
	}
	return written, mimeType, nil
}

func cleanKey(storageKey string) (string, error) {
	clean := filepath.Clean(storageKey)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key")
	}
	return clean, nil
}

func randomID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

var _ object.ObjectStore = (*Store)(nil)
