package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"factcheck-backend/internal/shared/storage/object"
	"factcheck-backend/internal/shared/util"
)

// Store implements ObjectStore using the local filesystem. It backs uploads
// when no S3 bucket is configured.
type Store struct {
	baseDir string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) object.ObjectStore {
	return &Store{baseDir: baseDir}
}

// Save streams r into a temp file and renames it into place, so a reader never
// sees a partial screenshot. Keys use forward slashes like S3 keys.
func (s *Store) Save(ctx context.Context, ownerID, fileName string, r io.Reader) (string, int64, string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", 0, "", fmt.Errorf("sanitize file name: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}

	ownerDir := util.HashUserKey(ownerID)
	dirPath := filepath.Join(s.baseDir, ownerDir)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dirPath, ".upload-*")
	if err != nil {
		return "", 0, "", fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	var sniff [512]byte
	n, readErr := io.ReadFull(r, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		tmp.Close()
		return "", 0, "", fmt.Errorf("read sniff: %w", readErr)
	}
	mimeType, _ := util.DetectImageType(sniff[:n], fileName)

	size, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(sniff[:n]), r))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, "", fmt.Errorf("write body: %w", err)
	}

	finalName := uuid.NewString() + "_" + name
	if err := os.Rename(tmp.Name(), filepath.Join(dirPath, finalName)); err != nil {
		return "", 0, "", fmt.Errorf("rename: %w", err)
	}
	return path.Join(ownerDir, finalName), size, mimeType, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean(filepath.FromSlash(storageKey))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("%w: invalid storage key", object.ErrNotFound)
	}

	fullPath := filepath.Join(s.baseDir, clean)
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", object.ErrNotFound, storageKey)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
