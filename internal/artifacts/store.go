// Package artifacts moves rendered clips into the long-term library.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store places finished artifacts where the API and publisher can reach
// them, returning the stored path.
type Store interface {
	Upload(ctx context.Context, localPath, orgID, videoID string) (string, error)
}

// FilesystemStore keeps the library on local disk, laid out as
// <root>/<org>/<video>/<file>.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore returns a store rooted at dir.
func NewFilesystemStore(dir string) *FilesystemStore {
	return &FilesystemStore{root: dir}
}

// Upload copies the file into the library. The copy goes through a temp
// name so readers never observe a partial artifact.
func (s *FilesystemStore) Upload(_ context.Context, localPath, orgID, videoID string) (string, error) {
	destDir := filepath.Join(s.root, orgID, videoID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create library directory %s: %w", destDir, err)
	}

	destPath := filepath.Join(destDir, filepath.Base(localPath))
	tmpPath := destPath + ".part"

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmpPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("copy artifact to %s: %w", tmpPath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("finalize artifact %s: %w", destPath, err)
	}
	return destPath, nil
}
