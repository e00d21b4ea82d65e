// Package blobstore writes a plugin's raw bytes to a
// content-addressed location on disk so they survive as evidence even when
// parsing fails.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store writes plugin blobs under a root directory.
type Store struct {
	root string
}

// New builds a Store rooted at dataDir. Blobs are written under
// <dataDir>/plugins/...
func New(dataDir string) *Store {
	return &Store{root: filepath.Join(dataDir, "plugins")}
}

// Path returns the on-disk location a plugin's bytes are (or will be)
// written to, without touching the filesystem: plugins/<game>/<mod_id>/<file_id>/<archive_path>.
func (s *Store) Path(game string, nexusModID, nexusFileID int32, archivePath string) string {
	return filepath.Join(s.root, game, fmt.Sprint(nexusModID), fmt.Sprint(nexusFileID), filepath.FromSlash(archivePath))
}

// Write persists data at the content-addressed path for this plugin,
// creating intermediate directories as needed. Re-processing the same
// (game, mod, file, archive path) overwrites atomically: data is written to
// a sibling temp file and renamed into place, so a concurrent reader never
// observes a partially-written blob.
func (s *Store) Write(game string, nexusModID, nexusFileID int32, archivePath string, data []byte) (string, error) {
	dest := s.Path(game, nexusModID, nexusFileID, archivePath)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("blobstore: create directories for %s: %w", dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".blob-*")
	if err != nil {
		return "", fmt.Errorf("blobstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("blobstore: write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("blobstore: close temp file for %s: %w", dest, err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("blobstore: rename into place %s: %w", dest, err)
	}

	return dest, nil
}

// Exists reports whether a blob has already been written for this key.
func (s *Store) Exists(game string, nexusModID, nexusFileID int32, archivePath string) bool {
	_, err := os.Stat(s.Path(game, nexusModID, nexusFileID, archivePath))
	return err == nil
}
