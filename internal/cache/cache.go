// Package cache provides the on-disk artifact cache used to skip repeated
// preprocessing of the same input model. Entries are keyed by a content
// hash of the input artifact's resolved absolute path; a cached artifact
// is a deterministic function of that identity, so the policy is
// first-writer-wins and callers must never rely on invalidation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Key identifies one cache entry.
type Key string

// HashPath returns the cache key for the artifact at path. The path is
// resolved to absolute form first so that the same file reached through
// different working directories maps to the same entry.
func HashPath(path string) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	sum := sha256.Sum256([]byte(abs))
	return Key(hex.EncodeToString(sum[:])), nil
}

// ArtifactCache is the collaborator the orchestrator consults before and
// after preprocessing. Implementations must be safe for concurrent
// readers; concurrent writers for the same key may race, which is
// harmless because every writer produces identical content.
type ArtifactCache interface {
	// Lookup returns the cached artifact path for key, if one exists.
	Lookup(key Key) (string, bool)
	// Reserve returns the path a new artifact for key must be written to,
	// creating parent directories as needed.
	Reserve(key Key) (string, error)
}

// DirCache is the filesystem implementation of ArtifactCache: one
// subdirectory per key under a root, each holding a single artifact file.
type DirCache struct {
	root     string
	fileName string
}

// NewDirCache creates a DirCache rooted at root. Every entry's artifact is
// stored under its key directory with the given file name.
func NewDirCache(root, fileName string) *DirCache {
	return &DirCache{root: root, fileName: fileName}
}

// Lookup implements ArtifactCache.
func (c *DirCache) Lookup(key Key) (string, bool) {
	path := c.entryPath(key)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// Reserve implements ArtifactCache.
func (c *DirCache) Reserve(key Key) (string, error) {
	path := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating cache entry for %s: %w", key, err)
	}
	return path, nil
}

// Clear removes every cache entry. Retention is otherwise unbounded:
// entries deliberately outlive individual runs so repeated resolutions of
// the same model skip preprocessing.
func (c *DirCache) Clear() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache root: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.root, entry.Name())); err != nil {
			return fmt.Errorf("removing cache entry %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (c *DirCache) entryPath(key Key) string {
	return filepath.Join(c.root, string(key), c.fileName)
}
