package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

// CacheEntry stores metadata about a package's last successful build:
// the content hash of every source file that went into it, keyed by
// path, so a later build can tell whether any of them changed without
// re-lexing and re-checking first.
type CacheEntry struct {
	SourceHash map[string]string `json:"source_hash"` // source path -> hash
}

// CacheManager handles the on-disk build cache under build/ir.
type CacheManager struct {
	cacheDir string
}

// NewCacheManager creates a cache manager rooted at projectRoot.
func NewCacheManager(projectRoot string) *CacheManager {
	cacheDir := filepath.Join(projectRoot, "build", "ir")
	return &CacheManager{cacheDir: cacheDir}
}

// GetCacheEntry loads the cache metadata for the package named name.
func (c *CacheManager) GetCacheEntry(name string) (*CacheEntry, error) {
	data, err := os.ReadFile(c.hashFilePath(name))
	if err != nil {
		return nil, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

// SaveSourceSetEntry hashes every path in sourcePaths and persists the
// result as the cache entry for the package named name.
func (c *CacheManager) SaveSourceSetEntry(name string, sourcePaths []string) error {
	hashes := make(map[string]string, len(sourcePaths))

	for _, path := range sourcePaths {
		hash, err := c.ComputeFileHash(path)
		if err != nil {
			return err
		}

		hashes[path] = hash
	}

	data, err := json.MarshalIndent(&CacheEntry{SourceHash: hashes}, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.hashFilePath(name), data, 0644)
}

// ComputeFileHash computes the SHA-256 hash of a file's content.
func (c *CacheManager) ComputeFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// NeedsRebuild reports whether the package named name must be
// recompiled: true if there is no prior cache entry, if the source
// list changed, or if any listed source file's content hash no longer
// matches what was cached.
func (c *CacheManager) NeedsRebuild(name string, sourcePaths []string) (bool, error) {
	entry, err := c.GetCacheEntry(name)
	if err != nil {
		return true, nil
	}

	if len(entry.SourceHash) != len(sourcePaths) {
		return true, nil
	}

	for _, path := range sourcePaths {
		cached, ok := entry.SourceHash[path]
		if !ok {
			return true, nil
		}

		current, err := c.ComputeFileHash(path)
		if err != nil {
			return false, err
		}

		if current != cached {
			return true, nil
		}
	}

	return false, nil
}

func (c *CacheManager) hashFilePath(name string) string {
	return filepath.Join(c.cacheDir, name+".ll.hash")
}
