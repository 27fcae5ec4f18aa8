package internal

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	tt "github.com/gnolang/tpat/internal/types"
)

const cacheFileName = "tpat_cache.gob"

type fileMetadata struct {
	Hash         string
	LastModified time.Time
}

type CacheEntry struct {
	Metadata  fileMetadata
	RuleKey   string
	Issues    []tt.Issue
	CreatedAt time.Time
}

// cacheFile is the on-disk form of the cache.
type cacheFile struct {
	Entries          map[string]CacheEntry
	DependencyHashes map[string]string
}

// Cache remembers the issues found in files that have not changed since.
// Every entry records the key of the rule selection that produced it and is
// served only to a lookup with the same key. Entries are dropped when a
// dependency file, such as the rule configuration, changes. Cached issues carry no edits, so they can be
// reported but not fixed.
type Cache struct {
	CacheDir string

	mutex            sync.RWMutex
	entries          map[string]CacheEntry
	maxAge           time.Duration
	dependencyFiles  []string
	dependencyHashes map[string]string
}

// NewCache opens the cache stored in cacheDir, creating the directory when
// needed.
func NewCache(cacheDir string, maxAge time.Duration, dependencyFiles ...string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		CacheDir:         cacheDir,
		entries:          make(map[string]CacheEntry),
		maxAge:           maxAge,
		dependencyFiles:  dependencyFiles,
		dependencyHashes: make(map[string]string),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	if c.haveDependenciesChanged() {
		c.entries = make(map[string]CacheEntry)
	}
	return c, c.updateDependencyHashes()
}

func (c *Cache) path() string {
	return filepath.Join(c.CacheDir, cacheFileName)
}

func (c *Cache) load() error {
	file, err := os.Open(c.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	var stored cacheFile
	if err := gob.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	if stored.Entries != nil {
		c.entries = stored.Entries
	}
	if stored.DependencyHashes != nil {
		c.dependencyHashes = stored.DependencyHashes
	}
	return nil
}

// Save writes the cache to disk.
func (c *Cache) Save() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	file, err := os.Create(c.path())
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	stored := cacheFile{Entries: c.entries, DependencyHashes: c.dependencyHashes}
	if err := gob.NewEncoder(file).Encode(stored); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	return nil
}

// Set stores the issues ruleKey's rules found in filename.
func (c *Cache) Set(filename, ruleKey string, issues []tt.Issue) error {
	metadata, err := getFileMetadata(filename)
	if err != nil {
		return fmt.Errorf("failed to get file metadata: %w", err)
	}

	stored := make([]tt.Issue, len(issues))
	for i, is := range issues {
		is.Edit = nil
		stored[i] = is
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[filename] = CacheEntry{
		Metadata:  metadata,
		RuleKey:   ruleKey,
		Issues:    stored,
		CreatedAt: time.Now(),
	}
	return nil
}

// Get returns the issues stored for filename if the file is unchanged and
// they were found by the rules behind ruleKey.
func (c *Cache) Get(filename, ruleKey string) ([]tt.Issue, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[filename]
	if !exists {
		return nil, false
	}
	if c.isEntryInvalid(filename, entry) {
		delete(c.entries, filename)
		return nil, false
	}
	if entry.RuleKey != ruleKey {
		return nil, false
	}
	return entry.Issues, true
}

func (c *Cache) isEntryInvalid(filename string, entry CacheEntry) bool {
	if c.maxAge > 0 && time.Since(entry.CreatedAt) > c.maxAge {
		return true
	}
	current, err := getFileMetadata(filename)
	return err != nil || current.Hash != entry.Metadata.Hash || !current.LastModified.Equal(entry.Metadata.LastModified)
}

func (c *Cache) haveDependenciesChanged() bool {
	if len(c.dependencyFiles) != len(c.dependencyHashes) {
		return true
	}
	for _, file := range c.dependencyFiles {
		hash, err := getFileHash(file)
		if err != nil || hash != c.dependencyHashes[file] {
			return true
		}
	}
	return false
}

func (c *Cache) updateDependencyHashes() error {
	c.dependencyHashes = make(map[string]string, len(c.dependencyFiles))
	for _, file := range c.dependencyFiles {
		hash, err := getFileHash(file)
		if err != nil {
			return fmt.Errorf("failed to get hash for %s: %w", file, err)
		}
		c.dependencyHashes[file] = hash
	}
	return nil
}

func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]CacheEntry)
}

func getFileMetadata(filename string) (fileMetadata, error) {
	hash, err := getFileHash(filename)
	if err != nil {
		return fileMetadata{}, err
	}
	info, err := os.Stat(filename)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("failed to get file info: %w", err)
	}
	return fileMetadata{Hash: hash, LastModified: info.ModTime()}, nil
}

func getFileHash(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to calculate hash: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
