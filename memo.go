package memo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/memo/internal/blobstore"
	"github.com/meigma/memo/internal/index"
)

// Cache memoizes function results in one directory.
//
// A Cache owns the in-memory copy of the directory's index, loaded on the
// first call and reused afterwards. Create one Cache per directory and share
// it; two Caches on the same directory in one process keep separate indexes
// and can overwrite each other's allocations.
//
// A Cache is safe for concurrent use.
type Cache struct {
	dir      string
	store    *blobstore.Store
	logger   *slog.Logger
	progress ProgressFunc

	mu  sync.Mutex // guards idx
	idx *index.Index

	flight singleflight.Group // collapses concurrent computations per blob
}

// Entry is one indexed call.
type Entry struct {
	// Key is the canonical argument key.
	Key Key

	// Filename is the blob filename relative to the cache directory.
	Filename string
}

// Open returns a Cache rooted at dir, creating the directory if needed.
// An existing directory is not an error. The index is read lazily.
func Open(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("memo: cache dir is empty")
	}
	cfg := config{
		compression: CompressionZstd,
		dirPerm:     defaultDirPerm,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxChunkSize < 0 {
		return nil, errors.New("memo: max chunk size must be >= 0")
	}

	store, err := blobstore.New(
		blobstore.WithCompression(cfg.compression),
		blobstore.WithMaxChunkSize(cfg.maxChunkSize),
		blobstore.WithMaxBlobSize(cfg.maxBlobSize),
		blobstore.WithMaxDecoderMemory(cfg.maxDecoderMemory),
		blobstore.WithDirPerm(cfg.dirPerm),
	)
	if err != nil {
		return nil, fmt.Errorf("memo: %w", err)
	}
	if err := os.MkdirAll(dir, cfg.dirPerm); err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %w", ErrIO, err)
	}

	c := &Cache{
		dir:      dir,
		store:    store,
		logger:   cfg.logger,
		progress: cfg.progress,
		idx:      index.Open(dir, store),
	}
	c.log().Debug("cache opened", "dir", dir, "compression", cfg.compression.String())
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Len returns the number of indexed keys, loading the index if needed.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.idx.Load(); err != nil {
		return 0, err
	}
	return c.idx.Len(), nil
}

// Entries returns a snapshot of the index in allocation order.
func (c *Cache) Entries() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.idx.Load(); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, c.idx.Len())
	for e := range c.idx.Entries() {
		entries = append(entries, Entry{Key: Key(e.Key), Filename: e.Filename})
	}
	return entries, nil
}

// Lookup returns the blob filename assigned to key without allocating one.
func (c *Cache) Lookup(key Key) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.Lookup(string(key))
}

// BlobSize returns the on-disk size of the named blob. A blob that was
// indexed but never stored fails with ErrNotFound.
func (c *Cache) BlobSize(filename string) (int64, error) {
	return c.store.Size(c.blobPath(filename))
}

// resolve maps key to its blob filename, allocating one if needed.
func (c *Cache) resolve(key Key) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	filename, created, err := c.idx.Resolve(string(key))
	if err != nil {
		return "", err
	}
	if created {
		c.log().Debug("index entry allocated", "key", key.Short(), "file", filename, "entries", c.idx.Len())
	}
	return filename, nil
}

func (c *Cache) blobPath(filename string) string {
	return filepath.Join(c.dir, filename)
}

// reportProgress sends a progress event if a callback is configured.
func (c *Cache) reportProgress(stage ProgressStage, filename string, key Key, n int) {
	if c.progress == nil {
		return
	}
	c.progress(ProgressEvent{
		Stage:    stage,
		Filename: filename,
		Key:      string(key),
		Bytes:    uint64(n), //nolint:gosec // payload lengths are non-negative
	})
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
