package memo

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// defaultVerifyWorkers is used when Verify is called with workers <= 0.
const defaultVerifyWorkers = 4

// BlobStatus is the outcome of checking one indexed blob.
type BlobStatus struct {
	Entry

	// Size is the payload size in bytes when the blob loaded cleanly.
	Size int

	// Err is nil for a readable blob. It wraps ErrNotFound when the key was
	// indexed but its result was never stored (or was deleted), and
	// ErrCorruptData or ErrSizeOverflow when the blob is damaged.
	Err error
}

// OK reports whether the blob loaded cleanly.
func (s BlobStatus) OK() bool {
	return s.Err == nil
}

// Missing reports whether the blob file is absent.
func (s BlobStatus) Missing() bool {
	return errors.Is(s.Err, ErrNotFound)
}

// Verify reads every indexed blob back from disk, using up to workers
// concurrent readers, and reports one status per entry in allocation order.
// Payloads are deframed and decompressed but not decoded, so Verify needs no
// codec. Nothing is repaired or recomputed.
//
// The returned error is non-nil only when the index itself cannot be read or
// ctx is cancelled.
func (c *Cache) Verify(ctx context.Context, workers int) ([]BlobStatus, error) {
	entries, err := c.Entries()
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = defaultVerifyWorkers
	}

	statuses := make([]BlobStatus, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := c.store.Load(c.blobPath(e.Filename))
			statuses[i] = BlobStatus{Entry: e, Size: len(data), Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var bad int
	for _, s := range statuses {
		if !s.OK() && !s.Missing() {
			bad++
		}
	}
	c.log().Info("cache verified", "dir", c.dir, "entries", len(statuses), "corrupt", bad)
	return statuses, nil
}
