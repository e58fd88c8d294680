package memo

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/meigma/memo/codec"
)

// Call returns fn(ctx, args), computing it at most once per distinct args
// for the lifetime of c's directory.
//
// The key for args is resolved in the index (allocating a blob filename on
// first sight). If the blob exists it is decoded and returned. Otherwise fn
// runs on the calling goroutine, and its result is encoded and stored before
// being returned. Errors from fn are returned unchanged and nothing is stored.
//
// A missing blob is the only failure treated as a miss. A blob that exists
// but cannot be read back fails with ErrCorruptData; Call does not recompute
// over it.
//
// Concurrent calls on c for the same key share one invocation of fn, run
// with the first caller's ctx. If that ctx ends the shared invocation,
// waiting callers whose own ctx is still live start over instead of
// returning its error.
func Call[A, R any](ctx context.Context, c *Cache, fn func(context.Context, A) (R, error), args A, opts ...CallOption[R]) (R, error) {
	var zero R
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	cfg := callConfig[R]{codec: codec.Gob[R]{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	key, err := KeyOf(args)
	if err != nil {
		return zero, err
	}
	filename, err := c.resolve(key)
	if err != nil {
		return zero, err
	}

	var (
		v      any
		shared bool
	)
	for {
		led := false
		v, err, shared = c.flight.Do(filename, func() (any, error) {
			led = true
			return loadOrCompute(ctx, c, cfg.codec, fn, args, key, filename)
		})
		if err == nil || led || !isContextErr(err) || ctx.Err() != nil {
			break
		}
		c.log().Debug("retrying after shared call was cancelled", "key", key.Short(), "file", filename)
	}
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	result, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("memo: %s holds %T, want %T", filename, v, zero)
	}
	if shared {
		c.log().Debug("shared in-flight result", "key", key.Short(), "file", filename)
	}
	return result, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Wrap returns a memoized version of fn bound to c.
func Wrap[A, R any](c *Cache, fn func(context.Context, A) (R, error), opts ...CallOption[R]) func(context.Context, A) (R, error) {
	return func(ctx context.Context, args A) (R, error) {
		return Call(ctx, c, fn, args, opts...)
	}
}

func loadOrCompute[A, R any](ctx context.Context, c *Cache, cd codec.Codec[R], fn func(context.Context, A) (R, error), args A, key Key, filename string) (R, error) {
	var zero R
	path := c.blobPath(filename)

	data, err := c.store.Load(path)
	switch {
	case err == nil:
		v, decErr := cd.Decode(data)
		if decErr != nil {
			return zero, fmt.Errorf("%w: decode %s: %w", ErrCorruptData, filename, decErr)
		}
		c.log().Debug("loaded from cache", "key", key.Short(), "file", filename, "size", humanize.Bytes(uint64(len(data))))
		c.reportProgress(StageLoaded, filename, key, len(data))
		return v, nil
	case !errors.Is(err, ErrNotFound):
		return zero, err
	}

	c.log().Info("computing", "key", key.Short(), "file", filename)
	c.reportProgress(StageComputing, filename, key, 0)
	v, err := fn(ctx, args)
	if err != nil {
		return zero, err
	}

	data, err = cd.Encode(v)
	if err != nil {
		return zero, fmt.Errorf("memo: encode result for %s: %w", filename, err)
	}
	written, err := c.store.Store(path, data)
	if err != nil {
		return zero, err
	}
	c.log().Info("saved", "key", key.Short(), "file", filename,
		"size", humanize.Bytes(uint64(len(data))), "stored", humanize.Bytes(uint64(written))) //nolint:gosec // sizes are non-negative
	c.reportProgress(StageSaved, filename, key, len(data))
	return v, nil
}
