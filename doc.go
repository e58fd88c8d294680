//go:generate flatc --go --go-namespace fb -o internal schema/index.fbs

// Package memo memoizes deterministic Go functions on disk.
//
// A [Cache] is bound to one directory. Each distinct argument value gets a
// blob file holding the function's result; an index blob maps canonical
// argument keys to those files. Results survive process restarts: a call
// whose key has been stored before is served from disk without invoking the
// function.
//
// Directory layout:
//
//	<dir>/index     key -> filename mapping (FlatBuffers, compressed)
//	<dir>/0.blob    first memoized result
//	<dir>/1.blob    second memoized result, and so on
//
// # Quick Start
//
//	c, err := memo.Open("/var/cache/kernels", memo.WithLogger(slog.Default()))
//	if err != nil {
//	    return err
//	}
//	kernel := memo.Wrap(c, buildKernel)
//	k, err := kernel(ctx, KernelArgs{Bandwidth: 64})
//
// # Keys
//
// The argument value is canonicalized with encoding/json (struct fields in
// declaration order, map keys sorted), unless it implements [Keyer]. Keys
// never depend on pointer identity.
//
// # Progress
//
// [WithProgress] reports load, compute, and save events for each call.
// Package progress reports on slow calls independently of caching and
// composes with [Wrap]:
//
//	r := progress.New()
//	kernel := memo.Wrap(c, progress.Wrap(r, "kernel", buildKernel))
//
// # Limitations
//
// The cache assumes a single writer per directory. Within a process, one
// [Cache] per directory serializes index updates and collapses concurrent
// computations of the same key. Nothing coordinates separate processes: two
// processes computing the same new key race and the last writer wins.
// Entries never expire; delete the directory to start over.
package memo
