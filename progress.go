package memo

import (
	"fmt"
	"io"
	"sync"

	"github.com/meigma/memo/internal/blobtype"
)

// Re-export progress types from the storage layer.
type (
	// ProgressEvent reports what a memoized call is doing with its blob.
	ProgressEvent = blobtype.ProgressEvent

	// ProgressStage identifies the current phase of a memoized call.
	ProgressStage = blobtype.ProgressStage

	// ProgressFunc receives progress updates during memoized calls.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = blobtype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageLoaded indicates the result was read from the cache directory.
	StageLoaded = blobtype.StageLoaded

	// StageComputing indicates the wrapped function is being invoked.
	StageComputing = blobtype.StageComputing

	// StageSaved indicates a freshly computed result was written to disk.
	StageSaved = blobtype.StageSaved
)

// PrintEvents returns a ProgressFunc that writes terse status text to w:
//
//	load 0.blob... done
//	compute 1.blob... save 1.blob... done
//
// The text is advisory; write errors are ignored.
func PrintEvents(w io.Writer) ProgressFunc {
	var mu sync.Mutex
	return func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Stage {
		case StageLoaded:
			fmt.Fprintf(w, "load %s... done\n", ev.Filename)
		case StageComputing:
			fmt.Fprintf(w, "compute %s... ", ev.Filename)
		case StageSaved:
			fmt.Fprintf(w, "save %s... done\n", ev.Filename)
		}
	}
}
