package blobtype

// ProgressEvent reports what a memoized call is doing with its blob.
type ProgressEvent struct {
	// Stage identifies the current phase of the call.
	Stage ProgressStage

	// Filename is the blob filename inside the cache directory (e.g. "3.blob").
	Filename string

	// Key is the canonical cache key of the call.
	Key string

	// Bytes is the encoded payload size for StageLoaded and StageSaved.
	// Zero for StageComputing.
	Bytes uint64
}

// ProgressStage identifies the current phase of a memoized call.
type ProgressStage uint8

// Progress stages for memoized calls.
const (
	// StageLoaded indicates the result was read from the cache directory.
	StageLoaded ProgressStage = iota

	// StageComputing indicates the wrapped function is being invoked.
	StageComputing

	// StageSaved indicates a freshly computed result was written to disk.
	StageSaved
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageLoaded:
		return "load"
	case StageComputing:
		return "compute"
	case StageSaved:
		return "save"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during memoized calls.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
