// Package index maintains the persistent mapping from cache keys to blob
// filenames for one cache directory.
//
// The mapping is stored as a FlatBuffers-encoded payload inside a compressed
// blob named "index". Filenames are allocated as "<n>.blob" where n is the
// number of entries before insertion, so a fixed sequence of first-time keys
// always yields the same filenames. Filenames are never reused.
package index

import (
	"errors"
	"fmt"
	"iter"
	"path/filepath"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/memo/internal/blobstore"
	"github.com/meigma/memo/internal/blobtype"
	"github.com/meigma/memo/internal/fb"
)

// FileName is the name of the index blob inside a cache directory.
const FileName = "index"

// BlobSuffix is appended to the ordinal of every allocated blob filename.
const BlobSuffix = ".blob"

// formatVersion is written into every encoded index.
const formatVersion = 1

// Entry maps one cache key to its blob filename.
type Entry struct {
	Key      string
	Filename string
}

// Index is the in-memory copy of a directory's key to filename mapping.
//
// The mapping is read from disk once, on first use, and rewritten in full on
// every insertion. Index is not safe for concurrent use; callers serialize
// access.
type Index struct {
	path    string
	store   *blobstore.Store
	loaded  bool
	entries []Entry
	byKey   map[string]int
	files   map[string]struct{}
}

// Open returns the index for dir. Nothing is read until the first lookup.
func Open(dir string, store *blobstore.Store) *Index {
	return &Index{
		path:  filepath.Join(dir, FileName),
		store: store,
	}
}

// Path returns the location of the index blob.
func (idx *Index) Path() string {
	return idx.path
}

// Load reads the index blob if it has not been read yet. A missing blob
// yields an empty index. A blob that cannot be decoded fails with
// ErrCorruptData and leaves the index unloaded.
func (idx *Index) Load() error {
	if idx.loaded {
		return nil
	}

	var entries []Entry
	data, err := idx.store.Load(idx.path)
	switch {
	case errors.Is(err, blobtype.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load index: %w", err)
	default:
		entries, err = Decode(data)
		if err != nil {
			return fmt.Errorf("load index %s: %w", idx.path, err)
		}
	}

	idx.entries = entries
	idx.byKey = make(map[string]int, len(entries))
	idx.files = make(map[string]struct{}, len(entries))
	for i, e := range entries {
		idx.byKey[e.Key] = i
		idx.files[e.Filename] = struct{}{}
	}
	idx.loaded = true
	return nil
}

// Resolve returns the blob filename for key, allocating and persisting a new
// one if key has not been seen. created reports whether an allocation
// happened. If persisting fails the allocation is rolled back.
func (idx *Index) Resolve(key string) (filename string, created bool, err error) {
	if err := idx.Load(); err != nil {
		return "", false, err
	}
	if i, ok := idx.byKey[key]; ok {
		return idx.entries[i].Filename, false, nil
	}

	filename = fmt.Sprintf("%d%s", len(idx.entries), BlobSuffix)
	if _, taken := idx.files[filename]; taken {
		return "", false, fmt.Errorf("%w: index already assigns %s", blobtype.ErrCorruptData, filename)
	}

	idx.entries = append(idx.entries, Entry{Key: key, Filename: filename})
	if _, err := idx.store.Store(idx.path, Encode(idx.entries)); err != nil {
		idx.entries = idx.entries[:len(idx.entries)-1]
		return "", false, fmt.Errorf("persist index: %w", err)
	}
	idx.byKey[key] = len(idx.entries) - 1
	idx.files[filename] = struct{}{}
	return filename, true, nil
}

// Lookup returns the filename assigned to key without allocating.
func (idx *Index) Lookup(key string) (string, bool, error) {
	if err := idx.Load(); err != nil {
		return "", false, err
	}
	i, ok := idx.byKey[key]
	if !ok {
		return "", false, nil
	}
	return idx.entries[i].Filename, true, nil
}

// Len returns the number of entries. It is zero before Load.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns an iterator over all entries in allocation order.
func (idx *Index) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range idx.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Encode builds the FlatBuffers payload for entries, preserving their order.
func Encode(entries []Entry) []byte {
	builder := flatbuffers.NewBuilder(1024)

	// Build entries in reverse order (FlatBuffers requirement)
	entryOffsets := make([]flatbuffers.UOffsetT, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		keyOffset := builder.CreateByteVector([]byte(e.Key))
		filenameOffset := builder.CreateString(e.Filename)

		fb.EntryStart(builder)
		fb.EntryAddKey(builder, keyOffset)
		fb.EntryAddFilename(builder, filenameOffset)
		entryOffsets[i] = fb.EntryEnd(builder)
	}

	fb.IndexStartEntriesVector(builder, len(entries))
	for i := len(entryOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(entryOffsets[i])
	}
	entriesOffset := builder.EndVector(len(entries))

	fb.IndexStart(builder)
	fb.IndexAddVersion(builder, formatVersion)
	fb.IndexAddEntries(builder, entriesOffset)
	fb.FinishIndexBuffer(builder, fb.IndexEnd(builder))
	return builder.FinishedBytes()
}

// Decode parses a payload produced by Encode. Malformed input, an unknown
// version, or duplicate keys or filenames fail with ErrCorruptData.
func Decode(data []byte) (entries []Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = fmt.Errorf("%w: failed to parse index: %v", blobtype.ErrCorruptData, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: empty index data", blobtype.ErrCorruptData)
	}

	root := fb.GetRootAsIndex(data, 0)
	if v := root.Version(); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported index version %d", blobtype.ErrCorruptData, v)
	}

	n := root.EntriesLength()
	entries = make([]Entry, 0, n)
	keys := make(map[string]struct{}, n)
	files := make(map[string]struct{}, n)
	var fbEntry fb.Entry
	for i := range n {
		if !root.Entries(&fbEntry, i) {
			return nil, fmt.Errorf("%w: missing index entry %d", blobtype.ErrCorruptData, i)
		}
		e := Entry{Key: string(fbEntry.KeyBytes()), Filename: string(fbEntry.Filename())}
		if e.Filename == "" || filepath.Base(e.Filename) != e.Filename || e.Filename == FileName {
			return nil, fmt.Errorf("%w: index entry %d has invalid filename %q", blobtype.ErrCorruptData, i, e.Filename)
		}
		if _, dup := keys[e.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key in index entry %d", blobtype.ErrCorruptData, i)
		}
		if _, dup := files[e.Filename]; dup {
			return nil, fmt.Errorf("%w: duplicate filename %s in index", blobtype.ErrCorruptData, e.Filename)
		}
		keys[e.Key] = struct{}{}
		files[e.Filename] = struct{}{}
		entries = append(entries, e)
	}
	return entries, nil
}
