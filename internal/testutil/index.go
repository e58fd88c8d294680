package testutil

import (
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/memo/internal/fb"
)

// TestEntry holds data for building test index entries.
type TestEntry struct {
	Key      string
	Filename string
}

// BuildTestIndex creates a FlatBuffers-encoded index payload with the given
// format version. Entries are written as given, so invalid indexes can be
// built too.
func BuildTestIndex(tb testing.TB, version uint32, entries []TestEntry) []byte {
	tb.Helper()

	builder := flatbuffers.NewBuilder(256)
	offsets := make([]flatbuffers.UOffsetT, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		key := builder.CreateByteVector([]byte(entries[i].Key))
		var filename flatbuffers.UOffsetT
		if entries[i].Filename != "" {
			filename = builder.CreateString(entries[i].Filename)
		}
		fb.EntryStart(builder)
		fb.EntryAddKey(builder, key)
		if filename != 0 {
			fb.EntryAddFilename(builder, filename)
		}
		offsets[i] = fb.EntryEnd(builder)
	}

	fb.IndexStartEntriesVector(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	vec := builder.EndVector(len(offsets))

	fb.IndexStart(builder)
	fb.IndexAddVersion(builder, version)
	fb.IndexAddEntries(builder, vec)
	fb.FinishIndexBuffer(builder, fb.IndexEnd(builder))
	return builder.FinishedBytes()
}
