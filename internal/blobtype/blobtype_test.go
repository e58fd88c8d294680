package blobtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompression(t *testing.T) {
	assert.Equal(t, "zstd", CompressionZstd.String())
	assert.Equal(t, "gzip", CompressionGzip.String())
	assert.Equal(t, "none", CompressionNone.String())
	assert.Equal(t, "unknown", Compression(9).String())
	assert.True(t, CompressionGzip.Valid())
	assert.False(t, Compression(9).Valid())
}

func TestProgressStageString(t *testing.T) {
	assert.Equal(t, "load", StageLoaded.String())
	assert.Equal(t, "compute", StageComputing.String())
	assert.Equal(t, "save", StageSaved.String())
	assert.Equal(t, "unknown", ProgressStage(7).String())
}
