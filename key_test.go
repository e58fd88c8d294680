package memo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

type shape struct {
	Name   string
	Vertex *point
	Tags   map[string]int
}

// orderedPair renders an explicit key that ignores Note.
type orderedPair struct {
	A, B string
	Note string
}

func (p orderedPair) CacheKey() (string, error) {
	if strings.Contains(p.A, "|") {
		return "", errors.New("separator in A")
	}
	return p.A + "|" + p.B, nil
}

func TestKeyOfStructural(t *testing.T) {
	t.Parallel()

	a := shape{Name: "tri", Vertex: &point{1, 2}, Tags: map[string]int{"x": 1, "y": 2, "z": 3}}
	b := shape{Name: "tri", Vertex: &point{1, 2}, Tags: map[string]int{"z": 3, "y": 2, "x": 1}}

	ka, err := KeyOf(a)
	require.NoError(t, err)
	kb, err := KeyOf(b)
	require.NoError(t, err)

	assert.Equal(t, ka, kb, "keys must not depend on pointer identity or map order")
	assert.Equal(t, Key(`{"Name":"tri","Vertex":{"X":1,"Y":2},"Tags":{"x":1,"y":2,"z":3}}`), ka)
}

func TestKeyOfDistinguishesValues(t *testing.T) {
	t.Parallel()

	k1, err := KeyOf(point{1, 2})
	require.NoError(t, err)
	k2, err := KeyOf(point{2, 1})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestKeyOfKeyer(t *testing.T) {
	t.Parallel()

	k1, err := KeyOf(orderedPair{A: "a", B: "b", Note: "first"})
	require.NoError(t, err)
	k2, err := KeyOf(orderedPair{A: "a", B: "b", Note: "second"})
	require.NoError(t, err)
	assert.Equal(t, Key("a|b"), k1)
	assert.Equal(t, k1, k2)

	_, err = KeyOf(orderedPair{A: "a|"})
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyOfUnsupported(t *testing.T) {
	t.Parallel()

	_, err := KeyOf(math.NaN())
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = KeyOf(func() {})
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyDigest(t *testing.T) {
	t.Parallel()

	k := Key(`{"n":1}`)
	assert.Equal(t, "sha256", k.Digest().Algorithm().String())
	assert.Len(t, k.Short(), 12)
	assert.True(t, strings.HasPrefix(k.Digest().Encoded(), k.Short()))
}

type hiddenBandwidth struct {
	bandwidth int
}

type skippedField struct {
	Name  string
	Cache []float64 `json:"-"`
}

type nestedHidden struct {
	Layers []map[string]*hiddenBandwidth
}

// hiddenKeyer opts into keying by its unexported field.
type hiddenKeyer struct {
	bandwidth int
}

func (h hiddenKeyer) CacheKey() (string, error) {
	return fmt.Sprintf("bandwidth=%d", h.bandwidth), nil
}

type inner struct {
	X int
}

type withEmbedded struct {
	inner
	When time.Time
	Any  any
}

func TestKeyOfRejectsFieldsJSONDrops(t *testing.T) {
	t.Parallel()

	tests := map[string]any{
		"unexported field":       hiddenBandwidth{bandwidth: 1},
		"pointer to unexported":  &hiddenBandwidth{bandwidth: 1},
		"json dash tag":          skippedField{Name: "a"},
		"nested in map of slice": nestedHidden{Layers: []map[string]*hiddenBandwidth{{"a": {bandwidth: 2}}}},
		"behind interface":       withEmbedded{Any: hiddenBandwidth{bandwidth: 3}},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := KeyOf(args)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestKeyOfKeyerAllowsUnexportedFields(t *testing.T) {
	t.Parallel()

	k1, err := KeyOf(hiddenKeyer{bandwidth: 1})
	require.NoError(t, err)
	k2, err := KeyOf(hiddenKeyer{bandwidth: 2})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestKeyOfAcceptsPromotedAndSelfMarshaling(t *testing.T) {
	t.Parallel()

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	k, err := KeyOf(withEmbedded{inner: inner{X: 4}, When: when, Any: point{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, Key(`{"X":4,"When":"2024-03-01T12:00:00Z","Any":{"X":1,"Y":2}}`), k)
}

func TestCallDistinctUnexportedArgsNotMerged(t *testing.T) {
	t.Parallel()

	c := openTestCache(t, t.TempDir())
	fn := func(_ context.Context, a hiddenBandwidth) (int, error) { return a.bandwidth * 10, nil }

	_, err := Call(context.Background(), c, fn, hiddenBandwidth{bandwidth: 1})
	require.ErrorIs(t, err, ErrInvalidKey)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}
