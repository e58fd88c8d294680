package progress

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for reading while a watcher writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewDefaults(t *testing.T) {
	r := New()
	assert.Equal(t, DefaultDelay, r.delay)
	assert.Equal(t, os.Stderr, r.out)

	r = New(WithDelay(-time.Second), WithWriter(nil))
	assert.Equal(t, DefaultDelay, r.delay)
	assert.NotNil(t, r.out)
}

func TestDoFastCall(t *testing.T) {
	var out syncBuffer
	r := New(WithDelay(time.Hour), WithWriter(&out))

	v, err := Do(r, "kernel(64)", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, "done in 0 seconds\n", out.String())
}

func TestDoReportsElapsedSeconds(t *testing.T) {
	var out syncBuffer
	r := New(WithDelay(time.Hour), WithWriter(&out))
	base := time.Unix(1_700_000_000, 0)
	ticks := []time.Time{base, base.Add(3*time.Second + 200*time.Millisecond)}
	r.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	require.NoError(t, r.Run("slow", func() error { return nil }))
	assert.Equal(t, "done in 3 seconds\n", out.String())
}

func TestDoSlowCallPrintsDescriptionOnly(t *testing.T) {
	var out syncBuffer
	r := New(WithDelay(10*time.Millisecond), WithWriter(&out))

	release := make(chan struct{})
	result := make(chan string, 1)
	go func() {
		v, _ := Do(r, `kernel(64, "s2")`, func() (string, error) {
			<-release
			return "ok", nil
		})
		result <- v
	}()

	require.Eventually(t, func() bool {
		return out.String() != ""
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, `kernel(64, "s2")... `, out.String())

	close(release)
	select {
	case v := <-result:
		assert.Equal(t, "ok", v)
	case <-time.After(5 * time.Second):
		t.Fatal("call did not complete")
	}
	assert.Equal(t, `kernel(64, "s2")... `, out.String())
}

func TestRunReturnsError(t *testing.T) {
	var out syncBuffer
	r := New(WithDelay(time.Hour), WithWriter(&out))
	boom := errors.New("boom")

	err := r.Run("f()", func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "done in 0 seconds\n", out.String())
}

func TestDoPanicPrintsNothing(t *testing.T) {
	var out syncBuffer
	r := New(WithDelay(time.Hour), WithWriter(&out))

	assert.Panics(t, func() {
		_, _ = Do(r, "f()", func() (int, error) { panic("boom") })
	})
	assert.Empty(t, out.String())
}

func TestDoConcurrentCalls(t *testing.T) {
	var out syncBuffer
	r := New(WithDelay(time.Hour), WithWriter(&out))

	const n = 8
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			v, err := Do(r, "f()", func() (int, error) { return i, nil })
			assert.NoError(t, err)
			assert.Equal(t, i, v)
		})
	}
	wg.Wait()
	assert.Equal(t, strings.Repeat("done in 0 seconds\n", n), out.String())
}

func TestWrap(t *testing.T) {
	var out syncBuffer
	r := New(WithDelay(5*time.Millisecond), WithWriter(&out))

	square := Wrap(r, "square", func(_ context.Context, x int) (int, error) {
		time.Sleep(50 * time.Millisecond)
		return x * x, nil
	})
	v, err := square(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 49, v)
	assert.Equal(t, "square(7)... ", out.String())
}
