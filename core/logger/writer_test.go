package logger

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncWriterFansOut(t *testing.T) {
	a, b := &lockedBuffer{}, &lockedBuffer{}
	w := newAsyncWriter([]io.Writer{a, nil, b}, 0)

	require.NoError(t, w.Write([]byte("one\n")))
	require.NoError(t, w.Write(nil))
	require.NoError(t, w.Write([]byte("two\n")))
	require.NoError(t, w.Flush())

	assert.Equal(t, "one\ntwo\n", a.String())
	assert.Equal(t, "one\ntwo\n", b.String())
	require.NoError(t, w.Close())
}

func TestAsyncWriterRejectsWritesAfterClose(t *testing.T) {
	buf := &lockedBuffer{}
	w := newAsyncWriter([]io.Writer{buf}, 0)
	require.NoError(t, w.Write([]byte("before\n")))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Write([]byte("after\n")), errWriterClosed)
	assert.ErrorIs(t, w.Flush(), errWriterClosed)
	assert.Equal(t, "before\n", buf.String())
}

func TestAsyncWriterConcurrentWritersDuringClose(t *testing.T) {
	w := newAsyncWriter([]io.Writer{&lockedBuffer{}}, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = w.Write([]byte("line\n"))
			}
		}()
	}
	require.NoError(t, w.Close())
	wg.Wait()
}
