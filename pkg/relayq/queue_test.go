package relayq

import (
	"bytes"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSplit(t *testing.T, capacity int) (*Queue, *Producer, *Consumer) {
	t.Helper()
	q, err := New(capacity)
	require.NoError(t, err)
	p, c, err := q.Split()
	require.NoError(t, err)
	return q, p, c
}

func readAll(t *testing.T, c *Consumer) []byte {
	t.Helper()
	g, ok := c.Read()
	require.True(t, ok, "expected an entry")
	out := make([]byte, g.Len())
	require.Equal(t, g.Len(), g.CopyTo(out))
	g.Release()
	return out
}

func TestNewCapacity(t *testing.T) {
	for _, c := range []int{0, -4, 3, 24, 1 << 17} {
		_, err := New(c)
		require.ErrorIs(t, err, ErrCapacity, "capacity %d", c)
	}
	q, err := New(DefaultCapacity)
	require.NoError(t, err)
	require.Equal(t, 32, q.Capacity())
}

func TestSplitOnce(t *testing.T) {
	q, _, _ := newSplit(t, 8)
	_, _, err := q.Split()
	require.ErrorIs(t, err, ErrAlreadySplit)
}

func TestFIFO(t *testing.T) {
	q, p, c := newSplit(t, 32)

	frames := [][]byte{{0x75, 1}, {0x6D, 1}, {0x72, 2, 1, 2, 3}}
	for _, f := range frames {
		require.NoError(t, p.Enqueue(f))
	}
	require.Equal(t, 3, q.Entries())
	require.Equal(t, 9, q.Len())

	for _, f := range frames {
		require.Equal(t, f, readAll(t, c))
	}
	_, ok := c.Read()
	require.False(t, ok)
	require.Zero(t, q.Len())
}

func TestOverflowLeavesQueueIntact(t *testing.T) {
	q, p, c := newSplit(t, 32)

	first := bytes.Repeat([]byte{0xA5}, 30)
	require.NoError(t, p.Enqueue(first))
	require.ErrorIs(t, p.Enqueue(bytes.Repeat([]byte{0x5A}, 8)), ErrFull)
	require.EqualValues(t, 1, q.Overflows())

	require.Equal(t, first, readAll(t, c))
	_, ok := c.Read()
	require.False(t, ok, "rejected frame must not be visible")
}

func TestRejectedFrames(t *testing.T) {
	q, p, _ := newSplit(t, 8)
	require.ErrorIs(t, p.Enqueue(nil), ErrEmptyFrame)
	require.ErrorIs(t, p.Enqueue(make([]byte, 9)), ErrFrameTooLarge)
	require.EqualValues(t, 1, q.Overflows())
	require.Zero(t, q.Entries())
}

func TestExactFit(t *testing.T) {
	q, p, c := newSplit(t, 8)
	require.NoError(t, p.Enqueue([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.ErrorIs(t, p.Enqueue([]byte{9}), ErrFull)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, readAll(t, c))
	require.NoError(t, p.Enqueue([]byte{9}))
	require.Equal(t, 1, q.Entries())
}

func TestWrapAround(t *testing.T) {
	_, p, c := newSplit(t, 16)

	// 10 bytes per cycle never divides 16, so entries keep straddling the
	// end of the buffer.
	for i := 0; i < 1000; i++ {
		f := []byte{byte(i), byte(i >> 8), 2, 3, 4, 5, 6}
		require.NoError(t, p.Enqueue(f))
		require.NoError(t, p.Enqueue(f[:3]))
		require.Equal(t, f, readAll(t, c))
		require.Equal(t, f[:3], readAll(t, c))
	}
}

func TestGrantDiscipline(t *testing.T) {
	q, p, c := newSplit(t, 16)
	require.NoError(t, p.Enqueue([]byte{1, 2}))
	require.NoError(t, p.Enqueue([]byte{3}))

	g, ok := c.Read()
	require.True(t, ok)
	_, ok = c.Read()
	require.False(t, ok, "no second grant while one is held")

	short := make([]byte, 1)
	require.Equal(t, 1, g.CopyTo(short))
	require.Equal(t, byte(1), short[0])

	g.Release()
	g.Release()
	require.Equal(t, 1, q.Entries(), "double release must not drop an entry")
	require.Zero(t, g.Len())

	require.Equal(t, []byte{3}, readAll(t, c))
}

func TestConcurrentSPSC(t *testing.T) {
	_, p, c := newSplit(t, 32)
	const total = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			n := i%9 + 1
			f := make([]byte, n)
			for j := range f {
				f[j] = byte(i)
			}
			if p.Enqueue(f) != nil {
				runtime.Gosched()
				continue
			}
			i++
		}
	}()

	buf := make([]byte, 16)
	for i := 0; i < total; {
		g, ok := c.Read()
		if !ok {
			runtime.Gosched()
			continue
		}
		n := g.CopyTo(buf)
		g.Release()
		if n != i%9+1 {
			t.Fatalf("entry %d: length %d, want %d", i, n, i%9+1)
		}
		for j := 0; j < n; j++ {
			if buf[j] != byte(i) {
				t.Fatalf("entry %d: byte %d = %d", i, j, buf[j])
			}
		}
		i++
	}
	wg.Wait()
}
