// Package relayq implements the hand-off between the radio receive callback
// and the worker: a bounded single-producer single-consumer ring of
// length-framed byte entries.
//
// The producer half owns the write cursors and the consumer half owns the
// read cursors. Each side only reads the other's cursors, so no locks are
// needed. Enqueue never blocks and never allocates, which keeps it usable
// from a driver callback.
package relayq

import (
	"errors"
	"fmt"
	"math/bits"
	"sync/atomic"
)

// DefaultCapacity is the byte capacity used when none is configured.
const DefaultCapacity = 32

// maxCapacity keeps entry lengths representable in the length ring.
const maxCapacity = 1 << 16

var (
	ErrFull          = errors.New("relay queue full")
	ErrEmptyFrame    = errors.New("empty frame")
	ErrFrameTooLarge = errors.New("frame larger than queue capacity")
	ErrAlreadySplit  = errors.New("relay queue already split")
	ErrCapacity      = errors.New("queue capacity must be a power of two")
)

// Queue is the shared storage. Use Split to obtain the two halves.
type Queue struct {
	buf  []byte
	lens []uint16
	mask uint32

	// producer side
	wpos   atomic.Uint32
	wcount atomic.Uint32

	// consumer side
	rpos   atomic.Uint32
	rcount atomic.Uint32

	overflows atomic.Uint64
	split     atomic.Bool
}

// New allocates a queue holding up to capacity payload bytes.
func New(capacity int) (*Queue, error) {
	if capacity <= 0 || capacity > maxCapacity || bits.OnesCount(uint(capacity)) != 1 {
		return nil, fmt.Errorf("%w: %d", ErrCapacity, capacity)
	}
	return &Queue{
		buf:  make([]byte, capacity),
		lens: make([]uint16, capacity),
		mask: uint32(capacity - 1),
	}, nil
}

// Split hands out the producer and consumer halves. It succeeds only once.
func (q *Queue) Split() (*Producer, *Consumer, error) {
	if !q.split.CompareAndSwap(false, true) {
		return nil, nil, ErrAlreadySplit
	}
	c := &Consumer{q: q}
	c.grant.q = q
	return &Producer{q: q}, c, nil
}

func (q *Queue) Capacity() int { return len(q.buf) }

// Len is the number of committed, unreleased payload bytes.
func (q *Queue) Len() int {
	return int(q.wpos.Load() - q.rpos.Load())
}

// Entries is the number of committed, unreleased frames.
func (q *Queue) Entries() int {
	return int(q.wcount.Load() - q.rcount.Load())
}

// Overflows counts the frames rejected for lack of space.
func (q *Queue) Overflows() uint64 { return q.overflows.Load() }

// Producer is the write half. It must only be used from one goroutine at a time.
type Producer struct {
	q *Queue
}

// Enqueue copies data into the queue as one entry. On any error nothing is
// committed.
func (p *Producer) Enqueue(data []byte) error {
	q := p.q
	n := uint32(len(data))
	if n == 0 {
		return ErrEmptyFrame
	}
	size := uint32(len(q.buf))
	if n > size {
		q.overflows.Add(1)
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, size)
	}

	w := q.wpos.Load()
	if used := w - q.rpos.Load(); size-used < n {
		q.overflows.Add(1)
		return ErrFull
	}

	off := w & q.mask
	done := copy(q.buf[off:], data)
	copy(q.buf, data[done:])

	wc := q.wcount.Load()
	q.lens[wc&q.mask] = uint16(n)

	// Publish the bytes before the entry so the consumer never sees a
	// counted entry whose bytes are missing.
	q.wpos.Store(w + n)
	q.wcount.Store(wc + 1)
	return nil
}

// Consumer is the read half. It must only be used from one goroutine at a time.
type Consumer struct {
	q     *Queue
	grant Grant
}

// Read returns the oldest committed entry, or false when the queue is empty
// or the previous grant has not been released yet.
func (c *Consumer) Read() (*Grant, bool) {
	if c.grant.active {
		return nil, false
	}
	q := c.q
	rc := q.rcount.Load()
	if rc == q.wcount.Load() {
		return nil, false
	}
	c.grant.off = q.rpos.Load()
	c.grant.n = uint32(q.lens[rc&q.mask])
	c.grant.active = true
	return &c.grant, true
}

// Grant is read access to one entry. It stays valid until Release.
type Grant struct {
	q      *Queue
	off    uint32
	n      uint32
	active bool
}

func (g *Grant) Len() int {
	if !g.active {
		return 0
	}
	return int(g.n)
}

// CopyTo copies the entry into dst and returns the number of bytes copied.
// dst shorter than the entry receives a prefix.
func (g *Grant) CopyTo(dst []byte) int {
	if !g.active {
		return 0
	}
	n := g.n
	if uint32(len(dst)) < n {
		n = uint32(len(dst))
	}
	off := g.off & g.q.mask
	done := copy(dst[:n], g.q.buf[off:])
	copy(dst[done:n], g.q.buf)
	return int(n)
}

// Release frees the entry's space for the producer. Calling it again is a
// no-op.
func (g *Grant) Release() {
	if !g.active {
		return
	}
	g.active = false
	q := g.q
	q.rpos.Store(g.off + g.n)
	q.rcount.Add(1)
}
