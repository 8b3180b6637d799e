// Package buffers pools receive buffers so the radio read loop does not
// allocate per datagram.
package buffers

import "sync"

// DatagramSize fits the largest emulated radio datagram (13 byte link
// header + 250 byte payload) with room to spare.
const DatagramSize = 512

// Pool hands out byte slices of a fixed length.
type Pool struct {
	pool sync.Pool
	size int
}

func NewPool(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Get returns a slice of exactly Size bytes. Contents are not cleared.
func (p *Pool) Get() []byte {
	buf := *(p.pool.Get().(*[]byte))
	return buf[:p.size]
}

// Put returns buf to the pool. Slices too small for the pool are dropped.
func (p *Pool) Put(buf []byte) {
	if cap(buf) < p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

func (p *Pool) Size() int { return p.size }

// Datagrams is shared by every radio driver in the process.
var Datagrams = NewPool(DatagramSize)
