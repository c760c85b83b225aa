package internal

import (
	"bytes"
	"sync"
)

// BufferPool recycles the byte buffers a transport uses to hold an
// encoded LDAPMessage between EncodeMessage and the write syscall, so
// a busy connection doing many small writes (binds, compares, paged
// search resumes) doesn't allocate a fresh buffer per message.
type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool(initialSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *BufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	p.pool.Put(buf)
}
