package gpucore

import (
	"fmt"
	"sync"
)

const (
	// DefaultPageSize is the size of a regular constant buffer page.
	DefaultPageSize = 16 << 10

	// ConstantBufferAlignment is the offset alignment of allocations,
	// matching WebGPU's minUniformBufferOffsetAlignment default.
	ConstantBufferAlignment = 256
)

// PoolOption configures a ConstantBufferPool.
type PoolOption func(*ConstantBufferPool)

// WithPageSize sets the size of regular pages. Requests larger than a page
// get a dedicated page.
func WithPageSize(n uint64) PoolOption {
	return func(p *ConstantBufferPool) {
		if n > 0 {
			p.pageSize = alignUp(n, ConstantBufferAlignment)
		}
	}
}

// ConstantBufferPool is a paged ConstantBufferAllocator.
//
// Allocations are carved from pages of a fixed size. Reset makes every page
// reusable and advances the generation, which tells holders of earlier
// allocations to allocate again.
//
// Thread Safety: ConstantBufferPool is safe for concurrent use.
type ConstantBufferPool struct {
	mu         sync.Mutex
	device     Device
	pageSize   uint64
	pages      []*page
	current    int
	large      []*page
	generation uint64
	destroyed  bool
}

type page struct {
	buffer BufferID
	data   []byte
	used   uint64

	// dirtyLo and dirtyHi bound the bytes handed out since the last flush.
	dirtyLo, dirtyHi uint64
}

func (pg *page) markDirty(lo, hi uint64) {
	if pg.dirtyHi == 0 {
		pg.dirtyLo, pg.dirtyHi = lo, hi
		return
	}
	pg.dirtyLo = min(pg.dirtyLo, lo)
	pg.dirtyHi = max(pg.dirtyHi, hi)
}

// PoolStats reports pool usage.
type PoolStats struct {
	Pages      int
	LargePages int
	BytesUsed  uint64
	Generation uint64
}

// NewConstantBufferPool creates a pool allocating buffers from device.
func NewConstantBufferPool(device Device, opts ...PoolOption) *ConstantBufferPool {
	p := &ConstantBufferPool{device: device, pageSize: DefaultPageSize, generation: 1}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allocate reserves size bytes aligned to ConstantBufferAlignment.
func (p *ConstantBufferPool) Allocate(size uint64) (Allocation, error) {
	if size == 0 {
		return Allocation{}, ErrZeroSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return Allocation{}, ErrPoolDestroyed
	}

	if size > p.pageSize {
		pg, err := p.newPage(alignUp(size, ConstantBufferAlignment))
		if err != nil {
			return Allocation{}, err
		}
		p.large = append(p.large, pg)
		return p.take(pg, 0, size), nil
	}

	for p.current < len(p.pages) {
		pg := p.pages[p.current]
		off := alignUp(pg.used, ConstantBufferAlignment)
		if off+size <= p.pageSize {
			return p.take(pg, off, size), nil
		}
		p.current++
	}

	pg, err := p.newPage(p.pageSize)
	if err != nil {
		return Allocation{}, err
	}
	p.pages = append(p.pages, pg)
	p.current = len(p.pages) - 1
	return p.take(pg, 0, size), nil
}

func (p *ConstantBufferPool) take(pg *page, off, size uint64) Allocation {
	pg.used = off + size
	pg.markDirty(off, off+size)
	data := pg.data[off : off+size : off+size]
	clear(data)
	return Allocation{Buffer: pg.buffer, Offset: off, Size: size, Data: data, Generation: p.generation}
}

func (p *ConstantBufferPool) newPage(size uint64) (*page, error) {
	id, err := p.device.CreateBuffer(&BufferDesc{
		Label: "constant-buffer-page",
		Size:  size,
		Usage: ConstantBufferUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpucore: create constant buffer page of %d bytes: %w", size, err)
	}
	return &page{buffer: id, data: make([]byte, size)}, nil
}

// Flush uploads the ranges allocated since the last flush.
func (p *ConstantBufferPool) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pages := range [][]*page{p.pages, p.large} {
		for _, pg := range pages {
			if pg.dirtyHi == 0 {
				continue
			}
			if err := p.device.WriteBuffer(pg.buffer, pg.dirtyLo, pg.data[pg.dirtyLo:pg.dirtyHi]); err != nil {
				return fmt.Errorf("gpucore: flush constant buffer page: %w", err)
			}
			pg.dirtyLo, pg.dirtyHi = 0, 0
		}
	}
	return nil
}

// Reset makes all pages reusable, releases dedicated pages and advances the
// generation. Callers must not reset while GPU work still reads the pages.
func (p *ConstantBufferPool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pg := range p.pages {
		pg.used, pg.dirtyLo, pg.dirtyHi = 0, 0, 0
	}
	for _, pg := range p.large {
		p.device.DestroyBuffer(pg.buffer)
	}
	p.large = nil
	p.current = 0
	p.generation++
}

// Generation returns the current generation.
func (p *ConstantBufferPool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Stats returns a usage snapshot.
func (p *ConstantBufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PoolStats{Pages: len(p.pages), LargePages: len(p.large), Generation: p.generation}
	for _, pg := range p.pages {
		s.BytesUsed += pg.used
	}
	for _, pg := range p.large {
		s.BytesUsed += pg.used
	}
	return s
}

// Destroy releases every page. Further allocations fail.
func (p *ConstantBufferPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pg := range p.pages {
		p.device.DestroyBuffer(pg.buffer)
	}
	for _, pg := range p.large {
		p.device.DestroyBuffer(pg.buffer)
	}
	p.pages, p.large = nil, nil
	p.destroyed = true
	p.generation++
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}
