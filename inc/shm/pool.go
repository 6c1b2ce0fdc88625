/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package shm

import (
	"fmt"
	"sync"
	"sync/atomic"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc/message"
)

var poolSeq uint64

// Pool is a per-connection registry of shared-memory blocks: every Block it
// allocates is reachable by BlockID so an incoming BinaryData SHM_DATA
// message can be resolved back to bytes without another copy.
type Pool struct {
	mu sync.RWMutex

	id          uint32
	minBlock    int
	disableMemfd bool
	blocks      map[uint64]*Block
}

// NewPool builds a Pool. minBlockSize is the inline threshold: ShouldInline
// reports payloads smaller than it as better copied inline; Alloc does not
// round allocations up to it. disableMemfd makes every block process-local,
// with no file descriptor a peer could map.
func NewPool(minBlockSize int, disableMemfd bool) *Pool {
	return &Pool{
		id:           uint32(atomic.AddUint64(&poolSeq, 1)),
		minBlock:     minBlockSize,
		disableMemfd: disableMemfd,
		blocks:       make(map[uint64]*Block),
	}
}

// ID identifies this pool as the ShmID field of an exported reference.
func (p *Pool) ID() uint32 { return p.id }

// ShouldInline reports whether a payload of size n is too small to be worth
// exporting through shared memory and should instead be copied inline.
func (p *Pool) ShouldInline(n int) bool { return n < p.minBlock }

// Alloc reserves a new block of at least size bytes, memfd-backed unless
// the pool was configured with disableMemfd.
func (p *Pool) Alloc(size int) (*Block, liberr.Error) {
	var (
		b *Block
		e liberr.Error
	)
	if p.disableMemfd {
		b = NewAnonBlock(size)
	} else {
		b, e = NewMemfdBlock(fmt.Sprintf("inc-pool-%d-blk", p.id), size)
		if e != nil {
			return nil, e
		}
	}
	p.mu.Lock()
	p.blocks[b.ID()] = b
	p.mu.Unlock()
	return b, nil
}

// Lookup resolves a previously allocated or imported block by id.
func (p *Pool) Lookup(id uint64) (*Block, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.blocks[id]
	return b, ok
}

// Release drops the pool's bookkeeping entry for id; the block itself is
// freed once its own reference counts reach zero.
func (p *Pool) Release(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.blocks, id)
}

// Export reserves a sub-region of block as a SHM reference tuple, bumping
// the export-side refcount so the block survives until the peer releases
// its import.
func (p *Pool) Export(b *Block, offset, size uint64) (message.ShmRef, liberr.Error) {
	if _, e := b.Slice(offset, size); e != nil {
		return message.ShmRef{}, e
	}
	b.RefExport()
	return message.ShmRef{
		MemType: uint32(b.Type()),
		BlockID: b.ID(),
		ShmID:   p.id,
		Offset:  offset,
		Size:    size,
	}, nil
}

// Import registers a block received from a peer (already mapped by the
// caller from a received file descriptor, via ImportMemfdBlock) under the
// id carried by ref, and returns the referenced byte view.
func (p *Pool) Import(ref message.ShmRef, b *Block) ([]byte, liberr.Error) {
	b.RefImport()
	p.mu.Lock()
	p.blocks[ref.BlockID] = b
	p.mu.Unlock()
	return b.Slice(ref.Offset, ref.Size)
}

// ReleaseImport matches a prior Import: it decrements the import refcount
// and drops the pool's bookkeeping entry once the block is fully released.
func (p *Pool) ReleaseImport(id uint64) {
	b, ok := p.Lookup(id)
	if !ok {
		return
	}
	b.UnrefImport()
	if atomic.LoadInt32(&b.importRefs) <= 0 {
		p.Release(id)
	}
}

// ReleaseExport matches a prior Export, decrementing the export refcount
// once the peer has acknowledged consuming the data (BinaryDataAck).
func (p *Pool) ReleaseExport(id uint64) {
	b, ok := p.Lookup(id)
	if !ok {
		return
	}
	b.UnrefExport()
}

// Close releases every block still tracked by the pool regardless of
// reference count, used when the owning connection tears down.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, b := range p.blocks {
		b.free()
		delete(p.blocks, id)
	}
}
