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

// Package shm implements the shared-memory blocks binary zero-copy transfer
// relies on (spec section 4.8): a memfd-backed allocation pool, and the
// export/import handles that turn a block into the (type, blockId, shmId,
// offset, size) tuple carried in a SHM_DATA BinaryData message and back.
package shm

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/ishell/errors"
)

// MemType identifies the backing mechanism of a Block, carried as the first
// field of the SHM reference tuple (spec section 4.8).
type MemType uint32

const (
	// MemTypeMemfd is a Linux memfd_create-backed block, importable by fd.
	MemTypeMemfd MemType = iota
	// MemTypeAnon is a process-local anonymous block with no importable fd
	// (posix fallback when memfd is disabled). Pool.Export still turns it
	// into a reference tuple, which only resolves through a Pool lookup in
	// the same process.
	MemTypeAnon
)

var blockSeq uint64

// Block is one shared-memory allocation: either memfd-backed (mmap'd, with
// an exportable file descriptor) or a plain heap buffer when memfd is
// disabled by configuration.
type Block struct {
	mu sync.Mutex

	id   uint64
	typ  MemType
	fd   int
	data []byte

	importRefs int32
	exportRefs int32
}

// NewMemfdBlock allocates a size-byte anonymous memfd, maps it, and returns
// the Block wrapping it. name is passed to memfd_create for /proc visibility.
func NewMemfdBlock(name string, size int) (*Block, liberr.Error) {
	fd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return nil, liberr.New(uint16(liberr.Internal), "memfd_create", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, liberr.New(uint16(liberr.Internal), "ftruncate memfd", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, liberr.New(uint16(liberr.Internal), "mmap memfd", err)
	}
	return &Block{
		id:   atomic.AddUint64(&blockSeq, 1),
		typ:  MemTypeMemfd,
		fd:   fd,
		data: data,
	}, nil
}

// NewAnonBlock allocates a process-local buffer with no backing fd, for use
// when memfd is disabled (configuration DisableMemfd). A reference exported
// from it carries no descriptor a peer could map.
func NewAnonBlock(size int) *Block {
	return &Block{
		id:   atomic.AddUint64(&blockSeq, 1),
		typ:  MemTypeAnon,
		fd:   -1,
		data: make([]byte, size),
	}
}

// ImportMemfdBlock wraps a file descriptor received from a peer (e.g. via
// SCM_RIGHTS) as a read-write mapped Block on the importing side.
func ImportMemfdBlock(fd int, size int) (*Block, liberr.Error) {
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, liberr.New(uint16(liberr.Internal), "mmap imported memfd", err)
	}
	return &Block{
		id:   atomic.AddUint64(&blockSeq, 1),
		typ:  MemTypeMemfd,
		fd:   fd,
		data: data,
	}, nil
}

func (b *Block) ID() uint64    { return b.id }
func (b *Block) Type() MemType { return b.typ }
func (b *Block) FD() int       { return b.fd }
func (b *Block) Size() int     { return len(b.data) }

// Bytes returns the full backing slice. Callers writing into it must
// coordinate externally (the Block itself does not serialize writers);
// inc/protocol only ever has one writer per channel at a time.
func (b *Block) Bytes() []byte { return b.data }

// Slice returns the [offset:offset+size) view used to embed a region of a
// larger pool allocation in a single BinaryData send.
func (b *Block) Slice(offset, size uint64) ([]byte, liberr.Error) {
	if offset+size > uint64(len(b.data)) {
		return nil, liberr.New(uint16(liberr.InvalidArgs), "shm slice out of bounds")
	}
	return b.data[offset : offset+size], nil
}

// RefExport increments the export-side reference count (spec section 3,
// "lives as long as any reference is non-zero").
func (b *Block) RefExport() { atomic.AddInt32(&b.exportRefs, 1) }

// RefImport increments the import-side reference count.
func (b *Block) RefImport() { atomic.AddInt32(&b.importRefs, 1) }

// UnrefExport decrements the export-side reference count and frees the
// block if both sides have reached zero.
func (b *Block) UnrefExport() { b.unref(&b.exportRefs) }

// UnrefImport decrements the import-side reference count and frees the
// block if both sides have reached zero.
func (b *Block) UnrefImport() { b.unref(&b.importRefs) }

func (b *Block) unref(counter *int32) {
	if atomic.AddInt32(counter, -1) > 0 {
		return
	}
	if atomic.LoadInt32(&b.importRefs) > 0 || atomic.LoadInt32(&b.exportRefs) > 0 {
		return
	}
	b.free()
}

func (b *Block) free() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return
	}
	if b.typ == MemTypeMemfd {
		_ = unix.Munmap(b.data)
		_ = unix.Close(b.fd)
	}
	b.data = nil
}
