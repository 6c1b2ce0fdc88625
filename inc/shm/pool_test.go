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

package shm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/ishell/inc/message"
	"github.com/nabbar/ishell/inc/shm"
)

var _ = Describe("Shared memory pool", func() {
	It("reports small payloads as inline-eligible", func() {
		p := shm.NewPool(4096, true)
		Expect(p.ShouldInline(128)).To(BeTrue())
		Expect(p.ShouldInline(8192)).To(BeFalse())
	})

	It("exports a sub-region and round-trips it through the pool registry", func() {
		p := shm.NewPool(0, true)
		b, err := p.Alloc(256)
		Expect(err).NotTo(HaveOccurred())

		copy(b.Bytes()[10:20], []byte("helloworld"))

		ref, err := p.Export(b, 10, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.ShmID).To(Equal(p.ID()))
		Expect(ref.BlockID).To(Equal(b.ID()))

		found, ok := p.Lookup(ref.BlockID)
		Expect(ok).To(BeTrue())
		view, err := found.Slice(ref.Offset, ref.Size)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(view)).To(Equal("helloworld"))
	})

	It("rejects an out-of-bounds export", func() {
		p := shm.NewPool(0, true)
		b, err := p.Alloc(16)
		Expect(err).NotTo(HaveOccurred())

		_, err = p.Export(b, 10, 32)
		Expect(err).To(HaveOccurred())
	})

	It("drops pool bookkeeping once an import is released", func() {
		p := shm.NewPool(0, true)
		b := shm.NewAnonBlock(64)
		ref := message.ShmRef{MemType: uint32(b.Type()), BlockID: b.ID(), ShmID: p.ID(), Offset: 0, Size: 32}

		_, err := p.Import(ref, b)
		Expect(err).NotTo(HaveOccurred())

		_, ok := p.Lookup(b.ID())
		Expect(ok).To(BeTrue())

		p.ReleaseImport(b.ID())
		_, ok = p.Lookup(b.ID())
		Expect(ok).To(BeFalse())
	})
})
