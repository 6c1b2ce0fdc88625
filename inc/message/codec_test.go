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

package message_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/ishell/inc/message"
)

var _ = Describe("Tag-struct codec", func() {
	It("round-trips every scalar and variable-length type in order", func() {
		w := message.NewWriter()
		w.PutBool(true).PutU16(7).PutU32(1234).PutU64(9876543210).
			PutI32(-42).PutString("hello").PutBytes([]byte{0xDE, 0xAD}).End()

		r := message.NewReader(w.Bytes())

		b, err := r.GetBool()
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(BeTrue())

		u16, err := r.GetU16()
		Expect(err).NotTo(HaveOccurred())
		Expect(u16).To(Equal(uint16(7)))

		u32, err := r.GetU32()
		Expect(err).NotTo(HaveOccurred())
		Expect(u32).To(Equal(uint32(1234)))

		u64, err := r.GetU64()
		Expect(err).NotTo(HaveOccurred())
		Expect(u64).To(Equal(uint64(9876543210)))

		i32, err := r.GetI32()
		Expect(err).NotTo(HaveOccurred())
		Expect(i32).To(Equal(int32(-42)))

		s, err := r.GetString()
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal("hello"))

		by, err := r.GetBytes()
		Expect(err).NotTo(HaveOccurred())
		Expect(by).To(Equal([]byte{0xDE, 0xAD}))

		Expect(r.Remaining()).To(BeFalse())
	})

	It("fails cleanly on a type mismatch instead of returning a partial value", func() {
		w := message.NewWriter().PutU32(1)
		r := message.NewReader(w.Bytes())

		_, err := r.GetString()
		Expect(err).To(HaveOccurred())
	})

	It("fails cleanly on a truncated stream", func() {
		w := message.NewWriter().PutString("hello")
		truncated := w.Bytes()[:len(w.Bytes())-3]

		r := message.NewReader(truncated)
		_, err := r.GetString()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Message header", func() {
	It("rejects a header whose magic does not match", func() {
		buf := make([]byte, 24)
		buf[0] = 0xEF
		buf[1] = 0xBE
		buf[2] = 0xAD
		buf[3] = 0xDE

		_, err := message.DecodeHeader(buf)
		Expect(err).To(HaveOccurred())
	})

	It("encodes and decodes a header losslessly", func() {
		h := message.NewHeader(4, 1, 99, 1, 1, 0, 128)
		buf := h.Encode()

		got, err := message.DecodeHeader(buf[:])
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Sequence).To(Equal(uint32(99)))
		Expect(got.ChannelID).To(Equal(uint32(1)))
		Expect(got.PayloadLength).To(Equal(uint32(128)))
	})
})

var _ = Describe("Message", func() {
	It("is length-preserving for any payload under maxMessageSize (spec property 5)", func() {
		payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
		m := message.New(4, 0, 1, 0, 1, 0, payload)
		raw := m.Encode()

		got, err := message.Decode(raw, 1<<20)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Payload).To(Equal(payload))
	})

	It("rejects a declared payload length beyond the configured maximum", func() {
		m := message.New(4, 0, 1, 0, 1, 0, make([]byte, 32))
		raw := m.Encode()

		_, err := message.Decode(raw, 16)
		Expect(err).To(HaveOccurred())
	})

	It("round-trips an SHM reference tuple", func() {
		ref := message.ShmRef{MemType: 1, BlockID: 42, ShmID: 7, Offset: 0, Size: 1048576}
		got, err := message.DecodeShmRef(message.EncodeShmRef(ref))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(ref))
	})
})
