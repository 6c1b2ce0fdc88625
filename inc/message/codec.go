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

package message

import (
	"encoding/binary"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
)

// Writer accumulates a tag-struct payload: every Put* call appends a
// tag byte followed by the value's wire bytes, in call order. The zero
// value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) PutBool(v bool) *Writer {
	b := byte(0)
	if v {
		b = 1
	}
	w.buf = append(w.buf, byte(inc.TagBool), b)
	return w
}

func (w *Writer) PutU16(v uint16) *Writer {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, byte(inc.TagU16))
	w.buf = append(w.buf, tmp[:]...)
	return w
}

func (w *Writer) PutU32(v uint32) *Writer {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, byte(inc.TagU32))
	w.buf = append(w.buf, tmp[:]...)
	return w
}

func (w *Writer) PutU64(v uint64) *Writer {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, byte(inc.TagU64))
	w.buf = append(w.buf, tmp[:]...)
	return w
}

func (w *Writer) PutI32(v int32) *Writer {
	return w.PutU32FromTag(inc.TagI32, uint32(v))
}

// PutU32FromTag is shared by PutI32 and anything else that needs a u32-shaped
// value under a different tag.
func (w *Writer) PutU32FromTag(tag inc.Tag, v uint32) *Writer {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, byte(tag))
	w.buf = append(w.buf, tmp[:]...)
	return w
}

func (w *Writer) PutString(v string) *Writer {
	w.buf = append(w.buf, byte(inc.TagString))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)))
	w.buf = append(w.buf, tmp[:]...)
	w.buf = append(w.buf, v...)
	return w
}

func (w *Writer) PutBytes(v []byte) *Writer {
	w.buf = append(w.buf, byte(inc.TagBytes))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)))
	w.buf = append(w.buf, tmp[:]...)
	w.buf = append(w.buf, v...)
	return w
}

// End appends the end-of-stream tag. Calling End is optional for a Writer
// whose output is wrapped in a length-prefixed message payload (the reader
// then stops at the declared length), but matches the teacher's builder
// style of an explicit terminal call and lets a payload be self-terminating
// when embedded without a surrounding length.
func (w *Writer) End() *Writer {
	w.buf = append(w.buf, byte(inc.TagEnd))
	return w
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader consumes a tag-struct payload produced by Writer, failing cleanly
// on type mismatch or premature end-of-stream (spec section 8, property 6).
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential Get* calls.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports whether more tagged values remain before TagEnd or the
// end of buf.
func (r *Reader) Remaining() bool {
	return r.pos < len(r.buf) && inc.Tag(r.buf[r.pos]) != inc.TagEnd
}

func (r *Reader) expect(tag inc.Tag) liberr.Error {
	if r.pos >= len(r.buf) {
		return liberr.New(uint16(liberr.InvalidMessage), "truncated tag-struct stream")
	}
	got := inc.Tag(r.buf[r.pos])
	if got != tag {
		return liberr.New(uint16(liberr.InvalidMessage), "tag-struct type mismatch")
	}
	r.pos++
	return nil
}

func (r *Reader) need(n int) liberr.Error {
	if len(r.buf)-r.pos < n {
		return liberr.New(uint16(liberr.InvalidMessage), "truncated tag-struct value")
	}
	return nil
}

func (r *Reader) GetBool() (bool, liberr.Error) {
	if e := r.expect(inc.TagBool); e != nil {
		return false, e
	}
	if e := r.need(1); e != nil {
		return false, e
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *Reader) GetU16() (uint16, liberr.Error) {
	if e := r.expect(inc.TagU16); e != nil {
		return 0, e
	}
	if e := r.need(2); e != nil {
		return 0, e
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *Reader) GetU32() (uint32, liberr.Error) {
	if e := r.expect(inc.TagU32); e != nil {
		return 0, e
	}
	if e := r.need(4); e != nil {
		return 0, e
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetU64() (uint64, liberr.Error) {
	if e := r.expect(inc.TagU64); e != nil {
		return 0, e
	}
	if e := r.need(8); e != nil {
		return 0, e
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *Reader) GetI32() (int32, liberr.Error) {
	if e := r.expect(inc.TagI32); e != nil {
		return 0, e
	}
	if e := r.need(4); e != nil {
		return 0, e
	}
	v := int32(binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4]))
	r.pos += 4
	return v, nil
}

func (r *Reader) GetString() (string, liberr.Error) {
	if e := r.expect(inc.TagString); e != nil {
		return "", e
	}
	if e := r.need(4); e != nil {
		return "", e
	}
	n := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	if e := r.need(int(n)); e != nil {
		return "", e
	}
	v := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return v, nil
}

func (r *Reader) GetBytes() ([]byte, liberr.Error) {
	if e := r.expect(inc.TagBytes); e != nil {
		return nil, e
	}
	if e := r.need(4); e != nil {
		return nil, e
	}
	n := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	if e := r.need(int(n)); e != nil {
		return nil, e
	}
	v := make([]byte, n)
	copy(v, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return v, nil
}
