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
	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
)

// Message is a fully decoded wire message: header plus raw payload bytes.
// Payload is the tag-struct stream described by spec section 4.6; callers
// wrap/unwrap it with Writer/Reader.
type Message struct {
	Header  Header
	Payload []byte
}

// New builds a Message with a freshly stamped header for typ/seq/channel.
func New(typ inc.MessageType, flags inc.Flags, seq, channel uint32, protoVersion, payloadVersion uint8, payload []byte) Message {
	return Message{
		Header:  NewHeader(typ, flags, seq, channel, protoVersion, payloadVersion, uint32(len(payload))),
		Payload: payload,
	}
}

// Encode serialises the message as header||payload.
func (m Message) Encode() []byte {
	h := m.Header.Encode()
	out := make([]byte, 0, len(h)+len(m.Payload))
	out = append(out, h[:]...)
	out = append(out, m.Payload...)
	return out
}

// Decode parses a complete header+payload buffer, enforcing maxSize against
// the declared payload length (spec section 4.6, MESSAGE_TOO_LARGE).
func Decode(buf []byte, maxSize uint32) (Message, liberr.Error) {
	h, e := DecodeHeader(buf)
	if e != nil {
		return Message{}, e
	}
	if h.PayloadLength > maxSize {
		return Message{}, liberr.New(uint16(liberr.MessageTooLarge), "payload length exceeds configured maximum")
	}
	if uint32(len(buf))-inc.HeaderSize < h.PayloadLength {
		return Message{}, liberr.New(uint16(liberr.InvalidMessage), "truncated payload")
	}
	payload := make([]byte, h.PayloadLength)
	copy(payload, buf[inc.HeaderSize:inc.HeaderSize+int(h.PayloadLength)])
	return Message{Header: h, Payload: payload}, nil
}

// ShmRef is the SHM reference tuple embedded in a BinaryData payload when
// the ShmData flag is set (spec section 4.8): (memory-type, block-id,
// shm-id, offset, size).
type ShmRef struct {
	MemType uint32
	BlockID uint64
	ShmID   uint32
	Offset  uint64
	Size    uint64
}

// EncodeShmRef serialises a ShmRef as a tag-struct value sequence.
func EncodeShmRef(r ShmRef) []byte {
	w := NewWriter()
	w.PutU32(r.MemType)
	w.PutU64(r.BlockID)
	w.PutU32(r.ShmID)
	w.PutU64(r.Offset)
	w.PutU64(r.Size)
	return w.Bytes()
}

// DecodeShmRef parses the tuple written by EncodeShmRef.
func DecodeShmRef(buf []byte) (ShmRef, liberr.Error) {
	r := NewReader(buf)
	var out ShmRef
	var e liberr.Error

	if out.MemType, e = r.GetU32(); e != nil {
		return ShmRef{}, e
	}
	if out.BlockID, e = r.GetU64(); e != nil {
		return ShmRef{}, e
	}
	if out.ShmID, e = r.GetU32(); e != nil {
		return ShmRef{}, e
	}
	if out.Offset, e = r.GetU64(); e != nil {
		return ShmRef{}, e
	}
	if out.Size, e = r.GetU64(); e != nil {
		return ShmRef{}, e
	}
	return out, nil
}
