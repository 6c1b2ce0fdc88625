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

// Package message implements the INC wire format: the fixed 24-byte header
// (spec section 6) and the self-describing tag-struct payload codec (spec
// section 4.6) built on top of it.
package message

import (
	"encoding/binary"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
)

// Header is the fixed-layout little-endian preamble of every INC message.
type Header struct {
	Magic           uint32
	Type            inc.MessageType
	Flags           inc.Flags
	Sequence        uint32
	ChannelID       uint32
	ProtocolVersion uint8
	PayloadVersion  uint8
	reserved        uint16
	PayloadLength   uint32
}

// NewHeader builds a Header for typ/seq/channel with the given payload
// length, stamping HeaderMagic and the given protocol/payload versions.
func NewHeader(typ inc.MessageType, flags inc.Flags, seq, channel uint32, protoVersion, payloadVersion uint8, payloadLen uint32) Header {
	return Header{
		Magic:           inc.HeaderMagic,
		Type:            typ,
		Flags:           flags,
		Sequence:        seq,
		ChannelID:       channel,
		ProtocolVersion: protoVersion,
		PayloadVersion:  payloadVersion,
		PayloadLength:   payloadLen,
	}
}

// Encode writes the header in its 24-byte wire layout.
func (h Header) Encode() [inc.HeaderSize]byte {
	var buf [inc.HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(h.Type))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Flags))
	binary.LittleEndian.PutUint32(buf[8:12], h.Sequence)
	binary.LittleEndian.PutUint32(buf[12:16], h.ChannelID)
	buf[16] = h.ProtocolVersion
	buf[17] = h.PayloadVersion
	binary.LittleEndian.PutUint16(buf[18:20], 0)
	binary.LittleEndian.PutUint32(buf[20:24], h.PayloadLength)
	return buf
}

// DecodeHeader parses a 24-byte buffer into a Header. It validates the magic
// number only; payload-length bounds are enforced by the caller against its
// configured maxMessageSize.
func DecodeHeader(buf []byte) (Header, liberr.Error) {
	if len(buf) < inc.HeaderSize {
		return Header{}, liberr.New(uint16(liberr.InvalidMessage), "short header buffer")
	}

	h := Header{
		Magic:           binary.LittleEndian.Uint32(buf[0:4]),
		Type:            inc.MessageType(binary.LittleEndian.Uint16(buf[4:6])),
		Flags:           inc.Flags(binary.LittleEndian.Uint16(buf[6:8])),
		Sequence:        binary.LittleEndian.Uint32(buf[8:12]),
		ChannelID:       binary.LittleEndian.Uint32(buf[12:16]),
		ProtocolVersion: buf[16],
		PayloadVersion:  buf[17],
		PayloadLength:   binary.LittleEndian.Uint32(buf[20:24]),
	}

	if h.Magic != inc.HeaderMagic {
		return Header{}, liberr.New(uint16(liberr.ProtocolError), "bad magic number")
	}
	return h, nil
}
