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

// Package inc holds the wire-level constants shared by every layer of the
// INC framework: message type codes, header flags and the tag-struct value
// tags described in spec section 6. Nothing here owns state; it is the
// vocabulary inc/message, inc/protocol, inc/client and inc/server share.
package inc

// MessageType is the wire type code carried in the message header (offset 4,
// 2 bytes, little-endian). The closed set below assigns even codes to
// requests/notifications and odd codes to their Ack/reply counterpart so
// IsReply can be derived from the low bit instead of a second lookup table.
type MessageType uint16

const (
	Invalid MessageType = iota // 0
	_                          // 1 reserved, keeps Handshake even
	Handshake
	HandshakeAck
	MethodCall
	MethodReply
	Event
	_ // 7 reserved (Event has no ack)
	Subscribe
	SubscribeAck
	Unsubscribe
	UnsubscribeAck
	Ping
	Pong
	StreamOpen
	StreamOpenAck
	StreamClose
	StreamCloseAck
	BinaryData
	BinaryDataAck
)

// IsReply reports whether t is an Ack/reply type. Reply codes are always
// odd; the closed iota table above is the only place new types may be added,
// so the parity invariant noted in spec section 9 (open question b) cannot
// be broken by a stray numeric literal elsewhere in the codebase.
func (t MessageType) IsReply() bool {
	return t != Invalid && t&1 == 1
}

// String implements fmt.Stringer for logging.
func (t MessageType) String() string {
	switch t {
	case Invalid:
		return "Invalid"
	case Handshake:
		return "Handshake"
	case HandshakeAck:
		return "HandshakeAck"
	case MethodCall:
		return "MethodCall"
	case MethodReply:
		return "MethodReply"
	case Event:
		return "Event"
	case Subscribe:
		return "Subscribe"
	case SubscribeAck:
		return "SubscribeAck"
	case Unsubscribe:
		return "Unsubscribe"
	case UnsubscribeAck:
		return "UnsubscribeAck"
	case Ping:
		return "Ping"
	case Pong:
		return "Pong"
	case StreamOpen:
		return "StreamOpen"
	case StreamOpenAck:
		return "StreamOpenAck"
	case StreamClose:
		return "StreamClose"
	case StreamCloseAck:
		return "StreamCloseAck"
	case BinaryData:
		return "BinaryData"
	case BinaryDataAck:
		return "BinaryDataAck"
	default:
		return "Unknown"
	}
}

// Flags is the 16-bit header flags bitmask (offset 6).
type Flags uint16

const (
	// ShmData marks a BinaryData payload as an SHM reference tuple rather
	// than inline bytes (spec section 4.8).
	ShmData Flags = 1 << iota
	// Compressed marks the payload as gzip-compressed, set only once both
	// peers have negotiated the Compression capability (spec section 4.7).
	Compressed
)

// Tag is the one-byte value-kind prefix of the tag-struct payload codec
// (spec section 6).
type Tag uint8

const (
	TagEnd Tag = iota
	TagBool
	TagU16
	TagU32
	TagU64
	TagI32
	TagString
	TagBytes
)

// HeaderMagic is the fixed 4-byte little-endian marker "INC\0" at offset 0
// of every message header.
const HeaderMagic uint32 = 0x00434E49

// HeaderSize is the fixed length of the wire header in bytes (spec section 6).
const HeaderSize = 24

// DefaultMaxMessageSize is the compile-time bound on payload-length (spec
// section 4.6); larger declared sizes are rejected as MESSAGE_TOO_LARGE.
const DefaultMaxMessageSize = 16 * 1024 * 1024

// Capability is the handshake capability bitmask (spec section 3).
type Capability uint32

const (
	CapCompression Capability = 1 << iota
	CapEncryption
	CapStream
	CapPriority
	CapMultiplexing
	CapFileTransfer
)
