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

// Package handshake implements the client/server handshake state machines
// and version/encryption negotiation policies of spec section 4.7.
package handshake

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/hashicorp/go-uuid"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
	"github.com/nabbar/ishell/inc/message"
)

// State is the handshake state machine's current step (spec section 4.7).
type State uint8

const (
	Idle State = iota
	Sending
	Receiving
	Completed
	Failed
)

// VersionPolicy governs how a Server accepts a client's protocol version.
type VersionPolicy uint8

const (
	// Strict requires client.version == server.current.
	Strict VersionPolicy = iota
	// Compatible requires client.version in [min, max].
	Compatible
	// Permissive accepts any version. Nothing is reported on a mismatch;
	// the client's version is available through Server.Peer.
	Permissive
)

// EncryptionPolicy governs how a Server reacts to a client's Encryption
// capability advertisement.
type EncryptionPolicy uint8

const (
	EncryptionOptional EncryptionPolicy = iota
	EncryptionPreferred
	EncryptionRequired
)

// VersionRange is the (current, min, max) triple advertised/enforced on
// both sides (spec section 6, Context/Server configuration).
type VersionRange struct {
	Current uint32
	Min     uint32
	Max     uint32
}

// Data is the wire payload of a Handshake/HandshakeAck message (spec
// section 3).
type Data struct {
	ProtocolVersion uint32
	NodeName        string
	NodeID          string
	Capabilities    *bitset.BitSet
	AuthToken       []byte
}

// capBits is the fixed ordering of inc.Capability flags mapped onto bitset
// positions 0..5.
var capBits = []inc.Capability{
	inc.CapCompression,
	inc.CapEncryption,
	inc.CapStream,
	inc.CapPriority,
	inc.CapMultiplexing,
	inc.CapFileTransfer,
}

// NewCapabilities builds a bitset from an inc.Capability bitmask.
func NewCapabilities(mask inc.Capability) *bitset.BitSet {
	bs := bitset.New(uint(len(capBits)))
	for i, c := range capBits {
		if mask&c != 0 {
			bs.Set(uint(i))
		}
	}
	return bs
}

// ToMask collapses a capability bitset back to an inc.Capability bitmask.
func ToMask(bs *bitset.BitSet) inc.Capability {
	var mask inc.Capability
	if bs == nil {
		return 0
	}
	for i, c := range capBits {
		if bs.Test(uint(i)) {
			mask |= c
		}
	}
	return mask
}

// Has reports whether cap is present in bs.
func Has(bs *bitset.BitSet, cap inc.Capability) bool {
	return bs != nil && bs.Test(uint(bits.TrailingZeros32(uint32(cap))))
}

// Intersect returns the capabilities present in both a and b.
func Intersect(a, b *bitset.BitSet) *bitset.BitSet {
	if a == nil || b == nil {
		return bitset.New(uint(len(capBits)))
	}
	return a.Intersection(b)
}

// NewNodeID generates a random node identifier for Data.NodeID.
func NewNodeID() (string, liberr.Error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", liberr.New(uint16(liberr.Internal), "generate node id", err)
	}
	return id, nil
}

// Encode serialises Data as a tag-struct payload.
func Encode(d Data) []byte {
	w := message.NewWriter()
	w.PutU32(d.ProtocolVersion)
	w.PutString(d.NodeName)
	w.PutString(d.NodeID)
	w.PutU32(uint32(ToMask(d.Capabilities)))
	w.PutBytes(d.AuthToken)
	w.End()
	return w.Bytes()
}

// Decode parses the tag-struct payload produced by Encode.
func Decode(buf []byte) (Data, liberr.Error) {
	r := message.NewReader(buf)
	var d Data
	var e liberr.Error

	if d.ProtocolVersion, e = r.GetU32(); e != nil {
		return Data{}, e
	}
	if d.NodeName, e = r.GetString(); e != nil {
		return Data{}, e
	}
	if d.NodeID, e = r.GetString(); e != nil {
		return Data{}, e
	}
	var mask uint32
	if mask, e = r.GetU32(); e != nil {
		return Data{}, e
	}
	d.Capabilities = NewCapabilities(inc.Capability(mask))
	if d.AuthToken, e = r.GetBytes(); e != nil {
		return Data{}, e
	}
	return d, nil
}
