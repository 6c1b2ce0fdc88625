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

package handshake

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
)

// Client drives the client side of the handshake state machine (spec
// section 4.7).
type Client struct {
	mu sync.Mutex

	local   Data
	state   State
	lastErr liberr.Error

	versions     VersionRange
	requireEncry bool

	negotiated *bitset.BitSet
}

// NewClient builds a Client that will advertise local and, if requireEncry
// is set, refuse to complete unless the server offers Encryption.
func NewClient(local Data, versions VersionRange, requireEncry bool) *Client {
	return &Client{local: local, versions: versions, requireEncry: requireEncry, state: Idle}
}

// State returns the current handshake state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Error returns the failure reason once State is Failed.
func (c *Client) Error() liberr.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start serialises the client's local handshake payload and transitions
// Idle -> Sending.
func (c *Client) Start() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Sending
	return Encode(c.local)
}

// ProcessHandshake validates the server's HandshakeAck payload (protocol
// version range, required-encryption policy) and transitions
// Sending -> Completed or Failed.
func (c *Client) ProcessHandshake(payload []byte) liberr.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	remote, e := Decode(payload)
	if e != nil {
		c.state = Failed
		c.lastErr = e
		return e
	}

	if remote.ProtocolVersion < c.versions.Min || remote.ProtocolVersion > c.versions.Max {
		c.state = Failed
		c.lastErr = liberr.New(uint16(liberr.ProtocolError), "server protocol version outside accepted range")
		return c.lastErr
	}

	if c.requireEncry && !Has(remote.Capabilities, inc.CapEncryption) {
		c.state = Failed
		c.lastErr = liberr.New(uint16(liberr.ProtocolError), "server does not offer required encryption capability")
		return c.lastErr
	}

	c.negotiated = Intersect(c.local.Capabilities, remote.Capabilities)
	c.state = Completed
	return nil
}

// Negotiated returns the capability intersection once Completed.
func (c *Client) Negotiated() *bitset.BitSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiated
}
