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

// Server drives the server side of the handshake state machine (spec
// section 4.7). It stays Idle until the first ProcessHandshake call.
type Server struct {
	mu sync.Mutex

	local Data
	state State

	versionPolicy VersionPolicy
	versions      VersionRange
	encryPolicy   EncryptionPolicy

	lastErr    liberr.Error
	negotiated *bitset.BitSet
	peer       Data
}

// NewServer builds a Server that will advertise local and enforce
// versionPolicy/encryPolicy against every incoming client handshake.
func NewServer(local Data, versionPolicy VersionPolicy, versions VersionRange, encryPolicy EncryptionPolicy) *Server {
	return &Server{local: local, versionPolicy: versionPolicy, versions: versions, encryPolicy: encryPolicy, state: Idle}
}

// State returns the current handshake state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Error returns the failure reason once State is Failed.
func (s *Server) Error() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Peer returns the client's handshake data once validated.
func (s *Server) Peer() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// Negotiated returns the capability intersection once Completed.
func (s *Server) Negotiated() *bitset.BitSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiated
}

// ProcessHandshake validates the client's payload under the server's
// version/encryption policy and returns the server's own HandshakeAck
// payload to send back. Idle -> Completed or Failed.
func (s *Server) ProcessHandshake(payload []byte) ([]byte, liberr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, e := Decode(payload)
	if e != nil {
		s.state = Failed
		s.lastErr = e
		return nil, e
	}
	s.peer = client

	if e := s.checkVersion(client.ProtocolVersion); e != nil {
		s.state = Failed
		s.lastErr = e
		return nil, e
	}

	if e := s.checkEncryption(client.Capabilities); e != nil {
		s.state = Failed
		s.lastErr = e
		return nil, e
	}

	s.negotiated = Intersect(s.local.Capabilities, client.Capabilities)
	s.state = Completed
	return Encode(s.local), nil
}

func (s *Server) checkVersion(clientVersion uint32) liberr.Error {
	switch s.versionPolicy {
	case Strict:
		if clientVersion != s.versions.Current {
			return liberr.New(uint16(liberr.ProtocolError), "client protocol version does not match server (strict policy)")
		}
	case Compatible:
		if clientVersion < s.versions.Min || clientVersion > s.versions.Max {
			return liberr.New(uint16(liberr.ProtocolError), "client protocol version outside compatible range")
		}
	case Permissive:
		// Accept any version; a mismatch is not reported here and is not a
		// handshake failure.
	}
	return nil
}

func (s *Server) checkEncryption(clientCaps *bitset.BitSet) liberr.Error {
	switch s.encryPolicy {
	case EncryptionRequired:
		if !Has(clientCaps, inc.CapEncryption) {
			return liberr.New(uint16(liberr.ProtocolError), "client lacks required encryption capability")
		}
	case EncryptionPreferred, EncryptionOptional:
		// Both accept a client without the Encryption capability; no
		// warning is produced for Preferred, as this state machine has no
		// logger handle.
	}
	return nil
}
