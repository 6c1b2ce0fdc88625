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

// Package server implements Server, Connection and Channel, the
// server-side counterpart to inc/client (spec section 4.11): accepting
// devices from the Engine, running one handshake and protocol per
// connection, subscription-pattern broadcast routing and channel
// allocation.
package server

import (
	"time"

	"github.com/nabbar/ishell/inc/handshake"
)

// EncryptionRequirement is the handshake policy the server enforces on
// every incoming client (spec section 6).
type EncryptionRequirement = handshake.EncryptionPolicy

// Config holds every Server option from spec section 6.
type Config struct {
	ListenAddress string

	VersionPolicy        handshake.VersionPolicy
	ProtocolVersionRange handshake.VersionRange

	MaxConnections        int
	MaxConnectionsPerHost int

	SharedMemorySize    int
	DisableSharedMemory bool
	DisableMemfd        bool
	DisableCompression  bool

	MaxMessageSize uint32

	EncryptionRequirement EncryptionRequirement

	ClientTimeout  time.Duration
	ExitIdleTime   time.Duration

	NodeName string
}

// DefaultSharedMemorySize mirrors inc/client's default pool size.
const DefaultSharedMemorySize = 64 * 1024 * 1024

func (c Config) sharedMemorySize() int {
	if c.SharedMemorySize > 0 {
		return c.SharedMemorySize
	}
	return DefaultSharedMemorySize
}

func (c Config) maxMessageSize() uint32 {
	if c.MaxMessageSize > 0 {
		return c.MaxMessageSize
	}
	return 16 * 1024 * 1024
}
