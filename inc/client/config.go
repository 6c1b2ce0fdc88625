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

// Package client implements Context, the client-side endpoint of one INC
// session (spec section 4.10): connect/disconnect, RPC, pub/sub, heartbeat,
// channel lifecycle and the bounded auto-reconnect scheduler.
package client

import (
	"time"

	"github.com/nabbar/ishell/inc/handshake"
)

// EncryptionMethod is the handshake capability flag advertised for the
// connection's transport security (spec section 6 configuration surface).
// The framework itself does not terminate TLS (Non-goal); the flag only
// feeds capability negotiation.
type EncryptionMethod uint8

const (
	EncryptionNone EncryptionMethod = iota
	EncryptionTLS12
	EncryptionTLS13
)

// Config holds every Context option from spec section 6.
type Config struct {
	DefaultServer string

	ProtocolVersionRange handshake.VersionRange

	DisableSharedMemory bool
	SharedMemorySize    int
	DisableMemfd        bool
	DisableCompression  bool

	EncryptionMethod EncryptionMethod

	AutoReconnect         bool
	ReconnectInterval     time.Duration
	MaxReconnectAttempts  int
	ConnectTimeout        time.Duration
	OperationTimeout      time.Duration

	NodeName string

	MaxMessageSize uint32
}

// DefaultSharedMemorySize is applied when Config.SharedMemorySize is zero
// and shared memory is not disabled.
const DefaultSharedMemorySize = 64 * 1024 * 1024

func (c Config) sharedMemorySize() int {
	if c.SharedMemorySize > 0 {
		return c.SharedMemorySize
	}
	return DefaultSharedMemorySize
}
