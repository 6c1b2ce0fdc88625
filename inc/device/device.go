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

// Package device defines the Device contract every INC transport (tcp, unix,
// udp) implements, plus the Base helper that gives each of them a kernel
// Object to emit readyRead/bytesWritten/connected/disconnected/errorOccurred/
// newConnection signals from (spec section 4.5).
package device

import (
	"sync"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/kernel"
)

// Role distinguishes a device that initiated a connection from one that
// accepted it.
type Role uint8

const (
	Client Role = iota
	Server
)

// Device is the common transport contract every INC connection is built on.
type Device interface {
	// Object exposes the kernel Object backing this device's signals, so
	// callers can Connect to readyRead, bytesWritten, connected,
	// disconnected, errorOccurred and (server role) newConnection.
	Object() *kernel.Object

	Open() liberr.Error
	Close() liberr.Error
	IsOpen() bool
	IsSequential() bool

	// Read drains up to maxlen bytes already received. It never blocks:
	// it returns (nil, nil) if nothing is currently available.
	Read(maxlen int) ([]byte, liberr.Error)
	// Write enqueues b for transmission and returns the number of bytes
	// accepted (always len(b) for the devices in this package; partial
	// acceptance is a protocol-layer concern, not a transport one).
	Write(b []byte) (int, liberr.Error)
	BytesAvailable() int

	Role() Role
	PeerAddress() string
	IsLocal() bool

	// StartEventMonitoring begins delivering readyRead/disconnected/
	// errorOccurred signals. MUST be called only after the caller has
	// wired its signal handlers (spec section 4.5) - an early readable
	// event with no listener is silently dropped.
	StartEventMonitoring()
	// ConfigEventAbility enables/disables read/write signal delivery
	// without tearing down the monitoring goroutine.
	ConfigEventAbility(read, write bool)
}

// Signal names common to every Device implementation.
const (
	SigReadyRead     = "readyRead"
	SigBytesWritten  = "bytesWritten"
	SigConnected     = "connected"
	SigDisconnected  = "disconnected"
	SigErrorOccurred = "errorOccurred"
	SigNewConnection = "newConnection"
)

// Base centralises the bookkeeping shared by every concrete Device: the
// kernel Object signals are emitted from, the open/monitoring flags and the
// read/write enable switches toggled by ConfigEventAbility.
type Base struct {
	mu sync.Mutex

	obj  *kernel.Object
	role Role

	open       bool
	monitoring bool
	readOn     bool
	writeOn    bool
}

// NewBase wires a Base of the given role to a fresh kernel.Object affined to
// the calling goroutine's thread.
func NewBase(role Role) Base {
	return Base{
		obj:     kernel.NewObject("device", nil),
		role:    role,
		readOn:  true,
		writeOn: true,
	}
}

func (b *Base) Object() *kernel.Object { return b.obj }
func (b *Base) Role() Role             { return b.role }

// SetOpen records the open/closed state for IsOpen. Concrete transports
// call it from their own Open/Close so Base can answer IsOpen without each
// transport duplicating the flag and its locking.
func (b *Base) SetOpen(v bool) {
	b.mu.Lock()
	b.open = v
	b.mu.Unlock()
}

func (b *Base) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *Base) IsSequential() bool { return true }

func (b *Base) ConfigEventAbility(read, write bool) {
	b.mu.Lock()
	b.readOn = read
	b.writeOn = write
	b.mu.Unlock()
}

func (b *Base) readEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readOn
}

func (b *Base) writeEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeOn
}

func (b *Base) markMonitoring() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.monitoring {
		return false
	}
	b.monitoring = true
	return true
}

// EmitReadyRead fires the readyRead signal if read events are enabled.
func (b *Base) EmitReadyRead() {
	if b.readEnabled() {
		kernel.Emit(b.obj, SigReadyRead)
	}
}

// EmitBytesWritten fires bytesWritten(n) if write events are enabled.
func (b *Base) EmitBytesWritten(n int) {
	if b.writeEnabled() {
		kernel.Emit(b.obj, SigBytesWritten, n)
	}
}

func (b *Base) EmitConnected()          { kernel.Emit(b.obj, SigConnected) }
func (b *Base) EmitDisconnected()       { kernel.Emit(b.obj, SigDisconnected) }
func (b *Base) EmitError(err liberr.Error) { kernel.Emit(b.obj, SigErrorOccurred, err) }
func (b *Base) EmitNewConnection(child Device) {
	kernel.Emit(b.obj, SigNewConnection, child)
}
