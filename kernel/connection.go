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

package kernel

import (
	"sync/atomic"
)

// DeliveryKind selects how a connected slot is invoked relative to the
// emitting goroutine and the receiver's thread affinity.
type DeliveryKind uint8

const (
	// DeliveryAuto picks DeliveryDirect if sender and receiver share the same
	// affinity thread at Emit time, DeliveryQueued otherwise. This is the
	// default used by Connect when no kind is given.
	DeliveryAuto DeliveryKind = iota
	// DeliveryDirect invokes the slot synchronously in the emitting goroutine.
	DeliveryDirect
	// DeliveryQueued posts a metaCall event onto the receiver's affinity
	// thread and returns immediately.
	DeliveryQueued
	// DeliveryBlockingQueued posts a metaCall event onto the receiver's
	// affinity thread and blocks the emitting goroutine until it runs.
	// Connecting two Objects of the same affinity thread with this kind
	// deadlocks, mirroring the classic signal/slot contract.
	DeliveryBlockingQueued
)

// uniqueFlag, when set via Connect's variadic options, rejects a connection
// that duplicates an existing (sender, signal, receiver, slot) tuple.
const uniqueFlag DeliveryKind = 1 << 7

// connState is the lifecycle of a Connection record.
type connState uint32

const (
	connLive connState = iota
	connOrphaned
)

// Connection records one signal/slot binding. Connections are never mutated
// in place after creation except for state, which moves Live -> Orphaned
// when either endpoint is destroyed or Disconnect matches it. Orphaned
// connections are not pruned: they stay in the lists of any endpoint still
// alive, and Emit skips them.
type Connection struct {
	sender   *Object
	signal   string
	receiver *Object
	slot     func(args []any)
	adapter  func(args []any) []any
	kind     DeliveryKind
	unique   bool

	state connState
	id    uint64
}

// newConnection builds a Connection in the Live state. adapter may be nil,
// meaning the slot receives Emit's arguments unchanged.
func newConnection(id uint64, sender *Object, signal string, receiver *Object, slot func(args []any), adapter func(args []any) []any, kind DeliveryKind) *Connection {
	unique := kind&uniqueFlag != 0
	return &Connection{
		sender:   sender,
		signal:   signal,
		receiver: receiver,
		slot:     slot,
		adapter:  adapter,
		kind:     kind &^ uniqueFlag,
		unique:   unique,
		state:    connLive,
		id:       id,
	}
}

func (c *Connection) isLive() bool {
	return connState(atomic.LoadUint32((*uint32)(&c.state))) == connLive
}

func (c *Connection) orphan() {
	atomic.StoreUint32((*uint32)(&c.state), uint32(connOrphaned))
}
