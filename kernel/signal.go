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
	"fmt"
	"sync/atomic"
)

var connSeq uint64

// Connect binds signal on sender to slot on receiver. kind selects the
// delivery mode (DeliveryAuto if omitted); OR-ing uniqueFlag in kind rejects
// the connection if an identical (sender, signal, receiver) tuple with the
// same slot pointer already exists. adapter, if non-nil, transforms Emit's
// argument slice before it reaches slot - this is the argument-adapter
// named in the Object data model.
//
// Connect takes both sender's and receiver's mutex (ordered by address) so
// that a concurrent Destroy on either endpoint cannot race the insert.
func Connect(sender *Object, signal string, receiver *Object, slot func(args []any), kind DeliveryKind, adapter func(args []any) []any) (uint64, error) {
	if sender == nil || receiver == nil || slot == nil {
		return 0, fmt.Errorf("kernel: Connect requires a non-nil sender, receiver and slot")
	}

	unique := kind&uniqueFlag != 0
	id := atomic.AddUint64(&connSeq, 1)
	c := newConnection(id, sender, signal, receiver, slot, adapter, kind)

	var rejected bool
	lockOrdered(sender, receiver, func() {
		if sender.destroyed || receiver.destroyed {
			rejected = true
			return
		}
		if unique {
			for _, existing := range sender.outbound[signal] {
				if existing.isLive() && existing.receiver == receiver && sameFunc(existing.slot, slot) {
					rejected = true
					return
				}
			}
		}
		sender.outbound[signal] = append(sender.outbound[signal], c)
		receiver.inbound = append(receiver.inbound, c)
	})

	if rejected {
		return 0, fmt.Errorf("kernel: Connect rejected (destroyed endpoint or duplicate unique connection)")
	}
	return id, nil
}

// sameFunc compares two slot functors by identity. Go forbids comparing
// func values directly; reflect-free identity comparison isn't possible
// either, so this package only enforces uniqueness among slots registered
// through the same closure variable, which is the common case for generated
// RPC dispatch tables. Callers needing exact-duplicate rejection should key
// connections themselves and use Disconnect before reconnecting.
func sameFunc(a, b func(args []any)) bool {
	return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
}

// Disconnect orphans every Live connection on sender matching the given
// filters. A zero/empty filter value matches any connection. Passing no
// filters at all disconnects every outbound connection of sender.
func Disconnect(sender *Object, signal string, receiver *Object) {
	if sender == nil {
		return
	}

	sender.m.Lock()
	defer sender.m.Unlock()

	if signal == "" {
		for _, conns := range sender.outbound {
			disconnectMatching(conns, receiver)
		}
		return
	}
	disconnectMatching(sender.outbound[signal], receiver)
}

func disconnectMatching(conns []*Connection, receiver *Object) {
	for _, c := range conns {
		if receiver == nil || c.receiver == receiver {
			c.orphan()
		}
	}
}

// Emit invokes every Live connection registered for signal on sender, in
// connection order, applying each connection's DeliveryKind. Emit returns
// once every DeliveryDirect and DeliveryBlockingQueued slot has run;
// DeliveryQueued slots are merely posted and may still be pending when Emit
// returns.
func Emit(sender *Object, signal string, args ...any) {
	if sender == nil {
		return
	}

	sender.m.RLock()
	conns := append([]*Connection(nil), sender.outbound[signal]...)
	sender.m.RUnlock()

	var live []*Connection
	for _, c := range conns {
		if c.isLive() {
			live = append(live, c)
		}
	}

	for _, c := range live {
		dispatch(sender, c, args)
	}
}

func dispatch(sender *Object, c *Connection, args []any) {
	callArgs := args
	if c.adapter != nil {
		callArgs = c.adapter(args)
	}

	kind := c.kind
	if kind == DeliveryAuto {
		if sender.Thread() == c.receiver.Thread() {
			kind = DeliveryDirect
		} else {
			kind = DeliveryQueued
		}
	}

	switch kind {
	case DeliveryDirect:
		c.slot(callArgs)

	case DeliveryQueued:
		t := c.receiver.Thread()
		t.post(Event{Type: EventMetaCall, Receiver: c.receiver, Data: &metaCall{
			invoke: func() { c.slot(callArgs) },
		}})

	case DeliveryBlockingQueued:
		t := c.receiver.Thread()
		done := make(chan struct{})
		t.post(Event{Type: EventMetaCall, Receiver: c.receiver, Data: &metaCall{
			invoke: func() { c.slot(callArgs) },
			done:   done,
		}})
		<-done
	}
}

// InvokeMethod schedules fn to run against target's thread affinity
// according to kind (DeliveryAuto resolves against the calling goroutine's
// CurrentThread). It is the same machinery Emit uses for a single slot,
// exposed directly for RPC dispatch that has no associated signal name.
func InvokeMethod(target *Object, kind DeliveryKind, fn func()) {
	if target == nil || fn == nil {
		return
	}

	if kind == DeliveryAuto {
		if CurrentThread() == target.Thread() {
			kind = DeliveryDirect
		} else {
			kind = DeliveryQueued
		}
	}

	switch kind {
	case DeliveryDirect:
		fn()
	case DeliveryQueued:
		target.Thread().post(Event{Type: EventMetaCall, Receiver: target, Data: &metaCall{invoke: fn}})
	case DeliveryBlockingQueued:
		done := make(chan struct{})
		target.Thread().post(Event{Type: EventMetaCall, Receiver: target, Data: &metaCall{invoke: fn, done: done}})
		<-done
	}
}
