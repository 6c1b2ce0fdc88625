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
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

var objectSeq uint64

// Object is the base type of the kernel's identity tree: every Object has a
// unique id, an optional parent, zero or more children, a thread of
// affinity, and a signal/slot graph. Object is safe for concurrent use; all
// mutating operations take the per-Object mutex, and cross-Object operations
// (Connect, reparenting) take both mutexes in ascending address order to
// avoid lock-order deadlocks.
type Object struct {
	m sync.RWMutex

	id   uint64
	name string
	meta *MetaObject

	parent   *Object
	children []*Object

	thread *ThreadData

	// outbound is this Object's own signal table: signal name -> live
	// connections where this Object is the sender.
	outbound map[string][]*Connection
	// inbound is the reverse index used to orphan connections quickly when
	// this Object is destroyed while acting as a receiver.
	inbound []*Connection

	destroyed bool
}

// NewObject creates a root Object (no parent) bound to thread. If thread is
// nil the Object is bound to the calling goroutine's default thread via
// CurrentThread.
func NewObject(name string, thread *ThreadData) *Object {
	if thread == nil {
		thread = CurrentThread()
	}
	o := &Object{
		id:       atomic.AddUint64(&objectSeq, 1),
		name:     name,
		thread:   thread,
		outbound: make(map[string][]*Connection),
		inbound:  make([]*Connection, 0),
	}
	o.meta = classFor(o)
	return o
}

// NewChild creates an Object parented to parent, inheriting parent's thread
// affinity unless thread is non-nil.
func NewChild(name string, parent *Object, thread *ThreadData) *Object {
	if parent == nil {
		return NewObject(name, thread)
	}
	if thread == nil {
		thread = parent.Thread()
	}
	c := NewObject(name, thread)
	c.SetParent(parent)
	return c
}

// ID returns the Object's process-unique identity.
func (o *Object) ID() uint64 {
	return o.id
}

// Name returns the Object's debug name, as given to NewObject/NewChild.
func (o *Object) Name() string {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.name
}

// Thread returns the ThreadData this Object currently has affinity with.
func (o *Object) Thread() *ThreadData {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.thread
}

// MoveToThread changes the Object's affinity, posting EventThreadChange on
// the new thread so observers (e.g. a running EventLoop bound to the old
// thread) can react. Queued connections delivered after this call are
// posted to the new thread.
func (o *Object) MoveToThread(t *ThreadData) {
	o.m.Lock()
	old := o.thread
	o.thread = t
	o.m.Unlock()

	if t != nil && t != old {
		t.post(Event{Type: EventThreadChange, Receiver: o, Data: old})
	}
}

// Parent returns the Object's current parent, or nil for a root Object.
func (o *Object) Parent() *Object {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.parent
}

// Children returns a snapshot slice of the Object's direct children.
func (o *Object) Children() []*Object {
	o.m.RLock()
	defer o.m.RUnlock()
	out := make([]*Object, len(o.children))
	copy(out, o.children)
	return out
}

// SetParent reparents o under p, detaching it from any previous parent
// first. Passing nil detaches o into a root Object. No step holds more than
// two locks: the old parent is locked on its own to remove o, and o and p
// are locked together in ascending memory-address order, so concurrent
// reparenting in opposite directions cannot deadlock.
func (o *Object) SetParent(p *Object) {
	old := o.Parent()

	if old != nil {
		old.removeChild(o)
	}

	lockOrdered(o, p, func() {
		o.parent = p
	})

	if p != nil {
		p.addChild(o)
		p.Thread().post(Event{Type: EventChildAdded, Receiver: p, Data: o})
	}
	if old != nil {
		old.Thread().post(Event{Type: EventChildRemoved, Receiver: old, Data: o})
	}
}

func (o *Object) addChild(c *Object) {
	o.m.Lock()
	defer o.m.Unlock()
	o.children = append(o.children, c)
}

func (o *Object) removeChild(c *Object) {
	o.m.Lock()
	defer o.m.Unlock()
	for i, ch := range o.children {
		if ch == c {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// lockOrdered locks a and b (either may be nil) in ascending pointer-address
// order, runs fn with both held, then unlocks in reverse order. A nil
// argument is simply skipped.
func lockOrdered(a, b *Object, fn func()) {
	pa := uintptr(unsafe.Pointer(a))
	pb := uintptr(unsafe.Pointer(b))

	first, second := a, b
	if pa > pb {
		first, second = b, a
	}

	if first != nil {
		first.m.Lock()
		defer first.m.Unlock()
	}
	if second != nil && second != first {
		second.m.Lock()
		defer second.m.Unlock()
	}

	fn()
}

// Destroy tears down the Object: it orphans every connection where o is
// sender or receiver, detaches o from its parent, and recursively destroys
// its children depth-first. Destroy is idempotent.
func (o *Object) Destroy() {
	o.m.Lock()
	if o.destroyed {
		o.m.Unlock()
		return
	}
	o.destroyed = true
	kids := make([]*Object, len(o.children))
	copy(kids, o.children)
	inbound := make([]*Connection, len(o.inbound))
	copy(inbound, o.inbound)
	outbound := o.outbound
	o.outbound = nil
	o.inbound = nil
	o.m.Unlock()

	for _, k := range kids {
		k.Destroy()
	}
	for _, conns := range outbound {
		for _, c := range conns {
			c.orphan()
		}
	}
	for _, c := range inbound {
		c.orphan()
	}

	if p := o.Parent(); p != nil {
		p.removeChild(o)
	}
}

// DeferredDelete schedules o for destruction by a later drain of its
// thread's posted events that runs at a loop depth no deeper than the
// current one, instead of destroying it immediately. Use this from inside a slot to avoid destroying the Object
// the currently-executing slot belongs to out from under the dispatcher.
func (o *Object) DeferredDelete() {
	o.Thread().post(Event{Type: EventDeferredDelete, Receiver: o})
}

// String implements fmt.Stringer for debug output: "<ClassName>(name#id)".
func (o *Object) String() string {
	cls := "Object"
	if o.meta != nil {
		cls = o.meta.Name()
	}
	return fmt.Sprintf("%s(%s#%d)", cls, o.Name(), o.id)
}

// TypeOf returns the reflect.Type recorded for o's registered class, or nil
// when o has no class with a recorded type.
func TypeOf(o *Object) reflect.Type {
	if o == nil || o.meta == nil {
		return nil
	}
	return o.meta.rt
}
