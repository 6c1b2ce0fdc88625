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

// EventSource is the contract an EventDispatcher polls every iteration of
// its prepare/query/poll/check/dispatch cycle (§4.2). Implementations
// include the Wakeup primitive, the Timer registry, and device-level I/O
// readiness sources registered by inc/device.
type EventSource interface {
	// Name identifies the source for diagnostics.
	Name() string
	// Priority orders Check/Dispatch among ready sources; lower runs first.
	Priority() int
	// Prepare is called before the dispatcher computes how long it may
	// block. Returning true means the source already has pending work and
	// the dispatcher must not block at all this iteration.
	Prepare() bool
	// Check is called after the poll step; it reports whether Dispatch
	// should be invoked for this iteration.
	Check() bool
	// Dispatch processes the source's pending work. It returns true if it
	// did any work.
	Dispatch() bool
}

// baseEventSource gives EventSource implementations a ref-counted,
// attach/detach-aware embedding, mirroring the attach-to-one-dispatcher
// convention used by Wakeup and Timer.
type baseEventSource struct {
	name     string
	priority int
	refs     int32
	flags    uint32
	disp     EventDispatcher
}

func newBaseEventSource(name string, priority int) baseEventSource {
	return baseEventSource{name: name, priority: priority}
}

func (b *baseEventSource) Name() string  { return b.name }
func (b *baseEventSource) Priority() int { return b.priority }

// attach records which dispatcher owns this source; detach clears it. Both
// are reference-counted so the same source can be shared (e.g. a Timer
// registry referenced by more than one dispatcher during a thread-affinity
// change window) without losing track of the last owner to detach.
func (b *baseEventSource) attach(d EventDispatcher) {
	atomic.AddInt32(&b.refs, 1)
	b.disp = d
}

func (b *baseEventSource) detach() {
	if atomic.AddInt32(&b.refs, -1) <= 0 {
		b.disp = nil
	}
}

func (b *baseEventSource) attachedDispatcher() EventDispatcher {
	return b.disp
}
