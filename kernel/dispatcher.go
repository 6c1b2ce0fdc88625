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
	"sort"
	"sync"
	"time"
)

// EventDispatcher is the abstract contract behind a ThreadData's event
// processing. A dispatcher owns a set of EventSources and runs them through
// a prepare/query/poll/check/dispatch cycle each time ProcessEvents is
// called.
type EventDispatcher interface {
	// ProcessEvents runs one cycle. timeout bounds how long it may block
	// waiting for a source to become ready; a timeout <= 0 means "return
	// immediately if nothing is ready". It returns true if at least one
	// source dispatched work.
	ProcessEvents(timeout time.Duration) bool
	// WakeUp interrupts a blocked ProcessEvents call on another goroutine.
	// It is always safe to call, including when nothing is blocked.
	WakeUp()
	// Interrupt is a stronger WakeUp that also asks the next ProcessEvents
	// call to return immediately without polling sources, used by
	// EventLoop.Exit.
	Interrupt()
	// RegisterTimer and UnregisterTimer plug the shared Timer registry into
	// this dispatcher so its deadlines participate in the poll step.
	RegisterTimer(r *TimerRegistry)
	UnregisterTimer(r *TimerRegistry)
	// AttachEventSource and DetachEventSource manage additional sources
	// (device readiness, custom pollable work) beyond the built-in Wakeup
	// and Timer sources.
	AttachEventSource(s EventSource)
	DetachEventSource(s EventSource)
}

// selectorDispatcher is the default EventDispatcher: a goroutine-native
// "selector" that prepares every attached EventSource, waits on the
// Wakeup's channel up to the nearest timer deadline (or the caller's
// timeout, whichever is sooner), then checks and dispatches whichever
// sources report readiness. It needs no raw epoll/kqueue handle because Go
// transports (net.Conn, os.Pipe) already integrate with the runtime
// netpoller; only the cross-goroutine wake signal needs an OS primitive,
// which Wakeup supplies.
type selectorDispatcher struct {
	m sync.Mutex

	wake    *Wakeup
	timers  []*TimerRegistry
	sources []EventSource

	interrupted bool
}

func newSelectorDispatcher() *selectorDispatcher {
	return &selectorDispatcher{
		wake: NewWakeup(),
	}
}

func (d *selectorDispatcher) RegisterTimer(r *TimerRegistry) {
	d.m.Lock()
	defer d.m.Unlock()
	d.timers = append(d.timers, r)
}

func (d *selectorDispatcher) UnregisterTimer(r *TimerRegistry) {
	d.m.Lock()
	defer d.m.Unlock()
	for i, t := range d.timers {
		if t == r {
			d.timers = append(d.timers[:i], d.timers[i+1:]...)
			return
		}
	}
}

func (d *selectorDispatcher) AttachEventSource(s EventSource) {
	d.m.Lock()
	defer d.m.Unlock()
	if b, ok := s.(interface{ attach(EventDispatcher) }); ok {
		b.attach(d)
	}
	d.sources = append(d.sources, s)
	sort.SliceStable(d.sources, func(i, j int) bool { return d.sources[i].Priority() < d.sources[j].Priority() })
}

func (d *selectorDispatcher) DetachEventSource(s EventSource) {
	d.m.Lock()
	defer d.m.Unlock()
	for i, s2 := range d.sources {
		if s2 == s {
			d.sources = append(d.sources[:i], d.sources[i+1:]...)
			if b, ok := s.(interface{ detach() }); ok {
				b.detach()
			}
			return
		}
	}
}

func (d *selectorDispatcher) WakeUp() {
	d.wake.Signal()
}

func (d *selectorDispatcher) Interrupt() {
	d.m.Lock()
	d.interrupted = true
	d.m.Unlock()
	d.wake.Signal()
}

// ProcessEvents implements the 5-step cycle:
//  1. prepare  - ask every source if it already has pending work
//  2. query    - compute the soonest timer deadline across registered
//                TimerRegistry instances, bounding the wait
//  3. poll     - block on the Wakeup channel until woken, the deadline
//                elapses, or the caller's timeout elapses, whichever first
//  4. check    - ask every source whether it is now ready
//  5. dispatch - run Dispatch() on every ready source, in priority order
func (d *selectorDispatcher) ProcessEvents(timeout time.Duration) bool {
	d.m.Lock()
	if d.interrupted {
		d.interrupted = false
		d.m.Unlock()
		return false
	}
	sources := append([]EventSource(nil), d.sources...)
	timers := append([]*TimerRegistry(nil), d.timers...)
	d.m.Unlock()

	// step 1: prepare
	ready := false
	for _, s := range sources {
		if s.Prepare() {
			ready = true
		}
	}

	// step 2: query soonest deadline
	wait := timeout
	for _, r := range timers {
		if next, ok := r.NextDeadline(); ok {
			if d := time.Until(next); d < wait {
				wait = d
			}
		}
	}
	if wait < 0 {
		wait = 0
	}

	// step 3: poll, unless a source already claimed to be ready
	if !ready && wait > 0 {
		d.wake.Wait(wait)
	} else if !ready {
		d.wake.Drain()
	}

	// step 4 + 5: check then dispatch, in priority order
	dispatched := false
	for _, s := range sources {
		if s.Check() {
			if s.Dispatch() {
				dispatched = true
			}
		}
	}
	return dispatched
}
