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
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// goroutineID returns the numeric id the Go runtime assigned to the calling
// goroutine. Parsing runtime.Stack's banner is the same trick the logger
// package uses to tag log entries with a stack id; here it keys the
// thread-affinity registry so CurrentThread() can find "this" goroutine's
// ThreadData without a language-level thread-local.
func goroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]

	//nolint #nosec
	/* #nosec */
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}

var threadRegistry sync.Map // goroutine id (uint64) -> *ThreadData

// ThreadData is the per-thread state an Object's affinity binds to: the
// dispatcher it runs events through, its posted-event queue, and the
// reentrancy bookkeeping an EventLoop needs to support nested exec() calls
// (§4.2).
type ThreadData struct {
	m sync.Mutex

	goroutine uint64
	dispatcher EventDispatcher

	queue   []Event
	postSeq uint64

	loopDepth  int32
	scopeDepth int32
	quit       int32
	canWait    int32
	adopted    bool

	cond *sync.Cond
}

// newThreadData allocates a ThreadData bound to goroutine id g, with a
// default selector-based EventDispatcher (see dispatcher.go).
func newThreadData(g uint64) *ThreadData {
	t := &ThreadData{
		goroutine: g,
		dispatcher: newSelectorDispatcher(),
		canWait:   1,
	}
	t.cond = sync.NewCond(&t.m)
	return t
}

// CurrentThread returns the ThreadData affined to the calling goroutine,
// creating and registering one on first use (equivalent to Qt's implicit
// main/worker thread adoption).
func CurrentThread() *ThreadData {
	g := goroutineID()
	if v, ok := threadRegistry.Load(g); ok {
		return v.(*ThreadData)
	}

	t := newThreadData(g)
	t.adopted = true
	actual, _ := threadRegistry.LoadOrStore(g, t)
	return actual.(*ThreadData)
}

// ReleaseCurrentThread forgets the calling goroutine's ThreadData. Call this
// when a pooled goroutine is about to exit so the registry doesn't grow
// without bound; it is not required for correctness, only for memory.
func ReleaseCurrentThread() {
	threadRegistry.Delete(goroutineID())
}

// Dispatcher returns the thread's EventDispatcher.
func (t *ThreadData) Dispatcher() EventDispatcher {
	return t.dispatcher
}

// LoopDepth reports how many nested EventLoop.Exec() calls are currently
// running on this thread. It is zero outside of any exec().
func (t *ThreadData) LoopDepth() int32 {
	return atomic.LoadInt32(&t.loopDepth)
}

// CanWait reports whether the thread's last loop iteration was allowed to
// block waiting for the next event: Exec sets it before each poll, and
// ProcessOneBatch, which never blocks, clears it.
func (t *ThreadData) CanWait() bool {
	return atomic.LoadInt32(&t.canWait) != 0
}

func (t *ThreadData) setCanWait(v bool) {
	if v {
		atomic.StoreInt32(&t.canWait, 1)
	} else {
		atomic.StoreInt32(&t.canWait, 0)
	}
}

// requestQuit marks the thread's innermost event loop for exit; EventLoop.Exec
// observes this on its next iteration.
func (t *ThreadData) requestQuit() {
	atomic.StoreInt32(&t.quit, 1)
}

func (t *ThreadData) quitRequested() bool {
	return atomic.LoadInt32(&t.quit) != 0
}

func (t *ThreadData) clearQuit() {
	atomic.StoreInt32(&t.quit, 0)
}

// post appends ev to the thread's posted-event queue and wakes any loop
// currently blocked waiting for events.
func (t *ThreadData) post(ev Event) {
	ev.level = t.LoopDepth()

	t.m.Lock()
	t.postSeq++
	ev.posted = t.postSeq
	t.queue = append(t.queue, ev)
	t.m.Unlock()

	t.dispatcher.WakeUp()
}

// drain removes and returns every event currently queued, leaving the queue
// empty. Events posted by a slot invoked during drain's own processing are
// not included; they are picked up on the loop's next iteration, which is
// what keeps DeferredDelete from deleting mid-dispatch.
func (t *ThreadData) drain() []Event {
	t.m.Lock()
	defer t.m.Unlock()

	if len(t.queue) == 0 {
		return nil
	}
	out := t.queue
	t.queue = nil
	return out
}
