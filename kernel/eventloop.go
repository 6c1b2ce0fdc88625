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
	"time"
)

// EventLoop runs a ThreadData's event processing until told to exit. A
// thread may run several nested EventLoops (e.g. a modal wait issued from
// inside a slot); LoopDepth tracks the nesting and DeferredDelete honors it.
type EventLoop struct {
	thread     *ThreadData
	exitCode   int32
	exitCalled int32
}

// NewEventLoop creates an EventLoop bound to thread. Passing nil binds it to
// CurrentThread().
func NewEventLoop(thread *ThreadData) *EventLoop {
	if thread == nil {
		thread = CurrentThread()
	}
	if thread.dispatcher == nil {
		thread.dispatcher = newSelectorDispatcher()
	}
	thread.dispatcher.RegisterTimer(GlobalTimers())
	return &EventLoop{thread: thread}
}

// Exec runs the loop until Exit is called (on this instance, a nested
// instance, or any code holding the ThreadData's quit flag), then returns
// the exit code. Each call increments the thread's LoopDepth for its
// duration, which is what lets DeferredDelete distinguish "destroy me now"
// from "destroy me once you unwind to the loop that posted the delete".
func (l *EventLoop) Exec() int {
	t := l.thread
	atomic.AddInt32(&t.loopDepth, 1)
	defer atomic.AddInt32(&t.loopDepth, -1)

	t.clearQuit()
	atomic.StoreInt32(&l.exitCalled, 0)

	for {
		if t.quitRequested() {
			break
		}

		t.setCanWait(true)
		t.dispatcher.ProcessEvents(50 * time.Millisecond)

		drainPostedEvents(t, atomic.LoadInt32(&t.loopDepth))

		if t.quitRequested() {
			break
		}
	}

	return int(atomic.LoadInt32(&l.exitCode))
}

// ProcessOneBatch runs a single, non-blocking iteration of the loop body
// (poll once, then drain whatever posted events are ready) without
// requiring a full blocking Exec/Exit pair. It is useful for embedding the
// loop inside a caller-driven scheduler (e.g. a test, or a single-threaded
// CLI tool) instead of dedicating a goroutine to Exec.
func (l *EventLoop) ProcessOneBatch() {
	t := l.thread
	atomic.AddInt32(&t.loopDepth, 1)
	defer atomic.AddInt32(&t.loopDepth, -1)

	t.setCanWait(false)
	t.dispatcher.ProcessEvents(0)
	drainPostedEvents(t, atomic.LoadInt32(&t.loopDepth))
}

// Exit requests the innermost running Exec on this loop's thread to return
// code. It is safe to call from any goroutine, including a slot running on
// a different thread.
func (l *EventLoop) Exit(code int) {
	atomic.StoreInt32(&l.exitCode, int32(code))
	atomic.StoreInt32(&l.exitCalled, 1)
	l.thread.requestQuit()
	l.thread.dispatcher.Interrupt()
}

// Thread returns the ThreadData this loop drives.
func (l *EventLoop) Thread() *ThreadData {
	return l.thread
}
