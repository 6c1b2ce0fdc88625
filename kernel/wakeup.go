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

import "time"

// Wakeup is an edge-triggered wake signal: any number of goroutines may
// call Signal(), any number may Wait() for it, and a burst of Signal()
// calls between two Wait() calls coalesces into a single wakeup, exactly
// like the level-to-edge behavior of an eventfd counter. The OS-specific
// backing lives in wakeup_*.go behind build tags: eventfd on Linux, and a
// channel-based self-pipe on every other platform and as the Linux
// fallback when eventfd creation fails.
type Wakeup struct {
	impl wakeupImpl
}

// wakeupImpl is the OS-specific backing a Wakeup delegates to.
type wakeupImpl interface {
	signal()
	wait(timeout time.Duration) bool
	drain()
	close() error
}

// NewWakeup creates a Wakeup using the best backing available on the
// current platform (see newPlatformWakeup in the build-tagged files).
func NewWakeup() *Wakeup {
	return &Wakeup{impl: newPlatformWakeup()}
}

// Signal wakes one pending or future Wait call. It is idempotent within a
// single edge: calling Signal any number of times before the next Wait
// still only produces one wakeup, matching eventfd's counter-coalescing
// semantics when the counter is drained down to zero each wait.
func (w *Wakeup) Signal() {
	w.impl.signal()
}

// Wait blocks until Signal is called or timeout elapses, whichever is
// first. It returns true if it was woken by Signal, false on timeout.
func (w *Wakeup) Wait(timeout time.Duration) bool {
	return w.impl.wait(timeout)
}

// Drain consumes a pending signal without blocking, used by the dispatcher
// when an EventSource already reported ready work so there is no reason to
// poll.
func (w *Wakeup) Drain() {
	w.impl.drain()
}

// Close releases the OS resources backing the Wakeup (the eventfd
// descriptor; the channel-based self-pipe holds none and closes as a no-op).
func (w *Wakeup) Close() error {
	return w.impl.close()
}
