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
	"sync"
	"time"
)

// pipeWakeup is the portable Wakeup backing: a single-slot buffered channel
// plays the role of a self-pipe. It is used on every platform other than
// Linux, and as the fallback if eventfd creation fails on Linux.
type pipeWakeup struct {
	m sync.Mutex
	c chan struct{}
}

func newPipeWakeup() wakeupImpl {
	return &pipeWakeup{c: make(chan struct{}, 1)}
}

func (p *pipeWakeup) signal() {
	select {
	case p.c <- struct{}{}:
	default:
		// already signaled and not yet drained: coalesce, like an eventfd
		// counter that saturates instead of overflowing.
	}
}

func (p *pipeWakeup) drain() {
	select {
	case <-p.c:
	default:
	}
}

func (p *pipeWakeup) wait(timeout time.Duration) bool {
	if timeout < 0 {
		<-p.c
		return true
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-p.c:
		return true
	case <-t.C:
		return false
	}
}

func (p *pipeWakeup) close() error {
	return nil
}
