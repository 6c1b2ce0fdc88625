//go:build linux

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
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// eventfdWakeup backs Wakeup on Linux with a real eventfd(2) descriptor:
// Signal does a non-blocking write of the 8-byte counter increment, Wait
// polls the descriptor for POLLIN up to the requested timeout then reads
// (and thereby resets) the counter.
type eventfdWakeup struct {
	fd int
}

func newPlatformWakeup() wakeupImpl {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		// Fall back to the portable self-pipe backing if eventfd creation
		// fails (e.g. a sandboxed environment denying the syscall).
		return newPipeWakeup()
	}
	return &eventfdWakeup{fd: fd}
}

func (e *eventfdWakeup) signal() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(e.fd, buf[:])
}

func (e *eventfdWakeup) drain() {
	var buf [8]byte
	_, _ = unix.Read(e.fd, buf[:])
}

func (e *eventfdWakeup) wait(timeout time.Duration) bool {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	if timeout < 0 {
		ms = -1
	}

	fds := []unix.PollFd{{Fd: int32(e.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err != nil || n <= 0 {
		return false
	}
	if fds[0].Revents&unix.POLLIN != 0 {
		e.drain()
		return true
	}
	return false
}

func (e *eventfdWakeup) close() error {
	return unix.Close(e.fd)
}
