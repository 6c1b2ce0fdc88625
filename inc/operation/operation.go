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

// Package operation tracks the in-flight request/reply pairs a Context (spec
// section 4.10) hands out for callMethod, subscribe/unsubscribe and
// pingpong: one Operation per allocated sequence number, resolved exactly
// once by either a matching reply, a timeout, or an explicit Cancel.
package operation

import (
	"sync"
	"time"

	liberr "github.com/nabbar/ishell/errors"
)

// State is the lifecycle of a tracked Operation.
type State uint8

const (
	Pending State = iota
	Completed
	TimedOut
	Canceled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Completed:
		return "Completed"
	case TimedOut:
		return "TimedOut"
	case Canceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Operation is a single outstanding request, keyed by the wire sequence
// number used to correlate its reply.
type Operation struct {
	mu sync.Mutex

	sequence uint32
	state    State
	result   []byte
	err      liberr.Error
	created  time.Time

	done  chan struct{}
	timer *time.Timer
}

// New creates a Pending Operation for sequence. If timeout is non-zero, the
// Operation transitions to TimedOut on its own once timeout elapses unless
// it is resolved first.
func New(sequence uint32, timeout time.Duration) *Operation {
	o := &Operation{
		sequence: sequence,
		state:    Pending,
		created:  time.Now(),
		done:     make(chan struct{}),
	}
	if timeout > 0 {
		o.timer = time.AfterFunc(timeout, func() {
			o.finish(TimedOut, nil, liberr.New(uint16(liberr.OperationTimeout), "operation timed out"))
		})
	}
	return o
}

// Sequence returns the wire sequence number this Operation tracks.
func (o *Operation) Sequence() uint32 { return o.sequence }

// State returns the current lifecycle state.
func (o *Operation) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Done returns a channel closed once the Operation reaches a terminal state.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Wait blocks until the Operation completes, times out or is canceled, or
// ctx-style deadline d elapses (zero means no extra deadline beyond the
// Operation's own timeout).
func (o *Operation) Wait(d time.Duration) ([]byte, liberr.Error) {
	if d <= 0 {
		<-o.done
		return o.outcome()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-o.done:
		return o.outcome()
	case <-t.C:
		o.finish(TimedOut, nil, liberr.New(uint16(liberr.OperationTimeout), "operation timed out"))
		return o.outcome()
	}
}

func (o *Operation) outcome() ([]byte, liberr.Error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result, o.err
}

// SetResult resolves the Operation as Completed with result, e.g. when the
// matching MethodReply/SubscribeAck/Pong arrives.
func (o *Operation) SetResult(result []byte) {
	o.finish(Completed, result, nil)
}

// Fail resolves the Operation as Completed-with-error, e.g. a MethodReply
// carrying an error code.
func (o *Operation) Fail(err liberr.Error) {
	o.finish(Completed, nil, err)
}

// Cancel resolves the Operation as Canceled, e.g. when its owning Context
// disconnects before a reply arrives.
func (o *Operation) Cancel() {
	o.finish(Canceled, nil, liberr.New(uint16(liberr.Disconnected), "operation canceled"))
}

func (o *Operation) finish(s State, result []byte, err liberr.Error) {
	o.mu.Lock()
	if o.state != Pending {
		o.mu.Unlock()
		return
	}
	o.state = s
	o.result = result
	o.err = err
	created := o.created
	o.mu.Unlock()

	operationDuration.Observe(time.Since(created).Seconds())

	if o.timer != nil {
		o.timer.Stop()
	}
	close(o.done)
}
