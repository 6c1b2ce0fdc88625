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

// EventType identifies the kind of posted Event carried through a thread's
// event queue.
type EventType uint8

const (
	// EventNone is the zero value; never posted.
	EventNone EventType = iota
	// EventTimer is posted by the timer registry when a timer elapses.
	EventTimer
	// EventQuit requests the owning EventLoop to return from exec().
	EventQuit
	// EventMetaCall carries a queued slot invocation (DeliveryKind Queued or
	// BlockingQueued) to be run on the receiver Object's affinity thread.
	EventMetaCall
	// EventThreadChange is posted when an Object's thread affinity changes.
	EventThreadChange
	// EventChildAdded is posted after a child Object is attached to a parent.
	EventChildAdded
	// EventChildRemoved is posted after a child Object is detached from a parent.
	EventChildRemoved
	// EventDeferredDelete marks an Object for deletion once a drain of the
	// posting thread's queue runs at a loop depth no deeper than the one it
	// was posted at (§4.2 DeferredDelete rule).
	EventDeferredDelete
)

// String returns the human-readable name of the EventType.
func (e EventType) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventTimer:
		return "timer"
	case EventQuit:
		return "quit"
	case EventMetaCall:
		return "meta-call"
	case EventThreadChange:
		return "thread-change"
	case EventChildAdded:
		return "child-added"
	case EventChildRemoved:
		return "child-removed"
	case EventDeferredDelete:
		return "deferred-delete"
	default:
		return "unknown"
	}
}

// Event is a single unit posted onto a thread's event queue. Receiver is the
// Object the event targets; Data carries an EventType-specific payload (for
// EventMetaCall, a *metaCall; for EventTimer, the timer id).
type Event struct {
	Type     EventType
	Receiver *Object
	Data     any

	// posted is the monotonically increasing sequence the thread assigned
	// when the event was enqueued. It orders delivery and lets a recursive
	// drain resume from where an outer drain left off (§4.2 startOffset).
	posted uint64

	// level is the thread's LoopDepth at the moment the event was posted.
	// EventDeferredDelete uses it to defer the actual delete until a drain
	// runs at a loop depth at or below the level it was scheduled at (§4.2
	// DeferredDelete rule).
	level int32
}

// metaCall is the payload of an EventMetaCall: a pending slot invocation
// whose functor captured the connection and arguments at Emit time, plus a
// done channel used by BlockingQueued delivery to let the emitting goroutine
// wait for completion.
type metaCall struct {
	invoke func()
	done   chan struct{}
}
