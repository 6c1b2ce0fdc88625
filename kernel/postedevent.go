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

// drainPostedEvents removes every event currently queued on t and delivers
// it, in insertion order. currentLevel is the LoopDepth of the Exec/
// ProcessOneBatch call driving this drain; it is what lets a
// EventDeferredDelete posted from a nested loop wait until that nested loop
// has actually returned before the Object is destroyed: the event fires the
// first time it is drained at a loop depth no deeper than the one it was
// posted at (posted at depth 1, fires on that same loop's very next
// iteration; posted from inside a level-2 modal loop, waits until the
// drain unwinds back to depth 1 or shallower).
//
// Events a slot posts while this drain is running land in t.queue (post
// re-acquires t.m independently) and are intentionally left for the next
// drain rather than appended to the slice already captured here - this is
// the "startOffset" behavior: a reentrant drain never redelivers events the
// outer drain already pulled off the queue.
func drainPostedEvents(t *ThreadData, currentLevel int32) {
	events := t.drain()
	if len(events) == 0 {
		return
	}

	var deferredLater []Event

	for _, ev := range events {
		switch ev.Type {
		case EventDeferredDelete:
			if currentLevel <= ev.level {
				if ev.Receiver != nil {
					ev.Receiver.Destroy()
				}
			} else {
				deferredLater = append(deferredLater, ev)
			}

		case EventMetaCall:
			if mc, ok := ev.Data.(*metaCall); ok && mc.invoke != nil {
				mc.invoke()
				if mc.done != nil {
					close(mc.done)
				}
			}

		case EventTimer, EventThreadChange, EventChildAdded, EventChildRemoved:
			// These are informational; Object/Timer consumers observe them
			// by embedding their own slot connected to the relevant signal
			// rather than by a dedicated handler here. No action needed by
			// the loop itself.

		case EventQuit:
			t.requestQuit()
		}
	}

	if len(deferredLater) > 0 {
		t.m.Lock()
		t.queue = append(deferredLater, t.queue...)
		t.m.Unlock()
	}
}
