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
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// timerTierSize is the number of slots allocated per tier. Six tiers
	// give a little over 12.5 million live timer slots before growth stops,
	// the same order of magnitude as the spec's MaxIndex default; the exact
	// split between tier count and tier size is left to the implementation
	// (spec §4.4 only fixes "up to 6 tiers").
	timerTierSize = 1 << 21
	timerMaxTiers = 6
	// MaxIndex is the largest number of simultaneously live timer slots the
	// registry will grow to.
	MaxIndex = timerTierSize * timerMaxTiers
)

// TimerID is a stamped reference into the Timer registry's freelist: index
// selects the slot, serial must match the slot's current serial for the id
// to still be valid. Reusing a slot after release bumps its serial, so a
// stale TimerID from a since-released-and-reused slot is detected instead
// of silently operating on the wrong timer (the ABA problem a bare index
// would be vulnerable to).
type TimerID struct {
	Index  uint32
	Serial uint32
}

// Coalesce describes a timer's precision tier, trading wakeup accuracy for
// the ability to batch nearby deadlines together.
type Coalesce uint8

const (
	// CoalescePrecise fires within a few milliseconds of its deadline.
	CoalescePrecise Coalesce = iota
	// CoalesceCoarse may fire up to ~50ms late if that lets it merge with a
	// nearby deadline.
	CoalesceCoarse
	// CoalesceVeryCoarse may fire up to ~1s late.
	CoalesceVeryCoarse
)

func (c Coalesce) window() time.Duration {
	switch c {
	case CoalesceCoarse:
		return 50 * time.Millisecond
	case CoalesceVeryCoarse:
		return time.Second
	default:
		return 0
	}
}

type timerSlot struct {
	serial   uint32
	armed    int32
	deadline time.Time
	interval time.Duration
	repeat   bool
	coalesce Coalesce
	target   *Object
	thread   *ThreadData
	fn       func()
}

// TimerRegistry is a per-process Timer event source: it owns a lock-free
// freelist of timer slots (Treiber stack over tiered arrays, CAS-based,
// ABA-safe via the per-slot serial) and, as an EventSource, reports ready
// whenever a slot's deadline has elapsed.
type TimerRegistry struct {
	baseEventSource

	m     sync.Mutex
	tiers [][]timerSlot
	next  [][]uint32 // per-tier freelist "next" links, 0 = end-of-chain
	head  uint64      // packed (version uint32, globalIndex+1 uint32), 0 = empty

	dueMu sync.Mutex
	due   []uint32 // slot global-indices found ready by the last Check()
}

var globalTimers = NewTimerRegistry()

// NewTimerRegistry creates an empty Timer registry.
func NewTimerRegistry() *TimerRegistry {
	r := &TimerRegistry{baseEventSource: newBaseEventSource("timer", 10)}
	r.growTier()
	return r
}

// GlobalTimers returns the process-wide default Timer registry that
// NewEventLoop registers with its thread's dispatcher.
func GlobalTimers() *TimerRegistry {
	return globalTimers
}

func packHead(ver, idx uint32) uint64 {
	return uint64(ver)<<32 | uint64(idx)
}
func unpackHead(h uint64) (ver, idx uint32) {
	return uint32(h >> 32), uint32(h)
}

func (r *TimerRegistry) growTier() bool {
	r.m.Lock()
	defer r.m.Unlock()

	if len(r.tiers) >= timerMaxTiers {
		return false
	}

	tier := len(r.tiers)
	r.tiers = append(r.tiers, make([]timerSlot, timerTierSize))
	nextLinks := make([]uint32, timerTierSize)
	r.next = append(r.next, nextLinks)

	base := uint32(tier) * timerTierSize
	for i := uint32(0); i < timerTierSize; i++ {
		nextLinks[i] = base + i + 2 // global index is 1-based; +1 for 1-based, +1 for "next" slot
	}
	nextLinks[timerTierSize-1] = 0

	for {
		old := atomic.LoadUint64(&r.head)
		ver, oldIdx := unpackHead(old)
		nextLinks[timerTierSize-1] = oldIdx
		newHead := packHead(ver+1, base+1)
		if atomic.CompareAndSwapUint64(&r.head, old, newHead) {
			break
		}
	}
	return true
}

func (r *TimerRegistry) slotAt(globalIdx uint32) *timerSlot {
	i := globalIdx - 1
	return &r.tiers[i/timerTierSize][i%timerTierSize]
}

func (r *TimerRegistry) nextLinkAt(globalIdx uint32) *uint32 {
	i := globalIdx - 1
	return &r.next[i/timerTierSize][i%timerTierSize]
}

func (r *TimerRegistry) popFree() (uint32, bool) {
	for {
		old := atomic.LoadUint64(&r.head)
		ver, idx := unpackHead(old)
		if idx == 0 {
			return 0, false
		}
		nextIdx := *r.nextLinkAt(idx)
		newHead := packHead(ver+1, nextIdx)
		if atomic.CompareAndSwapUint64(&r.head, old, newHead) {
			return idx, true
		}
	}
}

func (r *TimerRegistry) pushFree(globalIdx uint32) {
	for {
		old := atomic.LoadUint64(&r.head)
		ver, idx := unpackHead(old)
		*r.nextLinkAt(globalIdx) = idx
		newHead := packHead(ver+1, globalIdx)
		if atomic.CompareAndSwapUint64(&r.head, old, newHead) {
			return
		}
	}
}

// Start arms a new timer that fires after d, repeating every d if repeat is
// true, coalesced per c. When it fires, Dispatch posts an EventTimer to
// thread and then calls fn directly in the dispatching goroutine.
func (r *TimerRegistry) Start(thread *ThreadData, d time.Duration, repeat bool, c Coalesce, fn func()) (TimerID, error) {
	idx, ok := r.popFree()
	if !ok {
		if !r.growTier() {
			return TimerID{}, fmt.Errorf("kernel: timer registry exhausted (MaxIndex=%d)", MaxIndex)
		}
		idx, ok = r.popFree()
		if !ok {
			return TimerID{}, fmt.Errorf("kernel: timer registry exhausted (MaxIndex=%d)", MaxIndex)
		}
	}

	s := r.slotAt(idx)
	s.deadline = time.Now().Add(d)
	s.interval = d
	s.repeat = repeat
	s.coalesce = c
	s.thread = thread
	s.fn = fn
	atomic.StoreInt32(&s.armed, 1)

	return TimerID{Index: idx, Serial: atomic.LoadUint32(&s.serial)}, nil
}

// Stop disarms a timer and releases its slot back to the freelist, bumping
// its serial so any TimerID still referencing it becomes stale. Stopping an
// already-stale or already-stopped id is a no-op.
func (r *TimerRegistry) Stop(id TimerID) {
	if id.Index == 0 {
		return
	}
	s := r.slotAt(id.Index)
	if atomic.LoadUint32(&s.serial) != id.Serial {
		return
	}
	if !atomic.CompareAndSwapInt32(&s.armed, 1, 0) {
		return
	}
	atomic.AddUint32(&s.serial, 1)
	s.fn = nil
	s.thread = nil
	r.pushFree(id.Index)
}

// NextDeadline returns the earliest deadline among armed timers, used by
// the dispatcher to bound how long it may block in ProcessEvents.
func (r *TimerRegistry) NextDeadline() (time.Time, bool) {
	r.m.Lock()
	tiers := len(r.tiers)
	r.m.Unlock()

	var (
		found bool
		best  time.Time
	)
	for t := 0; t < tiers; t++ {
		r.m.Lock()
		slots := r.tiers[t]
		r.m.Unlock()
		for i := range slots {
			s := &slots[i]
			if atomic.LoadInt32(&s.armed) == 0 {
				continue
			}
			d := s.deadline.Add(-s.coalesce.window())
			if !found || d.Before(best) {
				best = d
				found = true
			}
		}
	}
	return best, found
}

// Prepare satisfies EventSource: a Timer source never claims immediate
// readiness, it only shortens the dispatcher's wait via NextDeadline.
func (r *TimerRegistry) Prepare() bool { return false }

// Check satisfies EventSource: scans for elapsed deadlines and remembers
// them for Dispatch.
func (r *TimerRegistry) Check() bool {
	now := time.Now()
	var due []uint32

	r.m.Lock()
	tiers := len(r.tiers)
	r.m.Unlock()

	for t := 0; t < tiers; t++ {
		r.m.Lock()
		slots := r.tiers[t]
		r.m.Unlock()
		base := uint32(t) * timerTierSize
		for i := range slots {
			s := &slots[i]
			if atomic.LoadInt32(&s.armed) == 0 {
				continue
			}
			if !now.Before(s.deadline) {
				due = append(due, base+uint32(i)+1)
			}
		}
	}

	r.dueMu.Lock()
	r.due = due
	r.dueMu.Unlock()
	return len(due) > 0
}

// Dispatch handles every slot found due by the last Check: it rearms
// repeating timers, releases one-shot ones, posts EventTimer to the slot's
// thread and calls the slot's fn in the calling goroutine.
func (r *TimerRegistry) Dispatch() bool {
	r.dueMu.Lock()
	due := r.due
	r.due = nil
	r.dueMu.Unlock()

	for _, idx := range due {
		s := r.slotAt(idx)
		if atomic.LoadInt32(&s.armed) == 0 {
			continue
		}

		fn, thread := s.fn, s.thread
		if s.repeat {
			s.deadline = s.deadline.Add(s.interval)
		} else {
			r.Stop(TimerID{Index: idx, Serial: atomic.LoadUint32(&s.serial)})
		}

		if fn != nil && thread != nil {
			thread.post(Event{Type: EventTimer, Data: idx})
			fn()
		}
	}
	return len(due) > 0
}
