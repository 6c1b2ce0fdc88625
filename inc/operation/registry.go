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

package operation

import (
	"sync"
	"time"
)

// Registry tracks every Pending Operation of one Context, keyed by sequence.
type Registry struct {
	mu  sync.Mutex
	set map[uint32]*Operation
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{set: make(map[uint32]*Operation)}
}

// Track creates and registers a new Operation for sequence.
func (r *Registry) Track(sequence uint32, timeout time.Duration) *Operation {
	o := New(sequence, timeout)
	r.mu.Lock()
	r.set[sequence] = o
	r.mu.Unlock()
	return o
}

// Resolve looks up the Operation for sequence, if any, without removing it;
// callers call Untrack once the Operation reaches a terminal state.
func (r *Registry) Resolve(sequence uint32) (*Operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.set[sequence]
	return o, ok
}

// Untrack removes sequence from the registry.
func (r *Registry) Untrack(sequence uint32) {
	r.mu.Lock()
	delete(r.set, sequence)
	r.mu.Unlock()
}

// CancelAll cancels every still-tracked Operation and empties the registry,
// used when the owning Context disconnects.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	pending := make([]*Operation, 0, len(r.set))
	for seq, o := range r.set {
		pending = append(pending, o)
		delete(r.set, seq)
	}
	r.mu.Unlock()

	for _, o := range pending {
		o.Cancel()
	}
}

// Len reports how many Operations are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.set)
}
