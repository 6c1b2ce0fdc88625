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
)

// controlBlock is the shared state behind a StrongRef/WeakRef ladder for a
// single value: a strong count (keeps the value alive) and a weak count
// (keeps the control block itself alive so weak references can still
// observe that the value went away instead of dereferencing freed memory).
// This mirrors the wrap-with-defaults idiom in atomic.Value, generalized to
// a two-counter lifetime instead of a single swapped value.
type controlBlock[T any] struct {
	strong int32
	weak   int32
	value  T
	drop   func(T)
}

// StrongRef is an owning handle: while at least one StrongRef for a value
// is alive, the value is kept and Get returns it. Dropping the last
// StrongRef calls the drop callback given to NewStrongRef, if any.
type StrongRef[T any] struct {
	cb *controlBlock[T]
}

// WeakRef is a non-owning handle: Upgrade succeeds only while at least one
// StrongRef is still alive.
type WeakRef[T any] struct {
	cb *controlBlock[T]
}

// NewStrongRef creates the first StrongRef for value. drop, if non-nil, is
// called exactly once when the strong count reaches zero.
func NewStrongRef[T any](value T, drop func(T)) StrongRef[T] {
	return StrongRef[T]{cb: &controlBlock[T]{strong: 1, weak: 1, value: value, drop: drop}}
}

// Get returns the referenced value.
func (s StrongRef[T]) Get() T {
	return s.cb.value
}

// Clone returns a new StrongRef sharing the same control block, incrementing
// the strong count.
func (s StrongRef[T]) Clone() StrongRef[T] {
	atomic.AddInt32(&s.cb.strong, 1)
	return StrongRef[T]{cb: s.cb}
}

// Weak derives a WeakRef from this StrongRef.
func (s StrongRef[T]) Weak() WeakRef[T] {
	atomic.AddInt32(&s.cb.weak, 1)
	return WeakRef[T]{cb: s.cb}
}

// Release drops this StrongRef's ownership. Once the strong count reaches
// zero, the drop callback (if any) runs exactly once.
func (s StrongRef[T]) Release() {
	if atomic.AddInt32(&s.cb.strong, -1) == 0 && s.cb.drop != nil {
		s.cb.drop(s.cb.value)
	}
}

// Upgrade returns a new owning StrongRef and true if at least one StrongRef
// is still alive, or the zero StrongRef and false if the value was already
// dropped. The caller must Release the returned StrongRef once done with it.
func (w WeakRef[T]) Upgrade() (StrongRef[T], bool) {
	for {
		cur := atomic.LoadInt32(&w.cb.strong)
		if cur <= 0 {
			return StrongRef[T]{}, false
		}
		if atomic.CompareAndSwapInt32(&w.cb.strong, cur, cur+1) {
			return StrongRef[T]{cb: w.cb}, true
		}
	}
}
