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

package kernel_test

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/ishell/kernel"
)

var _ = Describe("Object", func() {
	It("assigns a unique, stable id to every Object", func() {
		a := kernel.NewObject("a", kernel.CurrentThread())
		b := kernel.NewObject("b", kernel.CurrentThread())

		Expect(a.ID()).NotTo(Equal(b.ID()))
		Expect(a.Name()).To(Equal("a"))
	})

	It("maintains a bidirectional parent/child tree", func() {
		root := kernel.NewObject("root", kernel.CurrentThread())
		child := kernel.NewChild("child", root, nil)

		Expect(child.Parent()).To(Equal(root))
		Expect(root.Children()).To(ContainElement(child))

		child.SetParent(nil)
		Expect(child.Parent()).To(BeNil())
		Expect(root.Children()).NotTo(ContainElement(child))
	})

	It("orphans connections on Destroy instead of leaving them live", func() {
		sender := kernel.NewObject("sender", kernel.CurrentThread())
		receiver := kernel.NewObject("receiver", kernel.CurrentThread())

		var calls int32
		_, err := kernel.Connect(sender, "sig", receiver, func(args []any) {
			atomic.AddInt32(&calls, 1)
		}, kernel.DeliveryDirect, nil)
		Expect(err).NotTo(HaveOccurred())

		receiver.Destroy()
		kernel.Emit(sender, "sig")

		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(0)))
	})

	It("destroys children depth-first when the parent is destroyed", func() {
		root := kernel.NewObject("root", kernel.CurrentThread())
		child := kernel.NewChild("child", root, nil)
		grandchild := kernel.NewChild("grandchild", child, nil)

		var destroyedCalls int32
		_, _ = kernel.Connect(grandchild, "destroy-probe", grandchild, func(args []any) {
			atomic.AddInt32(&destroyedCalls, 1)
		}, kernel.DeliveryDirect, nil)

		root.Destroy()

		// grandchild's own outbound connections are orphaned too; emitting
		// after destroy must not invoke the slot.
		kernel.Emit(grandchild, "destroy-probe")
		Expect(atomic.LoadInt32(&destroyedCalls)).To(Equal(int32(0)))
	})

	It("does not deadlock when two goroutines reparent objects across each other concurrently", func() {
		a := kernel.NewObject("a", kernel.CurrentThread())
		b := kernel.NewObject("b", kernel.CurrentThread())
		x := kernel.NewObject("x", kernel.CurrentThread())
		y := kernel.NewObject("y", kernel.CurrentThread())

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				x.SetParent(a)
				y.SetParent(b)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				y.SetParent(a)
				x.SetParent(b)
			}
		}()

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			Fail("SetParent deadlocked under concurrent cross-object reparenting")
		}
	})
})
