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

package handshake_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/ishell/inc"
	"github.com/nabbar/ishell/inc/handshake"
)

func newClientData(version uint32, caps inc.Capability) handshake.Data {
	return handshake.Data{ProtocolVersion: version, NodeName: "client", NodeID: "c1", Capabilities: handshake.NewCapabilities(caps)}
}

func newServerData(version uint32, caps inc.Capability) handshake.Data {
	return handshake.Data{ProtocolVersion: version, NodeName: "server", NodeID: "s1", Capabilities: handshake.NewCapabilities(caps)}
}

var _ = Describe("Handshake negotiation", func() {
	It("completes under a strict version policy when versions match", func() {
		srv := handshake.NewServer(newServerData(3, inc.CapStream), handshake.Strict, handshake.VersionRange{Current: 3}, handshake.EncryptionOptional)
		cli := handshake.NewClient(newClientData(3, inc.CapStream), handshake.VersionRange{Min: 1, Max: 3}, false)

		ack, err := srv.ProcessHandshake(cli.Start())
		Expect(err).NotTo(HaveOccurred())
		Expect(srv.State()).To(Equal(handshake.Completed))

		Expect(cli.ProcessHandshake(ack)).NotTo(HaveOccurred())
		Expect(cli.State()).To(Equal(handshake.Completed))
	})

	It("fails under a strict version policy on mismatch", func() {
		srv := handshake.NewServer(newServerData(3, 0), handshake.Strict, handshake.VersionRange{Current: 3}, handshake.EncryptionOptional)
		cli := handshake.NewClient(newClientData(2, 0), handshake.VersionRange{Min: 1, Max: 3}, false)

		_, err := srv.ProcessHandshake(cli.Start())
		Expect(err).To(HaveOccurred())
		Expect(srv.State()).To(Equal(handshake.Failed))
	})

	It("accepts any version under a permissive policy", func() {
		srv := handshake.NewServer(newServerData(3, 0), handshake.Permissive, handshake.VersionRange{Current: 3}, handshake.EncryptionOptional)
		cli := handshake.NewClient(newClientData(99, 0), handshake.VersionRange{Min: 1, Max: 99}, false)

		_, err := srv.ProcessHandshake(cli.Start())
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a client missing encryption under a required policy", func() {
		srv := handshake.NewServer(newServerData(1, inc.CapEncryption), handshake.Permissive, handshake.VersionRange{Current: 1}, handshake.EncryptionRequired)
		cli := handshake.NewClient(newClientData(1, 0), handshake.VersionRange{Min: 1, Max: 1}, false)

		_, err := srv.ProcessHandshake(cli.Start())
		Expect(err).To(HaveOccurred())
	})

	It("negotiates the intersection of capabilities", func() {
		srv := handshake.NewServer(newServerData(1, inc.CapStream|inc.CapCompression), handshake.Permissive, handshake.VersionRange{Current: 1}, handshake.EncryptionOptional)
		cli := handshake.NewClient(newClientData(1, inc.CapStream|inc.CapEncryption), handshake.VersionRange{Min: 1, Max: 1}, false)

		ack, err := srv.ProcessHandshake(cli.Start())
		Expect(err).NotTo(HaveOccurred())
		Expect(handshake.ToMask(srv.Negotiated())).To(Equal(inc.CapStream))

		Expect(cli.ProcessHandshake(ack)).NotTo(HaveOccurred())
		Expect(handshake.ToMask(cli.Negotiated())).To(Equal(inc.CapStream))
	})
})
