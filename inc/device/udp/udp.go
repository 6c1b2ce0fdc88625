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

// Package udp implements the INC Device contract over net.UDPConn. Since a
// datagram carries no connection, the server role multiplexes one socket
// across per-peer virtual client devices (spec section 4.5); the framing
// layer above requires exactly one complete message per datagram in both
// directions (spec section 5, ordering guarantees).
package udp

import (
	"encoding/binary"
	"net"
	"sync"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
	"github.com/nabbar/ishell/inc/device"
)

// ClientDevice is a UDP endpoint with a fixed peer: either a dialed
// client-role socket, or a server-role virtual client multiplexed by a
// Listener over its shared socket (conn is nil in the latter case; writes
// go out through owner/peerAddr instead).
type ClientDevice struct {
	device.Base

	mu   sync.Mutex
	conn *net.UDPConn
	rbuf [][]byte

	wbuf []byte

	owner    *Listener
	peerAddr *net.UDPAddr
}

// Dial opens a client-role UDP "connection" (a fixed-peer socket; UDP has no
// handshake at the transport level).
func Dial(addr string) (*ClientDevice, liberr.Error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "resolve udp address", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "dial udp", err)
	}
	d := &ClientDevice{Base: device.NewBase(device.Client), conn: conn}
	d.Object().SetObjectName("inc.device.udp")
	d.SetOpen(true)
	return d, nil
}

func (d *ClientDevice) Open() liberr.Error { return nil }

func (d *ClientDevice) Close() liberr.Error {
	d.mu.Lock()
	c := d.conn
	d.mu.Unlock()
	if c == nil {
		return nil
	}
	_ = c.Close()
	d.SetOpen(false)
	d.EmitDisconnected()
	return nil
}

func (d *ClientDevice) Read(maxlen int) ([]byte, liberr.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.rbuf) == 0 {
		return nil, nil
	}
	out := d.rbuf[0]
	if maxlen > 0 && maxlen < len(out) {
		out = out[:maxlen]
	}
	d.rbuf = d.rbuf[1:]
	return out, nil
}

func (d *ClientDevice) BytesAvailable() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.rbuf {
		n += len(b)
	}
	return n
}

// Write accumulates bytes and flushes exactly one complete framed message
// per underlying datagram, since UDP preserves datagram boundaries but
// would otherwise fragment a single framed message across several writes
// (spec section 4.5).
func (d *ClientDevice) Write(b []byte) (int, liberr.Error) {
	d.mu.Lock()
	d.wbuf = append(d.wbuf, b...)
	flushed := d.flushComplete()
	conn, owner, addr := d.conn, d.owner, d.peerAddr
	d.mu.Unlock()

	for _, frame := range flushed {
		var n int
		var err error
		if conn != nil {
			n, err = conn.Write(frame)
		} else if owner != nil {
			n, err = owner.conn.WriteToUDP(frame, addr)
		} else {
			return 0, liberr.New(uint16(liberr.Disconnected), "udp virtual client has no transport bound")
		}
		if err != nil {
			return n, liberr.New(uint16(liberr.WriteFailed), "udp write", err)
		}
		d.EmitBytesWritten(n)
	}
	return len(b), nil
}

// flushComplete pops every fully-buffered framed message (header magic +
// declared length) out of wbuf. Caller holds d.mu.
func (d *ClientDevice) flushComplete() [][]byte {
	var out [][]byte
	for {
		if len(d.wbuf) < inc.HeaderSize {
			return out
		}
		if binary.LittleEndian.Uint32(d.wbuf[0:4]) != inc.HeaderMagic {
			// Not a recognisable frame boundary; drop the buffer rather
			// than spin forever on a corrupt prefix.
			d.wbuf = nil
			return out
		}
		payloadLen := binary.LittleEndian.Uint32(d.wbuf[20:24])
		total := inc.HeaderSize + int(payloadLen)
		if len(d.wbuf) < total {
			return out
		}
		out = append(out, append([]byte(nil), d.wbuf[:total]...))
		d.wbuf = d.wbuf[total:]
	}
}

func (d *ClientDevice) PeerAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return d.conn.RemoteAddr().String()
	}
	if d.peerAddr != nil {
		return d.peerAddr.String()
	}
	return ""
}

func (d *ClientDevice) IsLocal() bool {
	remote := d.PeerAddress()
	if remote == "" {
		return false
	}
	host, _, _ := net.SplitHostPort(remote)
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// StartEventMonitoring spawns the read loop goroutine for a dialed client.
// A server-role virtual client has no socket of its own - its datagrams
// arrive through the Listener's shared socket and are fed in via deliver -
// so this only enables signal delivery for it.
func (d *ClientDevice) StartEventMonitoring() {
	d.Base.ConfigEventAbility(true, true)
	d.mu.Lock()
	hasOwnConn := d.conn != nil
	d.mu.Unlock()
	if hasOwnConn {
		go d.readLoop()
	}
}

func (d *ClientDevice) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		d.mu.Lock()
		c := d.conn
		d.mu.Unlock()
		if c == nil {
			return
		}
		n, err := c.Read(buf)
		if n > 0 {
			frame := append([]byte(nil), buf[:n]...)
			d.mu.Lock()
			d.rbuf = append(d.rbuf, frame)
			d.mu.Unlock()
			d.EmitReadyRead()
		}
		if err != nil {
			d.EmitDisconnected()
			return
		}
	}
}

// deliver feeds a datagram received by the owning Listener's socket straight
// to this virtual client's read queue (used server-side, where there is one
// shared net.UDPConn rather than a per-peer one).
func (d *ClientDevice) deliver(b []byte) {
	d.mu.Lock()
	d.rbuf = append(d.rbuf, append([]byte(nil), b...))
	d.mu.Unlock()
	d.EmitReadyRead()
}

// Listener is the server-role UDP device: one shared socket multiplexed
// across per-peer virtual client devices (spec section 4.5).
type Listener struct {
	device.Base

	mu      sync.Mutex
	conn    *net.UDPConn
	peers   map[string]*peerEntry
}

type peerEntry struct {
	addr    *net.UDPAddr
	device  *ClientDevice
	pending bool
}

// Listen opens the shared server-role UDP socket on addr.
func Listen(addr string) (*Listener, liberr.Error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "resolve udp listen address", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "listen udp", err)
	}
	l := &Listener{
		Base:  device.NewBase(device.Server),
		conn:  conn,
		peers: make(map[string]*peerEntry),
	}
	l.Object().SetObjectName("inc.device.udp.listener")
	l.SetOpen(true)
	return l, nil
}

func (l *Listener) Open() liberr.Error { return nil }

func (l *Listener) Close() liberr.Error {
	l.mu.Lock()
	c := l.conn
	l.mu.Unlock()
	if c == nil {
		return nil
	}
	_ = c.Close()
	l.SetOpen(false)
	return nil
}

func (l *Listener) Read(int) ([]byte, liberr.Error) { return nil, nil }
func (l *Listener) Write([]byte) (int, liberr.Error) {
	return 0, liberr.New(uint16(liberr.InvalidState), "listener devices do not support write")
}
func (l *Listener) BytesAvailable() int { return 0 }
func (l *Listener) PeerAddress() string { return "" }
func (l *Listener) IsLocal() bool       { return false }

func (l *Listener) StartEventMonitoring() {
	l.Base.ConfigEventAbility(true, true)
	go l.readLoop()
}

// readLoop demultiplexes incoming datagrams by source address. Resolution
// of spec section 9 open question (a): at most one pending (unconfirmed)
// virtual client per peer address at a time. A second datagram from a
// different unconfirmed address is accepted as its own pending client
// (distinct map key); a second datagram from the *same* still-pending
// address is folded into the existing pending device instead of raising a
// second newConnection.
func (l *Listener) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		l.mu.Lock()
		c := l.conn
		l.mu.Unlock()
		if c == nil {
			return
		}
		n, addr, err := c.ReadFromUDP(buf)
		if err != nil {
			l.EmitDisconnected()
			return
		}
		if n == 0 {
			continue
		}
		key := addr.String()

		l.mu.Lock()
		entry, known := l.peers[key]
		if !known {
			cd := &ClientDevice{Base: device.NewBase(device.Server), owner: l, peerAddr: addr}
			cd.Object().SetObjectName("inc.device.udp.virtual")
			cd.SetOpen(true)
			entry = &peerEntry{addr: addr, device: cd, pending: true}
			l.peers[key] = entry
			l.mu.Unlock()

			l.EmitNewConnection(cd)
			entry.pending = false
			cd.deliver(buf[:n])
			continue
		}
		l.mu.Unlock()

		entry.device.deliver(buf[:n])
	}
}

