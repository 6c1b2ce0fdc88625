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

// Package tcp implements the INC Device contract over net.TCPConn, with
// keepalive enabled on every client-role connection (spec section 4.5).
package tcp

import (
	"net"
	"sync"
	"time"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc/device"
)

const keepAlivePeriod = 30 * time.Second

// Device is a client-role or accepted TCP connection.
type Device struct {
	device.Base

	mu   sync.Mutex
	conn *net.TCPConn
	rbuf []byte
}

// Listener is a server-role TCP device: it owns the listening socket and
// emits newConnection with a *Device for each accepted client.
type Listener struct {
	device.Base

	mu sync.Mutex
	ln *net.TCPListener
}

// Dial opens a client-role connection to addr ("host:port").
func Dial(addr string) (*Device, liberr.Error) {
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "resolve tcp address", err)
	}
	conn, err := net.DialTCP("tcp", nil, raddr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "dial tcp", err)
	}
	_ = conn.SetKeepAlive(true)
	_ = conn.SetKeepAlivePeriod(keepAlivePeriod)

	d := &Device{Base: device.NewBase(device.Client), conn: conn}
	d.Object().SetObjectName("inc.device.tcp")
	d.SetOpen(true)
	return d, nil
}

func fromAccepted(conn *net.TCPConn) *Device {
	_ = conn.SetKeepAlive(true)
	_ = conn.SetKeepAlivePeriod(keepAlivePeriod)
	d := &Device{Base: device.NewBase(device.Server), conn: conn}
	d.Object().SetObjectName("inc.device.tcp")
	d.SetOpen(true)
	return d
}

// Listen opens a server-role listening socket on addr.
func Listen(addr string) (*Listener, liberr.Error) {
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "resolve tcp listen address", err)
	}
	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "listen tcp", err)
	}
	l := &Listener{Base: device.NewBase(device.Server), ln: ln}
	l.Object().SetObjectName("inc.device.tcp.listener")
	l.SetOpen(true)
	return l, nil
}

func (d *Device) Open() liberr.Error { return nil }

func (d *Device) Close() liberr.Error {
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

func (d *Device) Read(maxlen int) ([]byte, liberr.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.rbuf) == 0 {
		return nil, nil
	}
	n := maxlen
	if n <= 0 || n > len(d.rbuf) {
		n = len(d.rbuf)
	}
	out := make([]byte, n)
	copy(out, d.rbuf[:n])
	d.rbuf = d.rbuf[n:]
	return out, nil
}

func (d *Device) BytesAvailable() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rbuf)
}

func (d *Device) Write(b []byte) (int, liberr.Error) {
	d.mu.Lock()
	c := d.conn
	d.mu.Unlock()
	if c == nil {
		return 0, liberr.New(uint16(liberr.WriteFailed), "device is closed")
	}
	n, err := c.Write(b)
	if err != nil {
		return n, liberr.New(uint16(liberr.WriteFailed), "tcp write", err)
	}
	d.EmitBytesWritten(n)
	return n, nil
}

func (d *Device) PeerAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ""
	}
	return d.conn.RemoteAddr().String()
}

func (d *Device) IsLocal() bool {
	d.mu.Lock()
	c := d.conn
	d.mu.Unlock()
	if c == nil {
		return false
	}
	remote, _, _ := net.SplitHostPort(c.RemoteAddr().String())
	ip := net.ParseIP(remote)
	return ip != nil && ip.IsLoopback()
}

// StartEventMonitoring spawns the read loop goroutine. Must be called only
// after the caller has wired its signal handlers (spec section 4.5).
func (d *Device) StartEventMonitoring() {
	d.Base.ConfigEventAbility(true, true)
	go d.readLoop()
}

func (d *Device) readLoop() {
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
			d.mu.Lock()
			d.rbuf = append(d.rbuf, buf[:n]...)
			d.mu.Unlock()
			d.EmitReadyRead()
		}
		if err != nil {
			d.EmitDisconnected()
			return
		}
	}
}

func (l *Listener) Open() liberr.Error { return nil }

func (l *Listener) Close() liberr.Error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil
	}
	_ = ln.Close()
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

// StartEventMonitoring spawns the accept loop goroutine.
func (l *Listener) StartEventMonitoring() {
	l.Base.ConfigEventAbility(true, true)
	go l.acceptLoop()
}

func (l *Listener) acceptLoop() {
	for {
		l.mu.Lock()
		ln := l.ln
		l.mu.Unlock()
		if ln == nil {
			return
		}
		conn, err := ln.AcceptTCP()
		if err != nil {
			l.EmitDisconnected()
			return
		}
		child := fromAccepted(conn)
		l.EmitNewConnection(child)
	}
}
