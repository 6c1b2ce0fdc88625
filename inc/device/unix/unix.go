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

// Package unix implements the INC Device contract over net.UnixConn
// (SOCK_STREAM), plus SCM_RIGHTS ancillary file-descriptor passing used by
// inc/shm for zero-copy memfd-backed transfer (spec section 4.5).
package unix

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc/device"
)

// Device is a client-role or accepted Unix domain stream connection.
type Device struct {
	device.Base

	mu   sync.Mutex
	conn *net.UnixConn
	rbuf []byte

	pendingFD chan int
}

// Listener is a server-role Unix domain socket.
type Listener struct {
	device.Base

	mu   sync.Mutex
	ln   *net.UnixListener
	path string
}

// Dial opens a client-role connection to the Unix socket at path.
func Dial(path string) (*Device, liberr.Error) {
	raddr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "resolve unix address", err)
	}
	conn, err := net.DialUnix("unix", nil, raddr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "dial unix", err)
	}
	d := fromConn(conn, device.Client)
	return d, nil
}

func fromConn(conn *net.UnixConn, role device.Role) *Device {
	d := &Device{Base: device.NewBase(role), conn: conn, pendingFD: make(chan int, 8)}
	d.Object().SetObjectName("inc.device.unix")
	d.SetOpen(true)
	return d
}

// Listen opens a server-role listening socket at path, removing any stale
// socket file left behind by a previous run.
func Listen(path string) (*Listener, liberr.Error) {
	_ = unix.Unlink(path)
	laddr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "resolve unix listen address", err)
	}
	ln, err := net.ListenUnix("unix", laddr)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConnectionFailed), "listen unix", err)
	}
	l := &Listener{Base: device.NewBase(device.Server), ln: ln, path: path}
	l.Object().SetObjectName("inc.device.unix.listener")
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
		return n, liberr.New(uint16(liberr.WriteFailed), "unix write", err)
	}
	d.EmitBytesWritten(n)
	return n, nil
}

// WriteWithFD sends b as the regular payload plus fd as an SCM_RIGHTS
// ancillary descriptor, used by inc/shm to hand a memfd to the peer without
// copying its contents (spec section 4.5, 4.8).
func (d *Device) WriteWithFD(b []byte, fd int) (int, liberr.Error) {
	d.mu.Lock()
	c := d.conn
	d.mu.Unlock()
	if c == nil {
		return 0, liberr.New(uint16(liberr.WriteFailed), "device is closed")
	}
	oob := unix.UnixRights(fd)
	n, _, err := c.WriteMsgUnix(b, oob, nil)
	if err != nil {
		return n, liberr.New(uint16(liberr.WriteFailed), "unix sendmsg with fd", err)
	}
	d.EmitBytesWritten(n)
	return n, nil
}

// ReceiveFD returns the next ancillary file descriptor handed over by the
// peer via WriteWithFD, blocking until one arrives or the device closes.
func (d *Device) ReceiveFD() (int, bool) {
	fd, ok := <-d.pendingFD
	return fd, ok
}

func (d *Device) PeerAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ""
	}
	return d.conn.RemoteAddr().String()
}

// IsLocal is always true: a Unix domain socket never crosses a host
// boundary, which is exactly why it is SHM-eligible (spec section 4.5).
func (d *Device) IsLocal() bool { return true }

// StartEventMonitoring spawns the read loop goroutine, which also drains
// SCM_RIGHTS ancillary data into ReceiveFD. Must be called only after the
// caller has wired its signal handlers.
func (d *Device) StartEventMonitoring() {
	d.Base.ConfigEventAbility(true, true)
	go d.readLoop()
}

func (d *Device) readLoop() {
	buf := make([]byte, 64*1024)
	oob := make([]byte, 64)
	for {
		d.mu.Lock()
		c := d.conn
		d.mu.Unlock()
		if c == nil {
			return
		}
		n, oobn, _, _, err := c.ReadMsgUnix(buf, oob)
		if n > 0 {
			d.mu.Lock()
			d.rbuf = append(d.rbuf, buf[:n]...)
			d.mu.Unlock()
			d.EmitReadyRead()
		}
		if oobn > 0 {
			if cmsgs, perr := unix.ParseSocketControlMessage(oob[:oobn]); perr == nil {
				for _, cm := range cmsgs {
					if fds, ferr := unix.ParseUnixRights(&cm); ferr == nil {
						for _, fd := range fds {
							d.pendingFD <- fd
						}
					}
				}
			}
		}
		if err != nil {
			close(d.pendingFD)
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
func (l *Listener) IsLocal() bool       { return true }

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
		conn, err := ln.AcceptUnix()
		if err != nil {
			l.EmitDisconnected()
			return
		}
		child := fromConn(conn, device.Server)
		l.EmitNewConnection(child)
	}
}
