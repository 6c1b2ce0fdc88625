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

// Package engine parses INC connection URLs (spec section 6) and builds the
// matching transport device.
package engine

import (
	"net/url"
	"strings"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc/device"
	"github.com/nabbar/ishell/inc/device/tcp"
	"github.com/nabbar/ishell/inc/device/udp"
	"github.com/nabbar/ishell/inc/device/unix"
)

// Scheme is the closed set of URL schemes INC recognises.
type Scheme string

const (
	SchemeTCP  Scheme = "tcp"
	SchemeUDP  Scheme = "udp"
	SchemeUnix Scheme = "unix"
	SchemePipe Scheme = "pipe"
)

// defaultHost is used for tcp/udp URLs with no host component.
const defaultHost = "127.0.0.1"

// Target is a parsed connection URL: scheme plus the address form the
// matching transport constructor expects (host:port for tcp/udp, a
// filesystem path for unix/pipe).
type Target struct {
	Scheme  Scheme
	Address string
}

// Parse validates raw against the spec section 6 URL grammar:
// tcp://host[:port], udp://host[:port], unix:///absolute/path,
// pipe:///absolute/path. Missing host defaults to 127.0.0.1 for tcp/udp;
// port is mandatory for tcp/udp. Path is mandatory for unix/pipe.
func Parse(raw string) (Target, liberr.Error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, liberr.New(uint16(liberr.InvalidArgs), "malformed connection url", err)
	}

	switch Scheme(strings.ToLower(u.Scheme)) {
	case SchemeTCP, SchemeUDP:
		host := u.Hostname()
		if host == "" {
			host = defaultHost
		}
		port := u.Port()
		if port == "" {
			return Target{}, liberr.New(uint16(liberr.InvalidArgs), "tcp/udp url requires a port")
		}
		return Target{Scheme: Scheme(strings.ToLower(u.Scheme)), Address: host + ":" + port}, nil

	case SchemeUnix, SchemePipe:
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if !strings.HasPrefix(path, "/") {
			return Target{}, liberr.New(uint16(liberr.InvalidArgs), "unix/pipe url requires an absolute path")
		}
		return Target{Scheme: Scheme(strings.ToLower(u.Scheme)), Address: path}, nil

	default:
		return Target{}, liberr.New(uint16(liberr.InvalidArgs), "unrecognised url scheme: "+u.Scheme)
	}
}

// DialClient parses raw and opens a client-role device to it.
func DialClient(raw string) (device.Device, liberr.Error) {
	t, e := Parse(raw)
	if e != nil {
		return nil, e
	}
	switch t.Scheme {
	case SchemeTCP:
		return tcp.Dial(t.Address)
	case SchemeUDP:
		return udp.Dial(t.Address)
	case SchemeUnix, SchemePipe:
		return unix.Dial(t.Address)
	default:
		return nil, liberr.New(uint16(liberr.InvalidArgs), "unsupported scheme for client dial")
	}
}

// Listener is the common contract the three server-role listening devices
// share: StartEventMonitoring delivers newConnection, Close stops accepting.
type Listener interface {
	device.Device
}

// Listen parses raw and opens a server-role listening device on it.
func Listen(raw string) (Listener, liberr.Error) {
	t, e := Parse(raw)
	if e != nil {
		return nil, e
	}
	switch t.Scheme {
	case SchemeTCP:
		return tcp.Listen(t.Address)
	case SchemeUDP:
		return udp.Listen(t.Address)
	case SchemeUnix, SchemePipe:
		return unix.Listen(t.Address)
	default:
		return nil, liberr.New(uint16(liberr.InvalidArgs), "unsupported scheme for listen")
	}
}
