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

package server

import (
	"strings"
	"sync"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc/device"
	"github.com/nabbar/ishell/inc/handshake"
	"github.com/nabbar/ishell/inc/message"
	"github.com/nabbar/ishell/inc/protocol"
	"github.com/nabbar/ishell/inc/shm"
	"github.com/nabbar/ishell/kernel"
)

// Connection is one accepted client: its device, protocol codec, handshake
// state, subscription patterns and channel table.
type Connection struct {
	mu sync.RWMutex

	id     uint64
	server *Server

	dev  device.Device
	conn *protocol.Connection
	hs   *handshake.Server
	pool *shm.Pool

	peerName    string
	peerVersion uint32

	patterns map[string]struct{}
	channels map[uint32]message.ChannelMode
}

func newConnection(id uint64, srv *Server, dev device.Device, pool *shm.Pool) *Connection {
	return &Connection{
		id:       id,
		server:   srv,
		dev:      dev,
		pool:     pool,
		patterns: make(map[string]struct{}),
		channels: make(map[uint32]message.ChannelMode),
	}
}

// ID is the server-assigned connection id.
func (c *Connection) ID() uint64 { return c.id }

// Device returns the underlying transport.
func (c *Connection) Device() device.Device { return c.dev }

// PeerName returns the client's advertised node name, once handshake
// completes.
func (c *Connection) PeerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerName
}

// Send writes msg to this connection's transport.
func (c *Connection) Send(msg message.Message) liberr.Error {
	return c.conn.Send(msg)
}

// Close tears the connection's transport down.
func (c *Connection) Close() liberr.Error {
	return c.conn.Close()
}

// matchesPattern implements spec section 8 property 8: exact equality, or p
// ends with ".*" and name starts with the prefix before it.
func matchesPattern(name, pattern string) bool {
	if pattern == name {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(name, prefix)
	}
	return false
}

// Subscribed reports whether name matches any of this connection's
// registered patterns.
func (c *Connection) Subscribed(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for p := range c.patterns {
		if matchesPattern(name, p) {
			return true
		}
	}
	return false
}

func (c *Connection) addPattern(p string) {
	c.mu.Lock()
	c.patterns[p] = struct{}{}
	c.mu.Unlock()
}

func (c *Connection) removePattern(p string) {
	c.mu.Lock()
	delete(c.patterns, p)
	c.mu.Unlock()
}

func (c *Connection) addChannel(id uint32, mode message.ChannelMode) {
	c.mu.Lock()
	c.channels[id] = mode
	c.mu.Unlock()
}

func (c *Connection) removeChannel(id uint32) {
	c.mu.Lock()
	delete(c.channels, id)
	c.mu.Unlock()
}

// ChannelMode reports the mode a channel id was opened with on this
// connection, if any.
func (c *Connection) ChannelMode(id uint32) (message.ChannelMode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.channels[id]
	return m, ok
}

func (c *Connection) wire() {
	_, _ = kernel.Connect(c.conn.Object(), protocol.SigMessageReceived, c.server.obj, func(args []any) {
		if len(args) == 0 {
			return
		}
		if msg, ok := args[0].(message.Message); ok {
			c.server.dispatch(c, msg)
		}
	}, kernel.DeliveryDirect, nil)

	_, _ = kernel.Connect(c.conn.Object(), protocol.SigClosed, c.server.obj, func(args []any) {
		c.server.forget(c.id)
	}, kernel.DeliveryDirect, nil)

	_, _ = kernel.Connect(c.conn.Object(), protocol.SigError, c.server.obj, func(args []any) {
		if len(args) > 0 {
			if e, ok := args[0].(liberr.Error); ok {
				kernel.Emit(c.server.obj, SigError, c, e)
			}
		}
	}, kernel.DeliveryDirect, nil)

	c.conn.Start()
}
