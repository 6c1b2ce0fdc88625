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
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	liberr "github.com/nabbar/ishell/errors"
	errpool "github.com/nabbar/ishell/errors/pool"
	"github.com/nabbar/ishell/inc"
	"github.com/nabbar/ishell/inc/device"
	"github.com/nabbar/ishell/inc/engine"
	"github.com/nabbar/ishell/inc/handshake"
	"github.com/nabbar/ishell/inc/message"
	"github.com/nabbar/ishell/inc/protocol"
	"github.com/nabbar/ishell/inc/shm"
	"github.com/nabbar/ishell/kernel"
)

// State is the Server lifecycle.
type State uint8

const (
	Stopped State = iota
	Listening
)

// Signal names emitted by a Server's Object.
const (
	SigConnectionOpened = "connectionOpened"
	SigConnectionClosed = "connectionClosed"
	SigError            = "errorOccurred"
)

// MethodHandler implements application RPC logic. It must eventually call
// Connection.Send with a MethodReply payload (spec section 4.11); this
// framework does not assume synchronous completion.
type MethodHandler func(conn *Connection, seq uint32, call message.MethodCall)

// SubscribeHandler decides whether a subscription pattern is admitted.
type SubscribeHandler func(conn *Connection, pattern string) bool

// BinaryHandler receives a BinaryData payload already resolved to bytes
// (inline copy or SHM import, transparently).
type BinaryHandler func(conn *Connection, channel uint32, seq uint32, payload []byte)

// Server is the INC server-side listener: one Device accepting connections,
// fanned out into one Connection (device + protocol + handshake + channel
// table) each.
type Server struct {
	mu  sync.RWMutex
	obj *kernel.Object

	cfg  Config
	ln   engine.Listener
	pool *shm.Pool

	state State

	connSeq     uint64
	connections map[uint64]*Connection

	channelSeq uint32

	HandleMethod    MethodHandler
	HandleSubscribe SubscribeHandler
	HandleBinary    BinaryHandler
}

// New builds a Stopped Server.
func New(cfg Config) *Server {
	return &Server{
		obj:         kernel.NewObject("inc.server", nil),
		cfg:         cfg,
		connections: make(map[uint64]*Connection),
	}
}

// Object exposes connectionOpened(*Connection), connectionClosed(*Connection)
// and errorOccurred(*Connection, liberr.Error).
func (s *Server) Object() *kernel.Object { return s.obj }

func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ListenOn starts accepting connections on raw (falling back to
// Config.ListenAddress when raw is empty).
func (s *Server) ListenOn(raw string) liberr.Error {
	if raw == "" {
		raw = s.cfg.ListenAddress
	}

	ln, e := engine.Listen(raw)
	if e != nil {
		return e
	}

	var pool *shm.Pool
	if !s.cfg.DisableSharedMemory {
		pool = shm.NewPool(s.cfg.sharedMemorySize()/64, s.cfg.DisableMemfd)
	}

	s.mu.Lock()
	s.ln = ln
	s.pool = pool
	s.state = Listening
	s.mu.Unlock()

	_, _ = kernel.Connect(ln.Object(), device.SigNewConnection, s.obj, func(args []any) {
		if len(args) == 0 {
			return
		}
		if dev, ok := args[0].(device.Device); ok {
			s.accept(dev)
		}
	}, kernel.DeliveryDirect, nil)

	ln.StartEventMonitoring()
	return nil
}

func (s *Server) accept(dev device.Device) {
	id := atomic.AddUint64(&s.connSeq, 1)

	s.mu.RLock()
	pool := s.pool
	maxSize := s.cfg.maxMessageSize()
	s.mu.RUnlock()

	var connPool *shm.Pool
	if pool != nil {
		connPool = pool
	}

	c := newConnection(id, s, dev, connPool)
	c.conn = protocol.New(dev, connPool, maxSize, 1, 1)

	caps := inc.Capability(0)
	if !s.cfg.DisableSharedMemory {
		caps |= inc.CapMultiplexing
	}
	if !s.cfg.DisableCompression {
		caps |= inc.CapCompression
	}

	local := handshake.Data{
		ProtocolVersion: s.cfg.ProtocolVersionRange.Current,
		NodeName:        s.cfg.NodeName,
		Capabilities:    handshake.NewCapabilities(caps),
	}
	c.hs = handshake.NewServer(local, s.cfg.VersionPolicy, s.cfg.ProtocolVersionRange, s.cfg.EncryptionRequirement)

	s.mu.Lock()
	s.connections[id] = c
	s.mu.Unlock()
	activeConnections.Inc()

	c.wire()
	kernel.Emit(s.obj, SigConnectionOpened, c)
}

func (s *Server) forget(id uint64) {
	s.mu.Lock()
	c, ok := s.connections[id]
	if ok {
		delete(s.connections, id)
	}
	s.mu.Unlock()
	if ok {
		activeConnections.Dec()
		kernel.Emit(s.obj, SigConnectionClosed, c)
	}
}

// nextChannelID allocates a server-unique channel id (spec section 4.11).
func (s *Server) nextChannelID() uint32 {
	return atomic.AddUint32(&s.channelSeq, 1)
}

// BroadcastEvent fans an Event out to every connection whose subscription
// set matches name (spec section 8 property 8).
func (s *Server) BroadcastEvent(name string, version uint16, bytes []byte) {
	payload := message.EncodeEvent(message.Event{Name: name, Version: version, Bytes: bytes})

	s.mu.RLock()
	targets := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		if c.Subscribed(name) {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		msg := message.New(inc.Event, 0, c.conn.NextSequence(), 0, 1, 1, payload)
		_ = c.Send(msg)
	}
}

// AcquireBuffer allocates size bytes from the server's global SHM pool, if
// enabled.
func (s *Server) AcquireBuffer(size int) (*shm.Block, liberr.Error) {
	s.mu.RLock()
	pool := s.pool
	s.mu.RUnlock()
	if pool == nil {
		return nil, liberr.New(uint16(liberr.InvalidState), "shared memory is disabled on this server")
	}
	return pool.Alloc(size)
}

// Close stops accepting new connections and tears every tracked Connection
// down, collecting every close error encountered along the way instead of
// discarding all but the last one.
func (s *Server) Close() liberr.Error {
	s.mu.Lock()
	ln := s.ln
	conns := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.connections = make(map[uint64]*Connection)
	s.state = Stopped
	s.mu.Unlock()
	activeConnections.Sub(float64(len(conns)))

	errs := errpool.New()
	var grp errgroup.Group
	for _, c := range conns {
		c := c
		grp.Go(func() error {
			if e := c.Close(); e != nil {
				errs.Add(e)
			}
			return nil
		})
	}
	_ = grp.Wait()

	if ln != nil {
		if e := ln.Close(); e != nil {
			errs.Add(e)
		}
	}

	if errs.Len() == 0 {
		return nil
	}
	return liberr.New(uint16(liberr.Internal), "one or more connections failed to close cleanly", errs.Error())
}

// Connections returns a snapshot of currently tracked connections.
func (s *Server) Connections() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, c)
	}
	return out
}
