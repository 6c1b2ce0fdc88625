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

package client

import (
	"sync"
	"time"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
	"github.com/nabbar/ishell/inc/device"
	"github.com/nabbar/ishell/inc/engine"
	"github.com/nabbar/ishell/inc/handshake"
	"github.com/nabbar/ishell/inc/message"
	"github.com/nabbar/ishell/inc/operation"
	"github.com/nabbar/ishell/inc/protocol"
	"github.com/nabbar/ishell/inc/shm"
	"github.com/nabbar/ishell/kernel"
)

// State is the Context connection lifecycle (spec section 4.10).
type State uint8

const (
	Unconnected State = iota
	Connecting
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "Unconnected"
	case Connecting:
		return "Connecting"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Signal names emitted by a Context's Object.
const (
	SigStateChanged  = "stateChanged"
	SigEventReceived = "eventReceived"
	SigError         = "errorOccurred"
)

// Context is one open client-side INC session.
type Context struct {
	mu  sync.Mutex
	obj *kernel.Object

	cfg Config

	state   State
	lastURL string

	dev  device.Device
	conn *protocol.Connection
	hs   *handshake.Client
	ops  *operation.Registry
	pool *shm.Pool

	reconnectTimer *time.Timer
	reconnectCount int
}

// New builds a disconnected Context.
func New(cfg Config) *Context {
	return &Context{
		obj:   kernel.NewObject("inc.context", nil),
		cfg:   cfg,
		state: Unconnected,
		ops:   operation.NewRegistry(),
	}
}

// Object exposes stateChanged(State), eventReceived(name, version, bytes)
// and errorOccurred(liberr.Error).
func (c *Context) Object() *kernel.Object { return c.obj }

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	kernel.Emit(c.obj, SigStateChanged, s)
}

// Connect parses raw (or Config.DefaultServer if raw is empty), dials a
// client-role device through the Engine, wires the protocol and starts the
// handshake.
func (c *Context) Connect(raw string) liberr.Error {
	c.mu.Lock()
	if c.state == Connecting || c.state == Ready {
		c.mu.Unlock()
		return liberr.New(uint16(liberr.AlreadyConnected), "context already connecting or connected")
	}
	c.mu.Unlock()

	if raw == "" {
		raw = c.cfg.DefaultServer
	}
	c.mu.Lock()
	c.lastURL = raw
	c.mu.Unlock()

	c.setState(Connecting)

	dev, e := engine.DialClient(raw)
	if e != nil {
		c.setState(Failed)
		kernel.Emit(c.obj, SigError, e)
		c.scheduleReconnect()
		return e
	}

	c.wireDevice(dev)

	maxSize := c.cfg.MaxMessageSize
	if maxSize == 0 {
		maxSize = inc.DefaultMaxMessageSize
	}

	var pool *shm.Pool
	if !c.cfg.DisableSharedMemory {
		pool = shm.NewPool(c.cfg.sharedMemorySize()/64, c.cfg.DisableMemfd)
	}

	c.mu.Lock()
	c.dev = dev
	c.pool = pool
	conn := protocol.New(dev, pool, maxSize, 1, 1)
	c.conn = conn
	c.mu.Unlock()

	_, _ = kernel.Connect(conn.Object(), protocol.SigMessageReceived, c.obj, func(args []any) {
		if len(args) == 0 {
			return
		}
		if msg, ok := args[0].(message.Message); ok {
			c.onMessage(msg)
		}
	}, kernel.DeliveryDirect, nil)

	_, _ = kernel.Connect(conn.Object(), protocol.SigClosed, c.obj, func(args []any) {
		c.onDisconnected()
	}, kernel.DeliveryDirect, nil)

	_, _ = kernel.Connect(conn.Object(), protocol.SigError, c.obj, func(args []any) {
		if len(args) > 0 {
			if e, ok := args[0].(liberr.Error); ok {
				kernel.Emit(c.obj, SigError, e)
			}
		}
	}, kernel.DeliveryDirect, nil)

	caps := inc.Capability(0)
	if !c.cfg.DisableSharedMemory {
		caps |= inc.CapMultiplexing
	}
	if c.cfg.EncryptionMethod != EncryptionNone {
		caps |= inc.CapEncryption
	}
	if !c.cfg.DisableCompression {
		caps |= inc.CapCompression
	}

	nodeID, e := handshake.NewNodeID()
	if e != nil {
		nodeID = c.cfg.NodeName
	}

	local := handshake.Data{
		ProtocolVersion: c.cfg.ProtocolVersionRange.Current,
		NodeName:        c.cfg.NodeName,
		NodeID:          nodeID,
		Capabilities:    handshake.NewCapabilities(caps),
	}

	hs := handshake.NewClient(local, c.cfg.ProtocolVersionRange, c.cfg.EncryptionMethod != EncryptionNone)
	c.mu.Lock()
	c.hs = hs
	c.mu.Unlock()

	conn.Start()

	payload := hs.Start()
	hsMsg := message.New(inc.Handshake, 0, conn.NextSequence(), 0, 1, 1, payload)
	if e := conn.Send(hsMsg); e != nil {
		c.setState(Failed)
		kernel.Emit(c.obj, SigError, e)
		c.scheduleReconnect()
		return e
	}

	return nil
}

func (c *Context) wireDevice(dev device.Device) {
	_, _ = kernel.Connect(dev.Object(), device.SigErrorOccurred, c.obj, func(args []any) {
		if len(args) > 0 {
			if e, ok := args[0].(liberr.Error); ok {
				kernel.Emit(c.obj, SigError, e)
			}
		}
	}, kernel.DeliveryDirect, nil)
}

func (c *Context) onMessage(msg message.Message) {
	switch msg.Header.Type {
	case inc.HandshakeAck:
		c.handleHandshakeAck(msg)
	case inc.MethodReply, inc.SubscribeAck, inc.UnsubscribeAck, inc.Pong, inc.StreamOpenAck, inc.StreamCloseAck, inc.BinaryDataAck:
		c.completeOperation(msg)
	case inc.Event:
		ev, e := message.DecodeEvent(msg.Payload)
		if e != nil {
			kernel.Emit(c.obj, SigError, e)
			return
		}
		kernel.Emit(c.obj, SigEventReceived, ev.Name, ev.Version, ev.Bytes)
	case inc.Ping:
		pong := message.New(inc.Pong, 0, msg.Header.Sequence, msg.Header.ChannelID, 1, 1, nil)
		_ = c.conn.Send(pong)
	}
}

func (c *Context) handleHandshakeAck(msg message.Message) {
	c.mu.Lock()
	hs := c.hs
	c.mu.Unlock()
	if hs == nil {
		return
	}
	if e := hs.ProcessHandshake(msg.Payload); e != nil {
		c.setState(Failed)
		kernel.Emit(c.obj, SigError, e)
		_ = c.conn.Close()
		c.scheduleReconnect()
		return
	}
	c.conn.SetCompression(handshake.Has(hs.Negotiated(), inc.CapCompression))
	c.mu.Lock()
	c.reconnectCount = 0
	c.mu.Unlock()
	c.setState(Ready)
}

func (c *Context) completeOperation(msg message.Message) {
	op, ok := c.ops.Resolve(msg.Header.Sequence)
	if !ok {
		return
	}
	c.ops.Untrack(msg.Header.Sequence)
	op.SetResult(msg.Payload)
}

func (c *Context) onDisconnected() {
	c.setState(Failed)
	c.ops.CancelAll()
	c.scheduleReconnect()
}

// send allocates a sequence, tracks an Operation for it, and writes msg.
func (c *Context) send(typ inc.MessageType, channel uint32, payload []byte, timeout time.Duration) (*operation.Operation, liberr.Error) {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != Ready || conn == nil {
		return nil, liberr.New(uint16(liberr.NotConnected), "context is not ready")
	}

	if timeout <= 0 {
		timeout = c.cfg.OperationTimeout
	}

	seq := conn.NextSequence()
	op := c.ops.Track(seq, timeout)

	msg := message.New(typ, 0, seq, channel, 1, 1, payload)
	if e := conn.Send(msg); e != nil {
		c.ops.Untrack(seq)
		op.Fail(e)
		return op, e
	}
	return op, nil
}

// CallMethod sends a MethodCall and returns the tracked Operation; its
// result, once Completed, is the MethodReply payload (errorCode + bytes).
func (c *Context) CallMethod(name string, version uint16, args []byte, timeout time.Duration) (*operation.Operation, liberr.Error) {
	payload := message.EncodeMethodCall(message.MethodCall{Version: version, Name: name, Args: args})
	return c.send(inc.MethodCall, 0, payload, timeout)
}

// Subscribe registers pattern (exact event name or "prefix.*") for Event
// delivery.
func (c *Context) Subscribe(pattern string) (*operation.Operation, liberr.Error) {
	payload := message.EncodePattern(message.Pattern{Pattern: pattern})
	return c.send(inc.Subscribe, 0, payload, 0)
}

// Unsubscribe removes a previously subscribed pattern.
func (c *Context) Unsubscribe(pattern string) (*operation.Operation, liberr.Error) {
	payload := message.EncodePattern(message.Pattern{Pattern: pattern})
	return c.send(inc.Unsubscribe, 0, payload, 0)
}

// PingPong sends an application-level heartbeat.
func (c *Context) PingPong() (*operation.Operation, liberr.Error) {
	return c.send(inc.Ping, 0, nil, 0)
}

// RequestChannel asks the server to open a bulk-data channel in mode and
// returns an Operation whose result decodes with message.DecodeStreamOpenAck.
func (c *Context) RequestChannel(mode message.ChannelMode) (*operation.Operation, liberr.Error) {
	payload := message.EncodeStreamOpen(message.StreamOpen{Mode: mode})
	return c.send(inc.StreamOpen, 0, payload, 0)
}

// ReleaseChannel closes a previously opened channel.
func (c *Context) ReleaseChannel(id uint32) (*operation.Operation, liberr.Error) {
	payload := message.EncodeStreamClose(message.StreamClose{ChannelID: id})
	return c.send(inc.StreamClose, id, payload, 0)
}

// SendBinary writes raw bytes on channel, using the Context's SHM pool for
// zero-copy when large enough and enabled.
func (c *Context) SendBinary(channel uint32, payload []byte) liberr.Error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return liberr.New(uint16(liberr.NotConnected), "context is not ready")
	}
	return conn.SendBinary(channel, payload)
}

// Disconnect stops any reconnect timer, then tears the session down:
// protocol, transport, handshake state and every pending Operation.
func (c *Context) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.dev = nil
	c.conn = nil
	c.hs = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.ops.CancelAll()
	c.setState(Unconnected)
}

func (c *Context) scheduleReconnect() {
	if !c.cfg.AutoReconnect {
		return
	}

	c.mu.Lock()
	c.reconnectCount++
	attempt := c.reconnectCount
	limit := c.cfg.MaxReconnectAttempts
	url := c.lastURL
	c.mu.Unlock()

	if limit > 0 && attempt > limit {
		return
	}

	interval := c.cfg.ReconnectInterval
	if interval <= 0 {
		interval = time.Second
	}

	reconnectAttempts.Inc()

	c.mu.Lock()
	c.reconnectTimer = time.AfterFunc(interval, func() {
		_ = c.Connect(url)
	})
	c.mu.Unlock()
}
