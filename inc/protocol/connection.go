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

// Package protocol drives one Device through the wire-message lifecycle:
// sequence allocation, receive-buffer reassembly of complete messages out of
// a byte stream, and the binary zero-copy send path that exports a payload
// through a shm.Pool rather than copying it inline (spec section 4.8).
package protocol

import (
	"sync"
	"sync/atomic"

	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
	"github.com/nabbar/ishell/inc/device"
	"github.com/nabbar/ishell/inc/message"
	"github.com/nabbar/ishell/inc/shm"
	"github.com/nabbar/ishell/kernel"
)

// Signal names emitted by a Connection's Object.
const (
	SigMessageReceived = "messageReceived"
	SigClosed          = "closed"
	SigError           = "errorOccurred"
)

// Connection wires a device.Device to the message framing layer: it
// reassembles complete Messages out of the device's byte stream and exposes
// a sequence allocator and a zero-copy-aware binary send path.
type Connection struct {
	mu sync.Mutex

	obj *kernel.Object
	dev device.Device
	shm *shm.Pool

	maxMessageSize uint32
	protoVersion   uint8
	payloadVersion uint8

	seq uint32

	recvBuf  []byte
	started  bool
	compress bool
}

// New builds a Connection over dev. pool may be nil; when non-nil, SendBinary
// uses it to avoid copying large payloads inline.
func New(dev device.Device, pool *shm.Pool, maxMessageSize uint32, protoVersion, payloadVersion uint8) *Connection {
	return &Connection{
		obj:            kernel.NewObject("protocol.connection", nil),
		dev:            dev,
		shm:            pool,
		maxMessageSize: maxMessageSize,
		protoVersion:   protoVersion,
		payloadVersion: payloadVersion,
	}
}

// Object exposes the signals messageReceived(message.Message),
// closed() and errorOccurred(liberr.Error).
func (c *Connection) Object() *kernel.Object { return c.obj }

// Device returns the underlying transport.
func (c *Connection) Device() device.Device { return c.dev }

// NextSequence allocates the next outbound message sequence number.
func (c *Connection) NextSequence() uint32 {
	return atomic.AddUint32(&c.seq, 1)
}

// SetCompression enables or disables transparent gzip compression of
// outbound payloads. Callers flip this once handshake capability
// negotiation confirms both peers advertised Compression (spec section
// 4.7); it never affects how an inbound Compressed-flagged message is
// decoded, since that is always driven by the flag on the wire.
func (c *Connection) SetCompression(enabled bool) {
	c.mu.Lock()
	c.compress = enabled
	c.mu.Unlock()
}

// Start wires the device's signals into the reassembly loop and begins
// event monitoring. Connect signal handlers to Object before calling Start.
func (c *Connection) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	_, _ = kernel.Connect(c.dev.Object(), device.SigReadyRead, c.obj, func(args []any) {
		c.onReadyRead()
	}, kernel.DeliveryDirect, nil)

	_, _ = kernel.Connect(c.dev.Object(), device.SigDisconnected, c.obj, func(args []any) {
		kernel.Emit(c.obj, SigClosed)
	}, kernel.DeliveryDirect, nil)

	_, _ = kernel.Connect(c.dev.Object(), device.SigErrorOccurred, c.obj, func(args []any) {
		if len(args) > 0 {
			if e, ok := args[0].(liberr.Error); ok {
				kernel.Emit(c.obj, SigError, e)
			}
		}
	}, kernel.DeliveryDirect, nil)

	c.dev.StartEventMonitoring()
}

func (c *Connection) onReadyRead() {
	for {
		chunk, e := c.dev.Read(64 * 1024)
		if e != nil {
			kernel.Emit(c.obj, SigError, e)
			return
		}
		if len(chunk) == 0 {
			break
		}
		c.mu.Lock()
		c.recvBuf = append(c.recvBuf, chunk...)
		c.mu.Unlock()
	}
	c.drain()
}

// drain extracts every complete header+payload message currently buffered
// and emits it, leaving any trailing partial message for the next read.
func (c *Connection) drain() {
	for {
		c.mu.Lock()
		if uint32(len(c.recvBuf)) < inc.HeaderSize {
			c.mu.Unlock()
			return
		}
		h, e := message.DecodeHeader(c.recvBuf)
		if e != nil {
			buf := c.recvBuf
			c.recvBuf = nil
			c.mu.Unlock()
			kernel.Emit(c.obj, SigError, e)
			_ = buf
			return
		}
		total := inc.HeaderSize + h.PayloadLength
		if uint32(len(c.recvBuf)) < total {
			c.mu.Unlock()
			return
		}
		frame := make([]byte, total)
		copy(frame, c.recvBuf[:total])
		c.recvBuf = c.recvBuf[total:]
		c.mu.Unlock()

		msg, de := message.Decode(frame, c.maxMessageSize)
		if de != nil {
			kernel.Emit(c.obj, SigError, de)
			return
		}
		if msg.Header.Flags&inc.Compressed != 0 {
			plain, pe := message.DecompressPayload(msg.Payload)
			if pe != nil {
				kernel.Emit(c.obj, SigError, pe)
				return
			}
			msg.Payload = plain
		}
		kernel.Emit(c.obj, SigMessageReceived, msg)
	}
}

// Send serialises and writes msg in full, transparently gzip-compressing
// the payload first when compression was negotiated and the payload is
// large enough for the framing overhead to pay off.
func (c *Connection) Send(msg message.Message) liberr.Error {
	c.mu.Lock()
	compress := c.compress
	c.mu.Unlock()

	if compress && msg.Header.Flags&inc.ShmData == 0 && len(msg.Payload) >= message.CompressThreshold {
		packed, e := message.CompressPayload(msg.Payload)
		if e != nil {
			return e
		}
		msg = message.New(msg.Header.Type, msg.Header.Flags|inc.Compressed, msg.Header.Sequence, msg.Header.ChannelID, msg.Header.ProtocolVersion, msg.Header.PayloadVersion, packed)
	}

	if msg.Header.PayloadLength > c.maxMessageSize {
		return liberr.New(uint16(liberr.MessageTooLarge), "outbound payload exceeds configured maximum")
	}
	_, e := c.dev.Write(msg.Encode())
	return e
}

// SendBinary writes a BinaryData message for channel carrying payload. When
// a shm.Pool is configured and payload is large enough (Pool.ShouldInline
// says no), it is exported through shared memory and the wire payload
// becomes the SHM reference tuple instead of a copy of the data itself.
func (c *Connection) SendBinary(channel uint32, payload []byte) liberr.Error {
	seq := c.NextSequence()

	if c.shm == nil || c.shm.ShouldInline(len(payload)) {
		msg := message.New(inc.BinaryData, 0, seq, channel, c.protoVersion, c.payloadVersion, payload)
		return c.Send(msg)
	}

	blk, e := c.shm.Alloc(len(payload))
	if e != nil {
		return e
	}
	copy(blk.Bytes(), payload)

	ref, e := c.shm.Export(blk, 0, uint64(len(payload)))
	if e != nil {
		return e
	}

	msg := message.New(inc.BinaryData, inc.ShmData, seq, channel, c.protoVersion, c.payloadVersion, message.EncodeShmRef(ref))
	return c.Send(msg)
}

// Close shuts the underlying device down.
func (c *Connection) Close() liberr.Error {
	return c.dev.Close()
}
