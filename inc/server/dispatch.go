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
	liberr "github.com/nabbar/ishell/errors"
	"github.com/nabbar/ishell/inc"
	"github.com/nabbar/ishell/inc/handshake"
	"github.com/nabbar/ishell/inc/message"
	"github.com/nabbar/ishell/kernel"
)

// dispatch routes one decoded message from conn per spec section 4.11.
func (s *Server) dispatch(conn *Connection, msg message.Message) {
	switch msg.Header.Type {
	case inc.Handshake:
		s.handleHandshake(conn, msg)
	case inc.MethodCall:
		s.handleMethodCall(conn, msg)
	case inc.Subscribe:
		s.handleSubscribe(conn, msg)
	case inc.Unsubscribe:
		s.handleUnsubscribe(conn, msg)
	case inc.StreamOpen:
		s.handleStreamOpen(conn, msg)
	case inc.StreamClose:
		s.handleStreamClose(conn, msg)
	case inc.Ping:
		s.handlePing(conn, msg)
	case inc.BinaryData:
		s.handleBinaryData(conn, msg)
	}
}

func (s *Server) handleHandshake(conn *Connection, msg message.Message) {
	ack, e := conn.hs.ProcessHandshake(msg.Payload)
	if e != nil {
		kernel.Emit(s.obj, SigError, conn, e)
		_ = conn.Close()
		return
	}

	peer := conn.hs.Peer()
	conn.mu.Lock()
	conn.peerName = peer.NodeName
	conn.peerVersion = peer.ProtocolVersion
	conn.mu.Unlock()
	conn.conn.SetCompression(handshake.Has(conn.hs.Negotiated(), inc.CapCompression))

	reply := message.New(inc.HandshakeAck, 0, msg.Header.Sequence+1, 0, 1, 1, ack)
	_ = conn.Send(reply)
}

func (s *Server) handleMethodCall(conn *Connection, msg message.Message) {
	call, e := message.DecodeMethodCall(msg.Payload)
	if e != nil {
		_ = s.SendMethodReply(conn, msg.Header.Sequence, e.Code(), nil)
		return
	}
	if s.HandleMethod != nil {
		s.HandleMethod(conn, msg.Header.Sequence, call)
	}
}

// SendMethodReply completes a MethodCall identified by seq. Application
// code calls this from within (or after) HandleMethod.
func (s *Server) SendMethodReply(conn *Connection, seq uint32, errCode uint16, result []byte) liberr.Error {
	payload := message.EncodeMethodReply(message.MethodReply{ErrorCode: errCode, Result: result})
	reply := message.New(inc.MethodReply, 0, seq, 0, 1, 1, payload)
	return conn.Send(reply)
}

func (s *Server) handleSubscribe(conn *Connection, msg message.Message) {
	p, e := message.DecodePattern(msg.Payload)
	if e != nil {
		s.replyError(conn, inc.SubscribeAck, msg.Header.Sequence, e)
		return
	}

	allowed := true
	if s.HandleSubscribe != nil {
		allowed = s.HandleSubscribe(conn, p.Pattern)
	}

	var errCode uint16
	if allowed {
		conn.addPattern(p.Pattern)
	} else {
		errCode = uint16(liberr.AccessDenied)
	}

	ack := message.New(inc.SubscribeAck, 0, msg.Header.Sequence, 0, 1, 1, message.EncodeAck(message.Ack{ErrorCode: errCode}))
	_ = conn.Send(ack)
}

func (s *Server) handleUnsubscribe(conn *Connection, msg message.Message) {
	p, e := message.DecodePattern(msg.Payload)
	if e != nil {
		s.replyError(conn, inc.UnsubscribeAck, msg.Header.Sequence, e)
		return
	}
	conn.removePattern(p.Pattern)
	ack := message.New(inc.UnsubscribeAck, 0, msg.Header.Sequence, 0, 1, 1, message.EncodeAck(message.Ack{}))
	_ = conn.Send(ack)
}

func (s *Server) handleStreamOpen(conn *Connection, msg message.Message) {
	open, e := message.DecodeStreamOpen(msg.Payload)
	if e != nil {
		s.replyError(conn, inc.StreamOpenAck, msg.Header.Sequence, e)
		return
	}

	id := s.nextChannelID()
	conn.addChannel(id, open.Mode)

	shmEnabled := conn.pool != nil
	var poolSize uint64
	if shmEnabled {
		poolSize = uint64(s.cfg.sharedMemorySize())
	}

	ack := message.StreamOpenAck{ErrorCode: 0, ChannelID: id, ShmEnabled: shmEnabled, PoolSize: poolSize}
	reply := message.New(inc.StreamOpenAck, 0, msg.Header.Sequence, id, 1, 1, message.EncodeStreamOpenAck(ack))
	_ = conn.Send(reply)
}

func (s *Server) handleStreamClose(conn *Connection, msg message.Message) {
	sc, e := message.DecodeStreamClose(msg.Payload)
	if e != nil {
		s.replyError(conn, inc.StreamCloseAck, msg.Header.Sequence, e)
		return
	}
	conn.removeChannel(sc.ChannelID)
	ack := message.New(inc.StreamCloseAck, 0, msg.Header.Sequence, sc.ChannelID, 1, 1, message.EncodeAck(message.Ack{}))
	_ = conn.Send(ack)
}

func (s *Server) handlePing(conn *Connection, msg message.Message) {
	pong := message.New(inc.Pong, 0, msg.Header.Sequence, msg.Header.ChannelID, 1, 1, nil)
	_ = conn.Send(pong)
}

func (s *Server) handleBinaryData(conn *Connection, msg message.Message) {
	mode, ok := conn.ChannelMode(msg.Header.ChannelID)
	if !ok || mode == message.ChannelWrite {
		kernel.Emit(s.obj, SigError, conn, liberr.New(uint16(liberr.ChannelError), "binary data on unknown or write-only channel"))
		return
	}

	payload := msg.Payload
	if msg.Header.Flags&inc.ShmData != 0 {
		ref, e := message.DecodeShmRef(msg.Payload)
		if e != nil {
			kernel.Emit(s.obj, SigError, conn, e)
			return
		}
		if conn.pool == nil {
			kernel.Emit(s.obj, SigError, conn, liberr.New(uint16(liberr.ChannelError), "shm reference received but shared memory is disabled"))
			return
		}
		blk, ok := conn.pool.Lookup(ref.BlockID)
		if !ok {
			kernel.Emit(s.obj, SigError, conn, liberr.New(uint16(liberr.ChannelError), "unknown shm block id"))
			return
		}
		view, e := blk.Slice(ref.Offset, ref.Size)
		if e != nil {
			kernel.Emit(s.obj, SigError, conn, e)
			return
		}
		payload = view
	}

	if s.HandleBinary != nil {
		s.HandleBinary(conn, msg.Header.ChannelID, msg.Header.Sequence, payload)
	}
}

func (s *Server) replyError(conn *Connection, typ inc.MessageType, seq uint32, e liberr.Error) {
	ack := message.New(typ, 0, seq, 0, 1, 1, message.EncodeAck(message.Ack{ErrorCode: e.Code()}))
	_ = conn.Send(ack)
}
