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

package message

import liberr "github.com/nabbar/ishell/errors"

// The types below are the tag-struct payload shapes carried by each
// MessageType, shared by inc/client and inc/server so both sides encode and
// parse them identically.

type MethodCall struct {
	Version uint16
	Name    string
	Args    []byte
}

func EncodeMethodCall(v MethodCall) []byte {
	return NewWriter().PutU16(v.Version).PutString(v.Name).PutBytes(v.Args).Bytes()
}

func DecodeMethodCall(buf []byte) (MethodCall, liberr.Error) {
	r := NewReader(buf)
	var out MethodCall
	var e liberr.Error
	if out.Version, e = r.GetU16(); e != nil {
		return MethodCall{}, e
	}
	if out.Name, e = r.GetString(); e != nil {
		return MethodCall{}, e
	}
	if out.Args, e = r.GetBytes(); e != nil {
		return MethodCall{}, e
	}
	return out, nil
}

type MethodReply struct {
	ErrorCode uint16
	Result    []byte
}

func EncodeMethodReply(v MethodReply) []byte {
	return NewWriter().PutU16(v.ErrorCode).PutBytes(v.Result).Bytes()
}

func DecodeMethodReply(buf []byte) (MethodReply, liberr.Error) {
	r := NewReader(buf)
	var out MethodReply
	var e liberr.Error
	if out.ErrorCode, e = r.GetU16(); e != nil {
		return MethodReply{}, e
	}
	if out.Result, e = r.GetBytes(); e != nil {
		return MethodReply{}, e
	}
	return out, nil
}

type Pattern struct {
	Pattern string
}

func EncodePattern(v Pattern) []byte {
	return NewWriter().PutString(v.Pattern).Bytes()
}

func DecodePattern(buf []byte) (Pattern, liberr.Error) {
	r := NewReader(buf)
	p, e := r.GetString()
	if e != nil {
		return Pattern{}, e
	}
	return Pattern{Pattern: p}, nil
}

type Ack struct {
	ErrorCode uint16
}

func EncodeAck(v Ack) []byte {
	return NewWriter().PutU16(v.ErrorCode).Bytes()
}

func DecodeAck(buf []byte) (Ack, liberr.Error) {
	r := NewReader(buf)
	code, e := r.GetU16()
	if e != nil {
		return Ack{}, e
	}
	return Ack{ErrorCode: code}, nil
}

type Event struct {
	Name    string
	Version uint16
	Bytes   []byte
}

func EncodeEvent(v Event) []byte {
	return NewWriter().PutString(v.Name).PutU16(v.Version).PutBytes(v.Bytes).Bytes()
}

func DecodeEvent(buf []byte) (Event, liberr.Error) {
	r := NewReader(buf)
	var out Event
	var e liberr.Error
	if out.Name, e = r.GetString(); e != nil {
		return Event{}, e
	}
	if out.Version, e = r.GetU16(); e != nil {
		return Event{}, e
	}
	if out.Bytes, e = r.GetBytes(); e != nil {
		return Event{}, e
	}
	return out, nil
}

// ChannelMode is the access mode requested for a StreamOpen.
type ChannelMode uint16

const (
	ChannelRead ChannelMode = iota
	ChannelWrite
	ChannelReadWrite
)

type StreamOpen struct {
	Mode ChannelMode
}

func EncodeStreamOpen(v StreamOpen) []byte {
	return NewWriter().PutU16(uint16(v.Mode)).Bytes()
}

func DecodeStreamOpen(buf []byte) (StreamOpen, liberr.Error) {
	r := NewReader(buf)
	m, e := r.GetU16()
	if e != nil {
		return StreamOpen{}, e
	}
	return StreamOpen{Mode: ChannelMode(m)}, nil
}

type StreamOpenAck struct {
	ErrorCode  uint16
	ChannelID  uint32
	ShmEnabled bool
	PoolSize   uint64
}

func EncodeStreamOpenAck(v StreamOpenAck) []byte {
	return NewWriter().PutU16(v.ErrorCode).PutU32(v.ChannelID).PutBool(v.ShmEnabled).PutU64(v.PoolSize).Bytes()
}

func DecodeStreamOpenAck(buf []byte) (StreamOpenAck, liberr.Error) {
	r := NewReader(buf)
	var out StreamOpenAck
	var e liberr.Error
	if out.ErrorCode, e = r.GetU16(); e != nil {
		return StreamOpenAck{}, e
	}
	if out.ChannelID, e = r.GetU32(); e != nil {
		return StreamOpenAck{}, e
	}
	if out.ShmEnabled, e = r.GetBool(); e != nil {
		return StreamOpenAck{}, e
	}
	if out.PoolSize, e = r.GetU64(); e != nil {
		return StreamOpenAck{}, e
	}
	return out, nil
}

type StreamClose struct {
	ChannelID uint32
}

func EncodeStreamClose(v StreamClose) []byte {
	return NewWriter().PutU32(v.ChannelID).Bytes()
}

func DecodeStreamClose(buf []byte) (StreamClose, liberr.Error) {
	r := NewReader(buf)
	id, e := r.GetU32()
	if e != nil {
		return StreamClose{}, e
	}
	return StreamClose{ChannelID: id}, nil
}
