/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package errors

// CodeError constants for the INC framework and its kernel. Registered the
// same way the teacher registers its HTTP-like codes: a reserved block of
// the CodeError space, with a message function bound in init.
const (
	InvalidArgs CodeError = iota + 6000
	InvalidState
	ConnectionFailed
	AlreadyConnected
	Disconnected
	ProtocolError
	InvalidMessage
	MessageTooLarge
	QueueFull
	NotConnected
	AccessDenied
	WriteFailed
	ChannelError
	OperationTimeout
	Internal
)

func init() {
	RegisterIdFctMessage(InvalidArgs, incMessage)
}

func incMessage(code CodeError) string {
	switch code {
	case InvalidArgs:
		return "invalid arguments"
	case InvalidState:
		return "invalid state for this operation"
	case ConnectionFailed:
		return "connection failed"
	case AlreadyConnected:
		return "already connected"
	case Disconnected:
		return "disconnected"
	case ProtocolError:
		return "protocol error"
	case InvalidMessage:
		return "invalid message"
	case MessageTooLarge:
		return "message exceeds the maximum allowed size"
	case QueueFull:
		return "send queue is full"
	case NotConnected:
		return "not connected"
	case AccessDenied:
		return "access denied"
	case WriteFailed:
		return "write failed"
	case ChannelError:
		return "channel error"
	case OperationTimeout:
		return "operation timed out"
	case Internal:
		return "internal error"
	default:
		return UnknownMessage
	}
}
