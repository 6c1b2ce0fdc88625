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

import (
	"bytes"
	"compress/gzip"
	"io"

	liberr "github.com/nabbar/ishell/errors"
)

// CompressThreshold is the smallest payload size worth paying gzip's
// framing overhead for.
const CompressThreshold = 256

// CompressPayload gzips buf. Only called once both peers have negotiated
// the Compression capability (spec section 4.7); it is a codec-layer
// transform, not a cryptographic one.
func CompressPayload(buf []byte) ([]byte, liberr.Error) {
	var out bytes.Buffer
	w := gzip.NewWriter(&out)
	if _, err := w.Write(buf); err != nil {
		return nil, liberr.New(uint16(liberr.Internal), "gzip compression failed", err)
	}
	if err := w.Close(); err != nil {
		return nil, liberr.New(uint16(liberr.Internal), "gzip compression failed", err)
	}
	return out.Bytes(), nil
}

// DecompressPayload reverses CompressPayload.
func DecompressPayload(buf []byte) ([]byte, liberr.Error) {
	r, err := gzip.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, liberr.New(uint16(liberr.InvalidMessage), "gzip decompression failed", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, liberr.New(uint16(liberr.InvalidMessage), "gzip decompression failed", err)
	}
	return out, nil
}
