/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"bufio"
	"encoding/binary"
	"io"
)

const headerSize = 4 + 1 // 32-bit length + 1-byte kind

// Decoder reads length-prefixed, kind-tagged frames off a stream. A frame
// is only ever returned once every byte of it has arrived (§4.2); Next
// blocks on the underlying reader until that happens or an error occurs.
type Decoder struct {
	r       *bufio.Reader
	maxSize int
}

func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, DefaultMaxFrameSize)
}

func NewDecoderSize(r io.Reader, maxSize int) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024), maxSize: maxSize}
}

// Next reads and returns the next frame, blocking until it is fully
// available. A length exceeding the decoder's cap is a protocol violation
// and the connection must be closed (§4.2, §7).
func (d *Decoder) Next() (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	total := binary.BigEndian.Uint32(hdr[0:4])
	if total == 0 {
		return Frame{}, ErrMalformedFrame
	}
	if int(total) > d.maxSize {
		return Frame{}, ErrFrameTooLarge
	}
	kind := Kind(hdr[4])
	payload := make([]byte, total-1)
	if len(payload) > 0 {
		if _, err := io.ReadFull(d.r, payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Kind: kind, Payload: payload}, nil
}

// Encoder writes length-prefixed, kind-tagged frames to a stream.
type Encoder struct {
	w *bufio.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriterSize(w, 64*1024)}
}

// Write encodes and flushes a single frame. Flushing per-frame keeps the
// per-connection outbound queue (§5) the only place writes are batched;
// the codec itself never buffers across frames.
func (e *Encoder) Write(kind Kind, payload []byte) error {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(payload)+1))
	hdr[4] = byte(kind)
	if _, err := e.w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := e.w.Write(payload); err != nil {
			return err
		}
	}
	return e.w.Flush()
}

// putString appends a 32-bit big-endian length followed by the UTF-8 bytes
// of s (§4.2 "Strings are length-prefixed UTF-8").
func putString(buf []byte, s string) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(s)))
	buf = append(buf, l[:]...)
	buf = append(buf, s...)
	return buf
}

// getString reads a length-prefixed UTF-8 string from buf, returning the
// string, the remaining bytes, and an error if buf is too short.
func getString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return ``, nil, ErrShortBuffer
	}
	n := binary.BigEndian.Uint32(buf[0:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return ``, nil, ErrShortBuffer
	}
	return string(buf[:n]), buf[n:], nil
}

func putUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func getUint16(buf []byte) (uint16, []byte, error) {
	if len(buf) < 2 {
		return 0, nil, ErrShortBuffer
	}
	return binary.BigEndian.Uint16(buf[0:2]), buf[2:], nil
}

func putUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func getUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, ErrShortBuffer
	}
	return binary.BigEndian.Uint32(buf[0:4]), buf[4:], nil
}
