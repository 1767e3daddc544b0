/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/kazad/kazad/object"
)

// valueTag identifies the concrete variant of a tagged dynamic scalar
// (§4.2). These bytes are the wire contract and must never be renumbered.
type valueTag byte

const (
	tagInvalid   valueTag = 0
	tagInt       valueTag = 1
	tagFloat     valueTag = 2
	tagBool      valueTag = 3
	tagString    valueTag = 4
	tagTimestamp valueTag = 5
)

// PutValue appends the tagged encoding of v to buf and returns the result.
func PutValue(buf []byte, v object.Value) []byte {
	switch v.Kind {
	case object.KindInt:
		buf = append(buf, byte(tagInt))
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.Int()))
		return append(buf, b[:]...)
	case object.KindFloat:
		buf = append(buf, byte(tagFloat))
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Float()))
		return append(buf, b[:]...)
	case object.KindBool:
		buf = append(buf, byte(tagBool))
		if v.Bool() {
			return append(buf, 1)
		}
		return append(buf, 0)
	case object.KindString:
		buf = append(buf, byte(tagString))
		return putString(buf, v.Str())
	case object.KindTimestamp:
		buf = append(buf, byte(tagTimestamp))
		var b [8]byte
		ms := v.Time().UnixMilli()
		binary.BigEndian.PutUint64(b[:], uint64(ms))
		return append(buf, b[:]...)
	default:
		return append(buf, byte(tagInvalid))
	}
}

// GetValue decodes a tagged dynamic scalar from the front of buf, returning
// the value and the unconsumed remainder.
func GetValue(buf []byte) (object.Value, []byte, error) {
	if len(buf) < 1 {
		return object.Value{}, nil, ErrShortBuffer
	}
	tag := valueTag(buf[0])
	buf = buf[1:]
	switch tag {
	case tagInvalid:
		return object.Invalid(), buf, nil
	case tagInt:
		if len(buf) < 8 {
			return object.Value{}, nil, ErrShortBuffer
		}
		v := int64(binary.BigEndian.Uint64(buf[:8]))
		return object.Int(v), buf[8:], nil
	case tagFloat:
		if len(buf) < 8 {
			return object.Value{}, nil, ErrShortBuffer
		}
		v := math.Float64frombits(binary.BigEndian.Uint64(buf[:8]))
		return object.Float(v), buf[8:], nil
	case tagBool:
		if len(buf) < 1 {
			return object.Value{}, nil, ErrShortBuffer
		}
		return object.Bool(buf[0] != 0), buf[1:], nil
	case tagString:
		s, rest, err := getString(buf)
		if err != nil {
			return object.Value{}, nil, err
		}
		return object.String(s), rest, nil
	case tagTimestamp:
		if len(buf) < 8 {
			return object.Value{}, nil, ErrShortBuffer
		}
		ms := int64(binary.BigEndian.Uint64(buf[:8]))
		return object.Timestamp(time.UnixMilli(ms)), buf[8:], nil
	default:
		return object.Value{}, nil, ErrMalformedFrame
	}
}
