/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/kazad/kazad/object"
)

// Version is the payload of a VERSION frame (§4.2).
type Version struct {
	Major, Minor byte
	User         string
	Device       string
	Channel      uint32
}

func (v Version) Encode() []byte {
	buf := make([]byte, 0, 16+len(v.User)+len(v.Device))
	buf = append(buf, v.Major, v.Minor)
	buf = putString(buf, v.User)
	buf = putString(buf, v.Device)
	buf = putUint32(buf, v.Channel)
	return buf
}

func DecodeVersion(buf []byte) (Version, error) {
	if len(buf) < 2 {
		return Version{}, ErrShortBuffer
	}
	v := Version{Major: buf[0], Minor: buf[1]}
	buf = buf[2:]
	var err error
	if v.User, buf, err = getString(buf); err != nil {
		return Version{}, err
	}
	if v.Device, buf, err = getString(buf); err != nil {
		return Version{}, err
	}
	if v.Channel, _, err = getUint32(buf); err != nil {
		return Version{}, err
	}
	return v, nil
}

// EncodeReason builds the optional reason-string payload of VERSION_OK and
// VERSION_BAD. An empty reason encodes as an empty string, not an absent one.
func EncodeReason(reason string) []byte {
	return putString(nil, reason)
}

func DecodeReason(buf []byte) (string, error) {
	s, _, err := getString(buf)
	return s, err
}

// EncodeCommand wraps a single UTF-8 command string with no additional
// framing: COMMAND payloads are the raw string bytes (§4.2).
func EncodeCommand(s string) []byte { return []byte(s) }

func DecodeCommand(buf []byte) string { return string(buf) }

// ObjectUpdate is the payload of an OBJECT frame.
type ObjectUpdate struct {
	ID      uint16
	Value   object.Value
	Confirm bool
}

func (o ObjectUpdate) Encode() []byte {
	buf := putUint16(nil, o.ID)
	buf = PutValue(buf, o.Value)
	if o.Confirm {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func DecodeObjectUpdate(buf []byte) (ObjectUpdate, error) {
	id, buf, err := getUint16(buf)
	if err != nil {
		return ObjectUpdate{}, err
	}
	val, buf, err := GetValue(buf)
	if err != nil {
		return ObjectUpdate{}, err
	}
	if len(buf) < 1 {
		return ObjectUpdate{}, ErrShortBuffer
	}
	return ObjectUpdate{ID: id, Value: val, Confirm: buf[0] != 0}, nil
}

// ObjectEntry is one (name, value, unit) triple inside an OBJECT_LIST.
type ObjectEntry struct {
	Name  string
	Value object.Value
	Unit  string
}

// EncodeObjectList serialises entries per §4.2: count + triples, the whole
// tuple block zlib-compressed and prefixed with its uncompressed length.
func EncodeObjectList(entries []ObjectEntry) ([]byte, error) {
	var raw []byte
	raw = putUint32(raw, uint32(len(entries)))
	for _, e := range entries {
		raw = putString(raw, e.Name)
		raw = PutValue(raw, e.Value)
		raw = putString(raw, e.Unit)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	out := putUint32(nil, uint32(len(raw)))
	out = append(out, compressed.Bytes()...)
	return out, nil
}

func DecodeObjectList(buf []byte) ([]ObjectEntry, error) {
	uncompressedLen, buf, err := getUint32(buf)
	if err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	raw := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, err
	}

	count, raw, err := getUint32(raw)
	if err != nil {
		return nil, err
	}
	entries := make([]ObjectEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var e ObjectEntry
		if e.Name, raw, err = getString(raw); err != nil {
			return nil, err
		}
		if e.Value, raw, err = GetValue(raw); err != nil {
			return nil, err
		}
		if e.Unit, raw, err = getString(raw); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// File is the payload of a FILE frame.
type File struct {
	Name string
	Data []byte
}

func (f File) Encode() []byte {
	buf := putString(nil, f.Name)
	buf = putUint32(buf, uint32(len(f.Data)))
	return append(buf, f.Data...)
}

func DecodeFile(buf []byte) (File, error) {
	name, buf, err := getString(buf)
	if err != nil {
		return File{}, err
	}
	size, buf, err := getUint32(buf)
	if err != nil {
		return File{}, err
	}
	if uint32(len(buf)) < size {
		return File{}, ErrShortBuffer
	}
	data := make([]byte, size)
	copy(data, buf[:size])
	return File{Name: name, Data: data}, nil
}

// DBQuery is the payload of a DB_QUERY frame.
type DBQuery struct {
	ID  uint32
	SQL string
}

func (q DBQuery) Encode() []byte {
	buf := putUint32(nil, q.ID)
	return putString(buf, q.SQL)
}

func DecodeDBQuery(buf []byte) (DBQuery, error) {
	id, buf, err := getUint32(buf)
	if err != nil {
		return DBQuery{}, err
	}
	sql, _, err := getString(buf)
	if err != nil {
		return DBQuery{}, err
	}
	return DBQuery{ID: id, SQL: sql}, nil
}

// DBResult is the payload of a DB_RESULT frame.
type DBResult struct {
	ID      uint32
	Columns []string
	Rows    [][]object.Value
}

func (r DBResult) Encode() []byte {
	buf := putUint32(nil, r.ID)
	buf = putUint32(buf, uint32(len(r.Columns)))
	for _, c := range r.Columns {
		buf = putString(buf, c)
	}
	buf = putUint32(buf, uint32(len(r.Rows)))
	for _, row := range r.Rows {
		for _, v := range row {
			buf = PutValue(buf, v)
		}
	}
	return buf
}

func DecodeDBResult(buf []byte) (DBResult, error) {
	id, buf, err := getUint32(buf)
	if err != nil {
		return DBResult{}, err
	}
	colCount, buf, err := getUint32(buf)
	if err != nil {
		return DBResult{}, err
	}
	cols := make([]string, colCount)
	for i := range cols {
		if cols[i], buf, err = getString(buf); err != nil {
			return DBResult{}, err
		}
	}
	rowCount, buf, err := getUint32(buf)
	if err != nil {
		return DBResult{}, err
	}
	rows := make([][]object.Value, rowCount)
	for i := range rows {
		row := make([]object.Value, colCount)
		for j := range row {
			if row[j], buf, err = GetValue(buf); err != nil {
				return DBResult{}, err
			}
		}
		rows[i] = row
	}
	return DBResult{ID: id, Columns: cols, Rows: rows}, nil
}

// SockConnect is the payload of a SOCK_CONNECT frame.
type SockConnect struct {
	ID   uint16
	Host string
	Port uint16
}

func (s SockConnect) Encode() []byte {
	buf := putUint16(nil, s.ID)
	buf = putString(buf, s.Host)
	return putUint16(buf, s.Port)
}

func DecodeSockConnect(buf []byte) (SockConnect, error) {
	id, buf, err := getUint16(buf)
	if err != nil {
		return SockConnect{}, err
	}
	host, buf, err := getString(buf)
	if err != nil {
		return SockConnect{}, err
	}
	port, _, err := getUint16(buf)
	if err != nil {
		return SockConnect{}, err
	}
	return SockConnect{ID: id, Host: host, Port: port}, nil
}

// SockData is the payload of a SOCK_DATA frame.
type SockData struct {
	ID   uint16
	Data []byte
}

func (s SockData) Encode() []byte {
	buf := putUint16(nil, s.ID)
	return append(buf, s.Data...)
}

func DecodeSockData(buf []byte) (SockData, error) {
	id, buf, err := getUint16(buf)
	if err != nil {
		return SockData{}, err
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	return SockData{ID: id, Data: data}, nil
}

// SockState enumerates the state byte of a SOCK_STATE frame.
type SockState byte

const (
	SockStateConnected SockState = iota
	SockStateDisconnected
	SockStateError
)

type SockStateFrame struct {
	ID    uint16
	State SockState
}

func (s SockStateFrame) Encode() []byte {
	buf := putUint16(nil, s.ID)
	return append(buf, byte(s.State))
}

func DecodeSockState(buf []byte) (SockStateFrame, error) {
	id, buf, err := getUint16(buf)
	if err != nil {
		return SockStateFrame{}, err
	}
	if len(buf) < 1 {
		return SockStateFrame{}, ErrShortBuffer
	}
	return SockStateFrame{ID: id, State: SockState(buf[0])}, nil
}
