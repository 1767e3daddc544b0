/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package store implements the persisted key-value settings store backing
// "internal" objects (§3, §6): values round-trip through the dynamic
// scalar type, keyed by object name.
package store

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kazad/kazad/object"
)

var bucketName = []byte("objects")

// encoded value layout: 1 tag byte + type-specific payload, mirroring
// wire.PutValue/GetValue but kept independent of the wire package so the
// on-disk format doesn't change if the network format ever does.
const (
	tagInvalid byte = 0
	tagInt     byte = 1
	tagFloat   byte = 2
	tagBool    byte = 3
	tagString  byte = 4
	tagTime    byte = 5
)

var ErrCorrupt = errors.New("store: corrupt value record")

// Store is a bbolt-backed implementation of object.Store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt database at path and ensures
// the settings bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save persists v under name, overwriting any prior value.
func (s *Store) Save(name string, v object.Value) error {
	enc := encodeValue(v)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(name), enc)
	})
}

// Load returns the value stored under name, if any.
func (s *Store) Load(name string) (object.Value, bool) {
	var out object.Value
	var found bool
	s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(name))
		if raw == nil {
			return nil
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil
		}
		out, found = v, true
		return nil
	})
	return out, found
}

func encodeValue(v object.Value) []byte {
	switch v.Kind {
	case object.KindInt:
		buf := make([]byte, 9)
		buf[0] = tagInt
		binary.BigEndian.PutUint64(buf[1:], uint64(v.Int()))
		return buf
	case object.KindFloat:
		buf := make([]byte, 9)
		buf[0] = tagFloat
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v.Float()))
		return buf
	case object.KindBool:
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		return []byte{tagBool, b}
	case object.KindString:
		return append([]byte{tagString}, v.Str()...)
	case object.KindTimestamp:
		buf := make([]byte, 9)
		buf[0] = tagTime
		binary.BigEndian.PutUint64(buf[1:], uint64(v.Time().UnixMilli()))
		return buf
	default:
		return []byte{tagInvalid}
	}
}

func decodeValue(buf []byte) (object.Value, error) {
	if len(buf) < 1 {
		return object.Value{}, ErrCorrupt
	}
	tag, rest := buf[0], buf[1:]
	switch tag {
	case tagInvalid:
		return object.Invalid(), nil
	case tagInt:
		if len(rest) != 8 {
			return object.Value{}, ErrCorrupt
		}
		return object.Int(int64(binary.BigEndian.Uint64(rest))), nil
	case tagFloat:
		if len(rest) != 8 {
			return object.Value{}, ErrCorrupt
		}
		return object.Float(math.Float64frombits(binary.BigEndian.Uint64(rest))), nil
	case tagBool:
		if len(rest) != 1 {
			return object.Value{}, ErrCorrupt
		}
		return object.Bool(rest[0] != 0), nil
	case tagString:
		return object.String(string(rest)), nil
	case tagTime:
		if len(rest) != 8 {
			return object.Value{}, ErrCorrupt
		}
		ms := int64(binary.BigEndian.Uint64(rest))
		return object.Timestamp(time.UnixMilli(ms)), nil
	default:
		return object.Value{}, ErrCorrupt
	}
}
