/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package wire implements the binary frame protocol (C2): a stream of
// self-delimiting, length-prefixed, kind-tagged frames, plus the tagged
// dynamic scalar value format they carry.
package wire

import "errors"

// Kind identifies the payload that follows a frame's length prefix. Names
// mirror the protocol identifiers of §4.2, not Go-style constant casing,
// to keep the wire vocabulary recognizable against the spec.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVERSION
	KindVERSION_OK
	KindVERSION_BAD
	KindCOMMAND
	KindOBJECT
	KindOBJECT_LIST
	KindFILE
	KindDB_QUERY
	KindDB_RESULT
	KindSOCK_CONNECT
	KindSOCK_DATA
	KindSOCK_STATE
)

func (k Kind) String() string {
	switch k {
	case KindVERSION:
		return `VERSION`
	case KindVERSION_OK:
		return `VERSION_OK`
	case KindVERSION_BAD:
		return `VERSION_BAD`
	case KindCOMMAND:
		return `COMMAND`
	case KindOBJECT:
		return `OBJECT`
	case KindOBJECT_LIST:
		return `OBJECT_LIST`
	case KindFILE:
		return `FILE`
	case KindDB_QUERY:
		return `DB_QUERY`
	case KindDB_RESULT:
		return `DB_RESULT`
	case KindSOCK_CONNECT:
		return `SOCK_CONNECT`
	case KindSOCK_DATA:
		return `SOCK_DATA`
	case KindSOCK_STATE:
		return `SOCK_STATE`
	}
	return `UNKNOWN`
}

// DefaultMaxFrameSize is the hard cap on a single frame's encoded length
// (§4.2: "implementers should pick a value; 16 MiB is reasonable").
const DefaultMaxFrameSize = 16 * 1024 * 1024

var (
	ErrFrameTooLarge  = errors.New("wire: frame exceeds maximum size")
	ErrShortBuffer    = errors.New("wire: buffer too short to decode")
	ErrUnknownKind    = errors.New("wire: unknown frame kind")
	ErrMalformedFrame = errors.New("wire: malformed frame payload")
)

// Frame is a single decoded wire unit: a kind tag and its raw, not yet
// interpreted, payload bytes.
type Frame struct {
	Kind    Kind
	Payload []byte
}
