/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package object implements the process-wide object registry (C1) and the
// dynamic scalar value carried by every object (the "tagged value" of the
// glossary).
package object

import (
	"fmt"
	"time"
)

// Kind enumerates the concrete variants of a dynamic scalar value. Absent
// or invalid is a distinct variant, never a nil/zero Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return `invalid`
	case KindInt:
		return `int`
	case KindFloat:
		return `float`
	case KindBool:
		return `bool`
	case KindString:
		return `string`
	case KindTimestamp:
		return `timestamp`
	}
	return `unknown`
}

// Value is the dynamic scalar carried by OBJECT and DB_RESULT frames.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	t    time.Time
}

// Invalid returns the absent/invalid variant.
func Invalid() Value { return Value{Kind: KindInvalid} }

func Int(v int64) Value        { return Value{Kind: KindInt, i: v} }
func Float(v float64) Value    { return Value{Kind: KindFloat, f: v} }
func Bool(v bool) Value        { return Value{Kind: KindBool, b: v} }
func String(v string) Value    { return Value{Kind: KindString, s: v} }
func Timestamp(v time.Time) Value { return Value{Kind: KindTimestamp, t: v.UTC()} }

func (v Value) Valid() bool { return v.Kind != KindInvalid }

func (v Value) Int() int64          { return v.i }
func (v Value) Float() float64      { return v.f }
func (v Value) Bool() bool          { return v.b }
func (v Value) Str() string         { return v.s }
func (v Value) Time() time.Time     { return v.t }

// Equal reports whether two values carry the identical variant and payload.
// Used by the round-trip property tests (testable property 1).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInvalid:
		return true
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindTimestamp:
		return v.t.Equal(o.t)
	}
	return false
}

// String renders the value the way the control port's "obj?" listing does
// (§4.6): a plain stringification with no type decoration.
func (v Value) String() string {
	switch v.Kind {
	case KindInvalid:
		return ``
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		if v.b {
			return `true`
		}
		return `false`
	case KindString:
		return v.s
	case KindTimestamp:
		return v.t.Format(time.RFC3339)
	}
	return ``
}
