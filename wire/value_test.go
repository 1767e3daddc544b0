/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kazad/kazad/object"
)

func TestValueRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123).UTC()
	cases := []object.Value{
		object.Invalid(),
		object.Int(0),
		object.Int(-42),
		object.Int(1 << 40),
		object.Float(0),
		object.Float(-3.14159),
		object.Bool(true),
		object.Bool(false),
		object.String(""),
		object.String("hello, 世界"),
		object.Timestamp(now),
	}

	for _, v := range cases {
		buf := PutValue(nil, v)
		got, rest, err := GetValue(buf)
		require.NoError(t, err)
		require.Empty(t, rest)
		require.True(t, v.Equal(got), "round trip mismatch for %v kind %v", v, v.Kind)
	}
}

func TestValueShortBuffer(t *testing.T) {
	_, _, err := GetValue(nil)
	require.Error(t, err)

	buf := PutValue(nil, object.Int(5))
	_, _, err = GetValue(buf[:len(buf)-1])
	require.Error(t, err)
}
