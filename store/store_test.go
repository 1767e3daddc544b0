/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kazad/kazad/object"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTest(t)

	cases := map[string]object.Value{
		"i": object.Int(-7),
		"f": object.Float(3.5),
		"b": object.Bool(true),
		"s": object.String("hi"),
		"t": object.Timestamp(time.UnixMilli(1_700_000_000_000).UTC()),
	}
	for name, v := range cases {
		require.NoError(t, s.Save(name, v))
	}
	for name, want := range cases {
		got, ok := s.Load(name)
		require.True(t, ok)
		require.True(t, want.Equal(got), "mismatch for %s", name)
	}
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	s := openTest(t)
	_, ok := s.Load("nope")
	require.False(t, ok)
}

func TestSaveOverwrites(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.Save("x", object.Int(1)))
	require.NoError(t, s.Save("x", object.Int(2)))
	got, ok := s.Load("x")
	require.True(t, ok)
	require.True(t, got.Equal(object.Int(2)))
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save("setpoint", object.Float(19.0)))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, ok := s2.Load("setpoint")
	require.True(t, ok)
	require.True(t, got.Equal(object.Float(19.0)))
}
