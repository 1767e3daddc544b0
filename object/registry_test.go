/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryKeysInsertionOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(NewPlain("temp", "°C"))
	r.Register(NewPlain("humidity", "%"))
	r.Register(NewPlain("pressure", "hPa"))

	require.Equal(t, []string{"temp", "humidity", "pressure"}, r.Keys())
}

func TestRegistryLookupMissing(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("nope")
	require.False(t, ok)
}

func TestRegistryUniqueNames(t *testing.T) {
	r := NewRegistry()
	first := NewPlain("temp", "°C")
	second := NewPlain("temp", "K")
	r.Register(first)
	r.Register(second)

	require.Len(t, r.Keys(), 1)
	got, ok := r.Lookup("temp")
	require.True(t, ok)
	require.Same(t, first, got)
}

func TestRegistryObjectAddedFiresForLateRegistrations(t *testing.T) {
	r := NewRegistry()
	var added []string
	cancel := r.OnObjectAdded(func(o Object) {
		added = append(added, o.Name())
	})
	defer cancel()

	r.Register(NewPlain("a", ""))
	r.Register(NewPlain("b", ""))

	require.Equal(t, []string{"a", "b"}, added)
}

func TestRegistryAlarms(t *testing.T) {
	r := NewRegistry()
	r.RegisterAlarm(&Alarm{Title: "disk", Enable: true})
	r.RegisterAlarm(&Alarm{Title: "cpu", Enable: false})

	alarms := r.Alarms()
	require.Len(t, alarms, 2)
	require.Equal(t, "disk", alarms[0].Title)
}
