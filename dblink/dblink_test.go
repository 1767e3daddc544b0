/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package dblink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kazad/kazad/object"
)

func TestDSN(t *testing.T) {
	c := Config{Username: "u", Password: "p", Hostname: "db.internal", Port: 3306, DBName: "kazad"}
	require.Equal(t, "u:p@tcp(db.internal:3306)/kazad", c.DSN())
}

func TestOpenRejectsUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"})
	require.Error(t, err)
}

func TestToValue(t *testing.T) {
	require.True(t, toValue(nil).Equal(object.Invalid()))
	require.True(t, toValue(int64(5)).Equal(object.Int(5)))
	require.True(t, toValue(3.5).Equal(object.Float(3.5)))
	require.True(t, toValue(true).Equal(object.Bool(true)))
	require.True(t, toValue([]byte("hi")).Equal(object.String("hi")))
	require.True(t, toValue("hi").Equal(object.String("hi")))
}
