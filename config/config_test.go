/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `
[ssl]
port=1756
hostname=kazad.example.com
keypassword=hunter2

[control]
port=1757
enable=true
password=adminpw

[Client]
host=kaza.example.com

[qml]
server=https://qml.example.com/server.qml
client=https://qml.example.com/client.qml

[database]
driver=mysql
dbName=kazad
hostname=db.internal
port=3306
username=kazad
password=dbpw
`

func TestLoadBytesParsesAllSections(t *testing.T) {
	c, err := LoadBytes([]byte(sample))
	require.NoError(t, err)

	require.Equal(t, 1756, c.SSL.Port)
	require.Equal(t, "kazad.example.com", c.SSL.Hostname)
	require.Equal(t, "hunter2", c.SSL.KeyPassword)

	require.Equal(t, 1757, c.Control.Port)
	require.True(t, c.Control.Enable)
	require.Equal(t, "adminpw", c.Control.Password)

	require.Equal(t, "kaza.example.com", c.Client.Host)

	require.Equal(t, "https://qml.example.com/server.qml", c.QML.Server)
	require.Equal(t, "https://qml.example.com/client.qml", c.QML.Client)

	require.Equal(t, "mysql", c.Database.Driver)
	require.Equal(t, "kazad", c.Database.DBName)
	require.Equal(t, "db.internal", c.Database.Hostname)
	require.Equal(t, 3306, c.Database.Port)
	require.Equal(t, "kazad", c.Database.Username)
	require.Equal(t, "dbpw", c.Database.Password)

	require.True(t, c.DatabaseEnabled())
	require.NoError(t, c.Verify())
}

func TestLoadDefaults(t *testing.T) {
	c, err := LoadBytes([]byte("[ssl]\nhostname=kazad.example.com\n"))
	require.NoError(t, err)

	require.Equal(t, defaultSSLPort, c.SSL.Port)
	require.Equal(t, defaultDBDriver, c.Database.Driver)
	require.False(t, c.DatabaseEnabled())
	require.NoError(t, c.Verify())
}

func TestVerifyRequiresHostname(t *testing.T) {
	c, err := LoadBytes([]byte("[control]\nenable=true\n"))
	require.NoError(t, err)
	require.ErrorIs(t, c.Verify(), ErrMissingHostname)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/kazad.conf")
	require.Error(t, err)
}
