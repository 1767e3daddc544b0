/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package control

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kazad/kazad/log"
	"github.com/kazad/kazad/object"
	"github.com/kazad/kazad/pki"
	"github.com/kazad/kazad/session"
)

type noSessions struct{}

func (noSessions) Sessions() []*session.Session { return nil }

func newTestService(t *testing.T) (*Service, *object.Registry) {
	t.Helper()
	a := pki.New(t.TempDir(), "kazad.example.test")
	require.NoError(t, a.Bootstrap("s3cret"))

	reg := object.NewRegistry()
	return &Service{
		Authority:     a,
		Registry:      reg,
		Sessions:      noSessions{},
		AdminPassword: "adminpw",
		SSLHost:       "kazad.example.test",
		SSLPort:       1756,
		Logger:        log.NewDiscardLogger(),
	}, reg
}

func pipeHandle(svc *Service) (net.Conn, func()) {
	server, client := net.Pipe()
	go svc.Handle(server)
	return client, func() { client.Close() }
}

func TestClientConfBadPasswordCloses(t *testing.T) {
	svc, _ := newTestService(t)
	client, cleanup := pipeHandle(svc)
	defer cleanup()

	_, err := client.Write([]byte("clientconf? wrongpw bob bobpw\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ERROR: Authentication failed\n", line)

	_, err = reader.ReadByte()
	require.Error(t, err)
}

func TestClientConfMalformedCloses(t *testing.T) {
	svc, _ := newTestService(t)
	client, cleanup := pipeHandle(svc)
	defer cleanup()

	_, err := client.Write([]byte("clientconf? onlyonearg\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "ERROR: Invalid format"))

	_, err = reader.ReadByte()
	require.Error(t, err)
}

func TestClientConfSuccessReturnsBundle(t *testing.T) {
	svc, _ := newTestService(t)
	client, cleanup := pipeHandle(svc)
	defer cleanup()

	_, err := client.Write([]byte("clientconf? adminpw bob bobpw\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	header, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "<?xml version='1.0'?>\n", header)

	var buf strings.Builder
	for {
		line, err := reader.ReadString('\n')
		buf.WriteString(line)
		if err != nil {
			break
		}
	}
	require.Contains(t, buf.String(), "<param>")
	require.Contains(t, buf.String(), "<sslhost>kazad.example.test</sslhost>")
	require.Contains(t, buf.String(), "<sslport>1756</sslport>")
	require.Contains(t, buf.String(), "BEGIN CERTIFICATE")

	require.True(t, svc.Authority.HasClientCertificate("bob"))
}

func TestObjQueryByName(t *testing.T) {
	svc, reg := newTestService(t)
	reg.Register(object.NewPlain("speed", "kts"))
	obj, _ := reg.Lookup("speed")
	obj.ChangeValue(object.Float(12.5), false)

	client, cleanup := pipeHandle(svc)
	defer cleanup()

	_, err := client.Write([]byte("obj? speed\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "speed")
	require.Contains(t, line, "kts")

	blank, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "\n", blank)
}

func TestRefreshInvalidatesObject(t *testing.T) {
	svc, reg := newTestService(t)
	reg.Register(object.NewPlain("speed", "kts"))
	obj, _ := reg.Lookup("speed")
	obj.ChangeValue(object.Float(12.5), false)

	client, cleanup := pipeHandle(svc)
	defer cleanup()

	_, err := client.Write([]byte("refresh speed\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "OK\n", line)
	require.False(t, obj.Value().Valid())
}
