/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package server

import (
	"crypto/tls"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kazad/kazad/log"
	"github.com/kazad/kazad/object"
	"github.com/kazad/kazad/pki"
)

func newTestServer(t *testing.T) (*Server, *pki.Authority) {
	t.Helper()
	a := pki.New(t.TempDir(), "localhost")
	require.NoError(t, a.Bootstrap("s3cret"))

	srv := New(Config{
		Authority:      a,
		SSLKeyPassword: "s3cret",
		Registry:       object.NewRegistry(),
		Logger:         log.NewDiscardLogger(),
		SSLPort:        0,
		ControlPort:    0,
	})
	require.NoError(t, srv.ListenMain())
	require.NoError(t, srv.ListenControl())
	go srv.ServeMain()
	t.Cleanup(srv.Close)
	return srv, a
}

func caPool(t *testing.T, a *pki.Authority) *x509.CertPool {
	t.Helper()
	pem, err := a.CACertPEM()
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(pem))
	return pool
}

func TestMainListenerRejectsMissingClientCert(t *testing.T) {
	srv, a := newTestServer(t)

	conn, err := tls.Dial("tcp", srv.mainLn.Addr().String(), &tls.Config{
		RootCAs:    caPool(t, a),
		ServerName: "localhost",
	})
	if err == nil {
		// Under TLS 1.3 the client's handshake completes before the server
		// checks the client certificate; the rejection shows up on the
		// first read.
		defer conn.Close()
		_, err = conn.Read(make([]byte, 1))
	}
	require.Error(t, err)
}

func TestMainListenerAcceptsValidClientCert(t *testing.T) {
	srv, a := newTestServer(t)
	require.NoError(t, a.GenerateClientCertificate("alice"))

	certPEM, err := a.ClientCertPEM("alice")
	require.NoError(t, err)
	keyPEM, err := a.ClientKeyPEM("alice")
	require.NoError(t, err)
	clientCert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	conn, err := tls.Dial("tcp", srv.mainLn.Addr().String(), &tls.Config{
		RootCAs:      caPool(t, a),
		ServerName:   "localhost",
		Certificates: []tls.Certificate{clientCert},
	})
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return len(srv.Sessions()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestControlListenerAcceptsWithoutClientCert(t *testing.T) {
	srv, a := newTestServer(t)

	conn, err := tls.Dial("tcp", srv.controlLn.Addr().String(), &tls.Config{
		RootCAs:    caPool(t, a),
		ServerName: "localhost",
	})
	require.NoError(t, err)
	conn.Close()
}
