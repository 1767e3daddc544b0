/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package server implements the connection manager (C4): the mutual-TLS
// main listener and the server-authenticated-only control listener, plus
// the tracked-session set that backs control-port broadcasts.
package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/kazad/kazad/log"
	"github.com/kazad/kazad/object"
	"github.com/kazad/kazad/pki"
	"github.com/kazad/kazad/session"
	"github.com/kazad/kazad/tunnel"
)

// Config bundles what the Server needs to stand up both listeners.
type Config struct {
	Authority      *pki.Authority
	SSLKeyPassword string
	Registry       *object.Registry
	DB             session.DB
	App            session.AppBundle
	Logger         *log.Logger

	SSLPort     int
	ControlPort int
}

// Server owns the two listeners described in §4.4 and §6: a mutual-TLS
// main listener requiring a client certificate chaining to the server's
// own CA, and a server-only-TLS control listener. It also tracks live
// sessions so the control service can broadcast notify/position commands.
type Server struct {
	cfg Config
	log *log.Logger

	mainLn    net.Listener
	controlLn net.Listener

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
}

// New prepares a Server. Call ListenMain and ServeMain (and ListenControl
// for the control port) to start accepting.
func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		sessions: make(map[uuid.UUID]*session.Session),
	}
}

func (s *Server) mainTLSConfig() (*tls.Config, error) {
	caPEM, err := s.cfg.Authority.CACertPEM()
	if err != nil {
		return nil, fmt.Errorf("server: loading CA for client verification: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("server: CA certificate is not valid PEM")
	}

	cert, err := s.serverKeyPair()
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (s *Server) controlTLSConfig() (*tls.Config, error) {
	cert, err := s.serverKeyPair()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (s *Server) serverKeyPair() (tls.Certificate, error) {
	certPEM, err := s.cfg.Authority.ServerCertPEM()
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("server: loading server certificate: %w", err)
	}
	keyPEM, err := s.cfg.Authority.ServerKeyPEMDecrypted(s.cfg.SSLKeyPassword)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("server: loading server key: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("server: building key pair: %w", err)
	}
	return cert, nil
}

// ListenMain opens the mutual-TLS main listener on cfg.SSLPort.
func (s *Server) ListenMain() error {
	tlsCfg, err := s.mainTLSConfig()
	if err != nil {
		return err
	}
	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", s.cfg.SSLPort), tlsCfg)
	if err != nil {
		return fmt.Errorf("server: main listener: %w", err)
	}
	s.mainLn = ln
	return nil
}

// ListenControl opens the server-only-TLS control listener on
// cfg.ControlPort.
func (s *Server) ListenControl() error {
	tlsCfg, err := s.controlTLSConfig()
	if err != nil {
		return err
	}
	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", s.cfg.ControlPort), tlsCfg)
	if err != nil {
		return fmt.Errorf("server: control listener: %w", err)
	}
	s.controlLn = ln
	return nil
}

// ServeMain runs the main accept loop until the listener closes. Each
// accepted connection becomes a session.Session tracked for broadcast and
// untracked on close.
func (s *Server) ServeMain() error {
	for {
		conn, err := s.mainLn.Accept()
		if err != nil {
			return err
		}
		go s.handleMain(conn)
	}
}

func (s *Server) handleMain(conn net.Conn) {
	sess := session.New(conn, session.Deps{
		Registry: s.cfg.Registry,
		DB:       s.cfg.DB,
		App:      s.cfg.App,
		Logger:   s.log,
	})
	sess.SetTunnel(tunnel.NewManager(sess))

	s.track(sess)
	defer s.untrack(sess)

	sess.Serve()
}

func (s *Server) track(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
}

func (s *Server) untrack(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.ID())
}

// Sessions returns a snapshot of currently tracked sessions, for the
// control service's notify/position? broadcast.
func (s *Server) Sessions() []*session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// ControlListener exposes the control listener for the control package's
// accept loop.
func (s *Server) ControlListener() net.Listener { return s.controlLn }

// Close closes both listeners. In-flight sessions are closed by their own
// Serve loops when the underlying connection errors out; Close does not
// forcibly sever live connections.
func (s *Server) Close() {
	if s.mainLn != nil {
		s.mainLn.Close()
	}
	if s.controlLn != nil {
		s.controlLn.Close()
	}
}

// Shutdown closes both listeners and forcibly closes every tracked
// session, for a bounded graceful-shutdown sequence.
func (s *Server) Shutdown() {
	s.Close()
	s.mu.Lock()
	sessions := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}
