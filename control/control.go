/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package control implements the control/provisioning service (C6): a
// line-oriented text protocol on the server-authenticated-only listener,
// used for issuing client credentials and administering the live object
// set.
package control

import (
	"bufio"
	"crypto/subtle"
	"encoding/xml"
	"fmt"
	"net"
	"strings"

	"github.com/kazad/kazad/log"
	"github.com/kazad/kazad/object"
	"github.com/kazad/kazad/pki"
	"github.com/kazad/kazad/session"
)

const objNameColumns = 80

// SessionSource supplies the live session set the control service
// broadcasts notify/position? commands through.
type SessionSource interface {
	Sessions() []*session.Session
}

// Service serves control connections; each Handle call services one
// connection, and Handle is safe to call concurrently for distinct
// connections.
type Service struct {
	Authority     *pki.Authority
	Registry      *object.Registry
	Sessions      SessionSource
	AdminPassword string
	SSLHost       string
	SSLPort       int
	Logger        *log.Logger
}

// Handle services one control connection until the client disconnects, a
// clientconf? bundle has been sent, or a protocol/authentication error
// forces a close (§4.6).
func (s *Service) Handle(conn net.Conn) {
	defer conn.Close()

	kv := log.NewLoggerWithKV(s.Logger, log.KV("remote", conn.RemoteAddr().String()))
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if !s.dispatch(conn, kv, line) {
			return
		}
	}
}

func (s *Service) dispatch(conn net.Conn, kv *log.KVLogger, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "clientconf?":
		return s.handleClientConf(conn, kv, fields)
	case "obj?":
		return s.handleObjQuery(conn, fields)
	case "refresh":
		return s.handleRefresh(conn, fields)
	case "notify":
		return s.handleNotify(conn, line)
	case "position?":
		return s.handlePosition(conn)
	default:
		kv.Warn("unrecognised control command", log.KV("verb", fields[0]))
		return true
	}
}

type credentialBundle struct {
	XMLName     xml.Name `xml:"param"`
	SSLHost     string   `xml:"sslhost"`
	SSLPort     int      `xml:"sslport"`
	Certificate string   `xml:"certificate"`
	Key         string   `xml:"key"`
	CA          string   `xml:"ca"`
}

// handleClientConf performs admin authentication and, on success, ensures
// a client certificate exists for the requested user (§4.6, §4.7). The
// connection is closed after the bundle is sent.
func (s *Service) handleClientConf(conn net.Conn, kv *log.KVLogger, fields []string) bool {
	if len(fields) != 4 {
		fmt.Fprint(conn, "ERROR: Invalid format, expected clientconf? <adminpw> <user> <userpw>\n")
		return false
	}
	adminPW, user := fields[1], fields[2]

	if subtle.ConstantTimeCompare([]byte(adminPW), []byte(s.AdminPassword)) != 1 {
		kv.Warn("control auth failed", log.KV("user", user))
		fmt.Fprint(conn, "ERROR: Authentication failed\n")
		return false
	}

	if !s.Authority.HasClientCertificate(user) {
		if err := s.Authority.GenerateClientCertificate(user); err != nil {
			kv.Error("failed to generate client certificate", log.KV("user", user), log.KVErr(err))
			fmt.Fprint(conn, "ERROR: Certificate generation failed\n")
			return false
		}
	}

	certPEM, err := s.Authority.ClientCertPEM(user)
	if err != nil {
		kv.Error("failed to read client certificate", log.KVErr(err))
		return false
	}
	keyPEM, err := s.Authority.ClientKeyPEM(user)
	if err != nil {
		kv.Error("failed to read client key", log.KVErr(err))
		return false
	}
	caPEM, err := s.Authority.CACertPEM()
	if err != nil {
		kv.Error("failed to read CA certificate", log.KVErr(err))
		return false
	}

	bundle := credentialBundle{
		SSLHost:     s.SSLHost,
		SSLPort:     s.SSLPort,
		Certificate: string(certPEM),
		Key:         string(keyPEM),
		CA:          string(caPEM),
	}
	out, err := xml.MarshalIndent(bundle, "", "  ")
	if err != nil {
		kv.Error("failed to marshal credential bundle", log.KVErr(err))
		return false
	}
	fmt.Fprint(conn, "<?xml version='1.0'?>\n")
	conn.Write(out)
	fmt.Fprint(conn, "\n")
	return false
}

// handleObjQuery answers obj? and obj? <name> (§4.6).
func (s *Service) handleObjQuery(conn net.Conn, fields []string) bool {
	if len(fields) > 2 {
		fmt.Fprint(conn, "\n")
		return true
	}
	if len(fields) == 2 {
		if obj, ok := s.Registry.Lookup(fields[1]); ok {
			fmt.Fprintln(conn, formatObjLine(obj))
		}
		fmt.Fprint(conn, "\n")
		return true
	}
	for _, name := range s.Registry.Keys() {
		obj, ok := s.Registry.Lookup(name)
		if !ok {
			continue
		}
		fmt.Fprintln(conn, formatObjLine(obj))
	}
	fmt.Fprint(conn, "\n")
	return true
}

func formatObjLine(obj object.Object) string {
	return fmt.Sprintf("%-*s%s %s", objNameColumns, obj.Name(), obj.Value().String(), obj.Unit())
}

// handleRefresh forces an object to invalid, fanning that out to
// subscribers exactly as any other change would (§4.6).
func (s *Service) handleRefresh(conn net.Conn, fields []string) bool {
	if len(fields) != 2 {
		fmt.Fprint(conn, "ERROR: Invalid format, expected refresh <name>\n")
		return true
	}
	if obj, ok := s.Registry.Lookup(fields[1]); ok {
		obj.ChangeValue(object.Invalid(), false)
	}
	fmt.Fprint(conn, "OK\n")
	return true
}

// handleNotify broadcasts a NOTIFY command to all sessions, or to sessions
// belonging to a single user when the text is prefixed "/user " (lowercase
// match, §4.6).
func (s *Service) handleNotify(conn net.Conn, line string) bool {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "notify"))
	targetUser, text := "", rest
	if strings.HasPrefix(rest, "/") {
		if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			targetUser = strings.ToLower(rest[1:sp])
			text = rest[sp+1:]
		}
	}
	for _, sess := range s.Sessions.Sessions() {
		if targetUser != "" && strings.ToLower(sess.User()) != targetUser {
			continue
		}
		sess.Notify(text)
	}
	fmt.Fprint(conn, "OK\n")
	return true
}

// handlePosition asks every connected client to report its GPS position
// (§4.6).
func (s *Service) handlePosition(conn net.Conn) bool {
	for _, sess := range s.Sessions.Sessions() {
		sess.RequestPosition()
	}
	fmt.Fprint(conn, "OK\n")
	return true
}

// Serve runs the accept loop on ln until it's closed, handling each
// connection on its own goroutine.
func Serve(ln net.Listener, svc *Service) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go svc.Handle(conn)
	}
}
