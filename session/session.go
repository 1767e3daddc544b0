/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package session implements the protocol session state machine (C3) and
// the per-connection object subscription engine (C5).
package session

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kazad/kazad/log"
	"github.com/kazad/kazad/object"
	"github.com/kazad/kazad/wire"
)

// State is the protocol session's position in the state machine of §4.3.
type State int

const (
	StateHandshaking State = iota
	StateAwaitVersion
	StateReady
	StateRejecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return `HANDSHAKING`
	case StateAwaitVersion:
		return `AWAIT_VERSION`
	case StateReady:
		return `READY`
	case StateRejecting:
		return `REJECTING`
	case StateClosed:
		return `CLOSED`
	}
	return `UNKNOWN`
}

// ProtocolMajor is the major version this server speaks (§4.3: major
// mismatch is fatal, minor mismatch is accepted).
const ProtocolMajor = 1

// rejectionGrace is the delay between VERSION_BAD and closing the socket
// (§4.3, §5's "only deliberate server-initiated delay").
const rejectionGrace = time.Second

// outboundQueueSize bounds the per-connection outbound queue (§5
// backpressure); a session exceeding it is dropped rather than let an
// unbounded queue grow without limit.
const outboundQueueSize = 1024

var (
	ErrQueueFull  = errors.New("session: outbound queue full")
	ErrNotReady   = errors.New("session: frame received before READY")
	ErrBadVersion = errors.New("session: incompatible major version")
)

// DB executes an ad-hoc query on behalf of a session (delegate for
// DB_QUERY, §4.3). Implemented by package dblink.
type DB interface {
	Query(sql string) (columns []string, rows [][]object.Value, err error)
}

// Tunnel multiplexes proxied outbound sockets on behalf of a session
// (delegate for SOCK_CONNECT/SOCK_DATA, §4.8). Implemented by package
// tunnel.
type Tunnel interface {
	Connect(id uint16, host string, port uint16) error
	Data(id uint16, data []byte) error
	Close()
}

// AppBundle supplies the application bundle served in response to the
// APP? command (§4.3). Out of scope per §1 ("the application-bundle
// checksum/download mechanism"); callers may supply a stub that always
// errors if the feature isn't needed.
type AppBundle interface {
	Bundle() (name string, data []byte, err error)
}

// Session is one accepted TCP/TLS connection and its protocol state.
type Session struct {
	id       uuid.UUID
	conn     net.Conn
	dec      *wire.Decoder
	log      *log.KVLogger
	registry *object.Registry
	db       DB
	tunnel   Tunnel
	app      AppBundle

	writeMu sync.Mutex
	enc     *wire.Encoder

	mu      sync.Mutex
	state   State
	user    string
	device  string
	channel uint32

	subs    map[string]*subscription // name -> subscription
	byIndex map[uint16]*subscription
	dmz     bool
	nextIdx uint16

	unregisterDMZ func()

	out     chan outboundFrame
	closeCh chan struct{}
	closeOnce sync.Once
}

type subscription struct {
	name   string
	index  uint16
	cancel func()
}

type outboundFrame struct {
	kind    wire.Kind
	payload []byte
}

// Deps bundles a Session's external collaborators.
type Deps struct {
	Registry *object.Registry
	DB       DB
	Tunnel   Tunnel
	App      AppBundle
	Logger   *log.Logger
}

// New constructs a Session for an already-accepted connection. The TLS
// handshake itself is the caller's responsibility (C4); by the time New is
// called the session is logically already past TLS_HANDSHAKING.
func New(conn net.Conn, deps Deps) *Session {
	id := uuid.New()
	kv := log.NewLoggerWithKV(deps.Logger, log.KV("session", id.String()))
	s := &Session{
		id:       id,
		conn:     conn,
		dec:      wire.NewDecoder(conn),
		enc:      wire.NewEncoder(conn),
		log:      kv,
		registry: deps.Registry,
		db:       deps.DB,
		tunnel:   deps.Tunnel,
		app:      deps.App,
		state:    StateAwaitVersion,
		subs:     make(map[string]*subscription),
		byIndex:  make(map[uint16]*subscription),
		out:      make(chan outboundFrame, outboundQueueSize),
		closeCh:  make(chan struct{}),
	}
	return s
}

// ID returns the session's correlation id.
func (s *Session) ID() uuid.UUID { return s.id }

// User returns the username presented at version negotiation, or "" before
// the session reaches READY.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetTunnel attaches the Tunnel multiplexer for this session. Server
// constructs it after New, since tunnel.Manager itself needs a reference
// back to the session as its Sink.
func (s *Session) SetTunnel(t Tunnel) { s.tunnel = t }

// Notify pushes a server-originated NOTIFY command to the client (§4.6).
func (s *Session) Notify(text string) {
	s.send(wire.KindCOMMAND, wire.EncodeCommand("NOTIFY:"+text))
}

// RequestPosition asks the client to report its GPS position (§4.6
// position?).
func (s *Session) RequestPosition() {
	s.send(wire.KindCOMMAND, wire.EncodeCommand("POSITION?"))
}

// Serve runs the session to completion: the outbound writer loop and the
// inbound read/dispatch loop, both exiting when the connection closes or a
// fatal protocol error occurs. Serve blocks until the session is done.
func (s *Session) Serve() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()

	s.readLoop()
	s.Close()
	wg.Wait()
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.closeCh:
			return
		case f := <-s.out:
			s.writeMu.Lock()
			err := s.enc.Write(f.kind, f.payload)
			s.writeMu.Unlock()
			if err != nil {
				s.log.Error("write failed", log.KVErr(err))
				s.Close()
				return
			}
		}
	}
}

// send enqueues a frame on the outbound queue (§5: a single outbound queue
// per connection, never blocking the writer). A full queue drops the
// connection rather than block the caller indefinitely.
func (s *Session) send(kind wire.Kind, payload []byte) {
	select {
	case s.out <- outboundFrame{kind: kind, payload: payload}:
	default:
		s.log.Error("outbound queue full, dropping session", log.KV("kind", kind.String()))
		s.Close()
	}
}

func (s *Session) readLoop() {
	for {
		f, err := s.dec.Next()
		if err != nil {
			return
		}
		if !s.dispatch(f) {
			return
		}
	}
}

// dispatch handles one inbound frame. It returns false when the session
// must close.
func (s *Session) dispatch(f wire.Frame) bool {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != StateReady {
		if f.Kind == wire.KindVERSION && state == StateAwaitVersion {
			return s.handleVersion(f.Payload)
		}
		// Any other frame before READY is a protocol violation (§4.3, §8
		// property 8).
		s.log.Error("frame before version handshake, closing", log.KV("kind", f.Kind.String()))
		return false
	}

	switch f.Kind {
	case wire.KindCOMMAND:
		return s.handleCommand(wire.DecodeCommand(f.Payload))
	case wire.KindOBJECT:
		return s.handleObject(f.Payload)
	case wire.KindDB_QUERY:
		return s.handleDBQuery(f.Payload)
	case wire.KindSOCK_CONNECT:
		return s.handleSockConnect(f.Payload)
	case wire.KindSOCK_DATA:
		return s.handleSockData(f.Payload)
	default:
		s.log.Error("unexpected frame kind in READY", log.KV("kind", f.Kind.String()))
		return false
	}
}

func (s *Session) handleVersion(payload []byte) bool {
	v, err := wire.DecodeVersion(payload)
	if err != nil {
		s.log.Error("malformed VERSION frame", log.KVErr(err))
		return false
	}
	if v.Major != ProtocolMajor {
		s.mu.Lock()
		s.state = StateRejecting
		s.mu.Unlock()
		s.send(wire.KindVERSION_BAD, wire.EncodeReason(fmt.Sprintf("unsupported major version %d", v.Major)))
		go func() {
			time.Sleep(rejectionGrace)
			s.Close()
		}()
		return true
	}

	s.mu.Lock()
	s.user, s.device, s.channel = v.User, v.Device, v.Channel
	s.state = StateReady
	s.mu.Unlock()

	s.log.AddKV(log.KV("user", v.User), log.KV("device", v.Device))
	s.send(wire.KindVERSION_OK, wire.EncodeReason(""))
	if s.app != nil {
		if name, data, err := s.app.Bundle(); err == nil {
			s.send(wire.KindFILE, wire.File{Name: name, Data: data}.Encode())
		}
	}
	return true
}

// Close tears down the session exactly once: cancels every subscription
// callback (breaking the object<->session reference cycle per §9), closes
// the tunnel, and closes the underlying socket.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)

		s.mu.Lock()
		subs := make([]*subscription, 0, len(s.subs))
		for _, sub := range s.subs {
			subs = append(subs, sub)
		}
		unreg := s.unregisterDMZ
		s.state = StateClosed
		s.mu.Unlock()

		for _, sub := range subs {
			sub.cancel()
		}
		if unreg != nil {
			unreg()
		}
		if s.tunnel != nil {
			s.tunnel.Close()
		}
		s.conn.Close()
	})
}
