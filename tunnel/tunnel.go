/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package tunnel implements the proxied-socket multiplexer (C8): a client
// asks the server to open an outbound TCP socket and forward bytes in both
// directions through the client's frame channel.
package tunnel

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/kazad/kazad/wire"
)

var ErrDuplicateID = errors.New("tunnel: duplicate socket id")

// Sink is the session-side callback surface a Manager reports through:
// bytes read from an outbound socket, and socket state transitions
// (§4.8).
type Sink interface {
	SendSockData(id uint16, data []byte)
	SendSockState(id uint16, state wire.SockState)
}

// Manager owns the set of outbound sockets tunnelled for a single session.
// One Manager is created per session and discarded with it.
type Manager struct {
	sink Sink

	mu      sync.Mutex
	sockets map[uint16]net.Conn
}

func NewManager(sink Sink) *Manager {
	return &Manager{sink: sink, sockets: make(map[uint16]net.Conn)}
}

// Connect opens a new outbound TCP connection and remembers it under id.
// A duplicate id is a protocol violation (§4.8): log and drop, returning
// ErrDuplicateID so the caller can log it.
func (m *Manager) Connect(id uint16, host string, port uint16) error {
	m.mu.Lock()
	if _, exists := m.sockets[id]; exists {
		m.mu.Unlock()
		return ErrDuplicateID
	}
	m.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		m.sink.SendSockState(id, wire.SockStateError)
		return err
	}

	m.mu.Lock()
	m.sockets[id] = conn
	m.mu.Unlock()

	m.sink.SendSockState(id, wire.SockStateConnected)
	go m.pump(id, conn)
	return nil
}

// pump copies bytes read from the outbound socket back to the client as
// SOCK_DATA frames until the socket closes, then reports SOCK_STATE
// disconnected (§4.8).
func (m *Manager) pump(id uint16, conn net.Conn) {
	buf := make([]byte, 32*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			m.sink.SendSockData(id, data)
		}
		if err != nil {
			break
		}
	}
	m.mu.Lock()
	delete(m.sockets, id)
	m.mu.Unlock()
	conn.Close()
	m.sink.SendSockState(id, wire.SockStateDisconnected)
}

// Data writes client-originated bytes to the outbound socket named by id.
func (m *Manager) Data(id uint16, data []byte) error {
	m.mu.Lock()
	conn, ok := m.sockets[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("tunnel: unknown socket id %d", id)
	}
	_, err := conn.Write(data)
	return err
}

// Close tears down every outbound socket owned by this manager, used when
// the owning session closes (§9 cycle-breaking).
func (m *Manager) Close() {
	m.mu.Lock()
	sockets := m.sockets
	m.sockets = make(map[uint16]net.Conn)
	m.mu.Unlock()

	for _, c := range sockets {
		c.Close()
	}
}
