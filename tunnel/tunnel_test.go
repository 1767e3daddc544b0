/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package tunnel

import (
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kazad/kazad/wire"
)

type fakeSink struct {
	mu     sync.Mutex
	data   [][]byte
	states []wire.SockState
	dataCh chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{dataCh: make(chan struct{}, 16)}
}

func (f *fakeSink) SendSockData(id uint16, data []byte) {
	f.mu.Lock()
	f.data = append(f.data, data)
	f.mu.Unlock()
	f.dataCh <- struct{}{}
}

func (f *fakeSink) SendSockState(id uint16, state wire.SockState) {
	f.mu.Lock()
	f.states = append(f.states, state)
	f.mu.Unlock()
}

func TestConnectDuplicateID(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go io.Copy(io.Discard, c)
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	sink := newFakeSink()
	m := NewManager(sink)
	require.NoError(t, m.Connect(1, "127.0.0.1", uint16(port)))
	require.ErrorIs(t, m.Connect(1, "127.0.0.1", uint16(port)), ErrDuplicateID)
	m.Close()
}

func TestDataEchoesBack(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		io.Copy(c, c)
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	sink := newFakeSink()
	m := NewManager(sink)
	require.NoError(t, m.Connect(7, "127.0.0.1", uint16(port)))
	require.NoError(t, m.Data(7, []byte("hello")))

	select {
	case <-sink.dataCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed data")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, []byte("hello"), sink.data[0])
	m.Close()
}
