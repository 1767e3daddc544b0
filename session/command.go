/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package session

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/kazad/kazad/log"
	"github.com/kazad/kazad/wire"
)

// handleCommand parses a COMMAND frame as VERB[:ARG1[:ARG2...]] and
// dispatches per the table in §4.3.
func (s *Session) handleCommand(cmd string) bool {
	fields := strings.Split(cmd, ":")
	verb := fields[0]

	switch verb {
	case "APP?":
		if s.app != nil {
			if name, data, err := s.app.Bundle(); err == nil {
				s.send(wire.KindFILE, wire.File{Name: name, Data: data}.Encode())
			} else {
				s.log.Error("application bundle unavailable", log.KVErr(err))
			}
		}
	case "OBJLIST?":
		payload, err := s.snapshot()
		if err != nil {
			s.log.Error("failed to build object snapshot", log.KVErr(err))
			return true
		}
		s.send(wire.KindOBJECT_LIST, payload)
	case "OBJ":
		if len(fields) != 3 {
			s.log.Error("malformed OBJ command", log.KV("cmd", cmd))
			return true
		}
		name, idxStr := fields[1], fields[2]
		idx, err := parseUint16(idxStr)
		if err != nil {
			s.log.Error("malformed OBJ index", log.KV("cmd", cmd))
			return true
		}
		obj, ok := s.registry.Lookup(name)
		if !ok {
			s.log.Error("OBJ subscribe for unknown object", log.KV("name", name))
			return true
		}
		s.subscribe(obj, idx, true)
	case "DMZ":
		s.enableDMZ()
		s.send(wire.KindCOMMAND, wire.EncodeCommand("DMZ:OK"))
	case "LISTOBJECTS":
		s.send(wire.KindCOMMAND, wire.EncodeCommand("LISTOBJECTS:"+strings.Join(s.registry.Keys(), ",")))
	case "ALARMS":
		user := ""
		if len(fields) > 1 {
			user = fields[1]
		}
		s.send(wire.KindCOMMAND, wire.EncodeCommand("ALARM:"+s.alarmDigest(user)))
	case "PING":
		s.send(wire.KindCOMMAND, wire.EncodeCommand("PONG"))
	case "NOTIFY", "POSITION?":
		// Server-originated only; ignored if received from a client (§4.3).
	default:
		s.log.Warn("unrecognised command verb", log.KV("verb", verb))
	}
	return true
}

// alarmDigest builds the newline-separated digest of enabled alarms (all of
// them; per-user filtering of alarms is not specified beyond the verb
// taking a user argument, so user is accepted but unused pending a richer
// alarm model), compresses it and returns the base64 text (§4.3).
func (s *Session) alarmDigest(user string) string {
	_ = user
	var lines []string
	for _, a := range s.registry.Alarms() {
		if !a.Enable {
			continue
		}
		lines = append(lines, a.Title+": "+a.Message)
	}
	raw := strings.Join(lines, "\n")

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte(raw))
	zw.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func (s *Session) handleDBQuery(payload []byte) bool {
	q, err := wire.DecodeDBQuery(payload)
	if err != nil {
		s.log.Error("malformed DB_QUERY frame", log.KVErr(err))
		return false
	}
	if s.db == nil {
		return true
	}
	go func() {
		cols, rows, err := s.db.Query(q.SQL)
		if err != nil {
			// Backend error: log and send nothing (§7).
			s.log.Error("query failed", log.KV("id", q.ID), log.KVErr(err))
			return
		}
		s.send(wire.KindDB_RESULT, wire.DBResult{ID: q.ID, Columns: cols, Rows: rows}.Encode())
	}()
	return true
}

func (s *Session) handleSockConnect(payload []byte) bool {
	c, err := wire.DecodeSockConnect(payload)
	if err != nil {
		s.log.Error("malformed SOCK_CONNECT frame", log.KVErr(err))
		return false
	}
	if s.tunnel == nil {
		return true
	}
	if err := s.tunnel.Connect(c.ID, c.Host, c.Port); err != nil {
		s.log.Error("tunnel connect failed", log.KV("id", c.ID), log.KVErr(err))
	}
	return true
}

func (s *Session) handleSockData(payload []byte) bool {
	d, err := wire.DecodeSockData(payload)
	if err != nil {
		s.log.Error("malformed SOCK_DATA frame", log.KVErr(err))
		return false
	}
	if s.tunnel == nil {
		return true
	}
	if err := s.tunnel.Data(d.ID, d.Data); err != nil {
		s.log.Error("tunnel write failed", log.KV("id", d.ID), log.KVErr(err))
	}
	return true
}

// SendSockData lets a Tunnel push bytes back to the client as a SOCK_DATA
// frame (the server->client direction of §4.8).
func (s *Session) SendSockData(id uint16, data []byte) {
	s.send(wire.KindSOCK_DATA, wire.SockData{ID: id, Data: data}.Encode())
}

// SendSockState lets a Tunnel report a socket state transition (§4.8).
func (s *Session) SendSockState(id uint16, state wire.SockState) {
	s.send(wire.KindSOCK_STATE, wire.SockStateFrame{ID: id, State: state}.Encode())
}

func parseUint16(s string) (uint16, error) {
	var v uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, wire.ErrMalformedFrame
		}
		v = v*10 + uint64(r-'0')
		if v > 0xFFFF {
			return 0, wire.ErrMalformedFrame
		}
	}
	if s == "" {
		return 0, wire.ErrMalformedFrame
	}
	return uint16(v), nil
}
