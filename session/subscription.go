/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package session

import (
	"github.com/kazad/kazad/log"
	"github.com/kazad/kazad/object"
	"github.com/kazad/kazad/wire"
)

// subscribe wires obj's change event to this session (§4.5 explicit
// subscription). It is a no-op if name is already subscribed (§8 property
// 3: single subscription). sendDesc controls whether OBJDESC is emitted;
// DMZ subscriptions suppress it.
func (s *Session) subscribe(obj object.Object, index uint16, sendDesc bool) {
	name := obj.Name()

	s.mu.Lock()
	if _, exists := s.subs[name]; exists {
		s.mu.Unlock()
		return
	}
	sub := &subscription{name: name, index: index}
	s.subs[name] = sub
	s.byIndex[index] = sub
	s.mu.Unlock()

	// The generic fan-out always reports confirm=false (§4.5): a
	// client-initiated write's confirm=true echo goes only to the writer, as
	// a separate direct reply from handleObject.
	sub.cancel = obj.OnChange(func(v object.Value, confirm bool) {
		s.send(wire.KindOBJECT, wire.ObjectUpdate{ID: index, Value: v, Confirm: false}.Encode())
	})

	if sendDesc {
		s.send(wire.KindCOMMAND, wire.EncodeCommand("OBJDESC:"+name+":"+obj.Unit()))
	}
	if v := obj.Value(); v.Valid() {
		s.send(wire.KindOBJECT, wire.ObjectUpdate{ID: index, Value: v, Confirm: false}.Encode())
	}
}

// enableDMZ implements §4.5 DMZ mode: subscribe to every currently
// registered object with sequentially allocated indices, then auto-subscribe
// every object registered afterward (§8 property 6).
func (s *Session) enableDMZ() {
	s.mu.Lock()
	if s.dmz {
		s.mu.Unlock()
		return
	}
	s.dmz = true
	s.mu.Unlock()

	// Register the late-arrival callback before snapshotting so an object
	// registered concurrently with the snapshot is caught by one side or
	// the other; subscribe's existing-name check (§8 property 3) de-dupes
	// an object that lands in both.
	unreg := s.registry.OnObjectAdded(func(obj object.Object) {
		s.mu.Lock()
		idx := s.nextIdx
		s.nextIdx++
		s.mu.Unlock()
		s.subscribe(obj, idx, false)
	})
	s.mu.Lock()
	s.unregisterDMZ = unreg
	s.mu.Unlock()

	for _, obj := range s.registry.Snapshot() {
		s.mu.Lock()
		idx := s.nextIdx
		s.nextIdx++
		s.mu.Unlock()
		s.subscribe(obj, idx, false)
	}
}

// snapshot implements §4.5 OBJLIST?: a one-shot compressed dump of every
// registered object's current (value, unit), not itself a subscription.
func (s *Session) snapshot() ([]byte, error) {
	objs := s.registry.Snapshot()
	entries := make([]wire.ObjectEntry, 0, len(objs))
	for _, o := range objs {
		entries = append(entries, wire.ObjectEntry{Name: o.Name(), Value: o.Value(), Unit: o.Unit()})
	}
	return wire.EncodeObjectList(entries)
}

func (s *Session) lookupByIndex(idx uint16) (*subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byIndex[idx]
	return sub, ok
}

func (s *Session) handleObject(payload []byte) bool {
	upd, err := wire.DecodeObjectUpdate(payload)
	if err != nil {
		s.log.Error("malformed OBJECT frame", log.KVErr(err))
		return false
	}
	sub, ok := s.lookupByIndex(upd.ID)
	if !ok {
		s.log.Error("OBJECT frame for unknown subscription id, dropping", log.KV("id", upd.ID))
		return true
	}
	obj, ok := s.registry.Lookup(sub.name)
	if !ok {
		return true
	}
	obj.ChangeValue(upd.Value, upd.Confirm)
	if upd.Confirm {
		// Echo the accepted value back to the writer only; every other
		// subscriber already got confirm=false from the fan-out above.
		s.send(wire.KindOBJECT, wire.ObjectUpdate{ID: upd.ID, Value: upd.Value, Confirm: true}.Encode())
	}
	return true
}
