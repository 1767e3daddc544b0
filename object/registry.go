/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package object

import "sync"

// Registry is the process-wide mapping of object name to Object (C1). It is
// created once at process start and lives until shutdown (§4.1); lookups
// are readers, Register/RegisterAlarm are the rare writers, so a single
// RWMutex serialises both per §5's shared-state rule.
type Registry struct {
	mu      sync.RWMutex
	objects []Object
	byName  map[string]int
	alarms  []*Alarm
	alarmGen uint64

	addedSubs   map[uint64]func(Object)
	nextAddedID uint64
}

func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]int),
		addedSubs: make(map[uint64]func(Object)),
	}
}

// Register appends obj to the registry and fires ObjectAdded to every
// listener (the subscription engine uses this to auto-subscribe DMZ
// sessions, §4.5). Re-registering an existing name is a no-op: names are
// unique across the registry (§3 invariant).
func (r *Registry) Register(obj Object) {
	r.mu.Lock()
	if _, exists := r.byName[obj.Name()]; exists {
		r.mu.Unlock()
		return
	}
	r.byName[obj.Name()] = len(r.objects)
	r.objects = append(r.objects, obj)
	subs := make([]func(Object), 0, len(r.addedSubs))
	for _, fn := range r.addedSubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(obj)
	}
}

// Lookup returns the object registered under name, if any.
func (r *Registry) Lookup(name string) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.objects[idx], true
}

// Keys returns every registered name in registration (insertion) order;
// clients display this order unchanged (§4.1).
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, len(r.objects))
	for i, o := range r.objects {
		keys[i] = o.Name()
	}
	return keys
}

// Snapshot returns every registered object in insertion order.
func (r *Registry) Snapshot() []Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Object, len(r.objects))
	copy(out, r.objects)
	return out
}

// OnObjectAdded registers fn to be called, with the registry's write lock
// released, whenever a new object is registered. Used by the subscription
// engine (C5) to implement DMZ auto-subscribe (§4.5, §8 property 6).
func (r *Registry) OnObjectAdded(fn func(Object)) (cancel func()) {
	r.mu.Lock()
	id := r.nextAddedID
	r.nextAddedID++
	r.addedSubs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.addedSubs, id)
		r.mu.Unlock()
	}
}

// RegisterAlarm appends an alarm to the flat alarm list.
func (r *Registry) RegisterAlarm(a *Alarm) {
	r.mu.Lock()
	r.alarms = append(r.alarms, a)
	r.alarmGen++
	r.mu.Unlock()
}

// Alarms returns every registered alarm.
func (r *Registry) Alarms() []*Alarm {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Alarm, len(r.alarms))
	copy(out, r.alarms)
	return out
}

// AlarmGeneration returns a counter that increments on every RegisterAlarm
// call. Nothing in this repository reads it; the ALARMS:user digest is
// rebuilt on every request.
func (r *Registry) AlarmGeneration() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alarmGen
}

var (
	instMu sync.Mutex
	inst   *Registry
)

// Init creates (or returns) the process-wide registry singleton. Design
// Notes §9: keep singletons as explicit process-wide state with an init
// function called from the entry point, not implicit package-level
// initialization order.
func Init() *Registry {
	instMu.Lock()
	defer instMu.Unlock()
	if inst == nil {
		inst = NewRegistry()
	}
	return inst
}

// Instance returns the process-wide registry, or nil if Init has not run.
func Instance() *Registry {
	instMu.Lock()
	defer instMu.Unlock()
	return inst
}

// Shutdown tears down the process-wide registry singleton.
func Shutdown() {
	instMu.Lock()
	inst = nil
	instMu.Unlock()
}
