/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package object

import (
	"sync"
	"time"

	"github.com/kazad/kazad/log"
)

// logger reports errors from Internal's persistence hook. It defaults to
// nil (silently dropped) so tests and callers that never call SetLogger
// don't need a logger around just to construct objects.
var logger *log.Logger

// SetLogger configures the logger used by Internal objects to report Store
// errors. Call once at startup (Design Notes §9: explicit process-wide
// state, not package-level init order).
func SetLogger(l *log.Logger) { logger = l }

// ChangeFunc is invoked whenever an object's value changes. confirm mirrors
// the OBJECT frame's confirm flag: true only when echoing a client-initiated
// write that requested confirmation.
type ChangeFunc func(v Value, confirm bool)

// Store is the persistence hook used by internal objects (§3, §6): a
// process-wide key-value settings store keyed by object name. It is
// satisfied by the bbolt-backed store in package store.
type Store interface {
	Save(name string, v Value) error
	Load(name string) (Value, bool)
}

// Object is the capability set every object subtype implements: current
// value, unit, apply-change, and the change-event stream used for fan-out.
// Design Notes §9 maps the C++ source's plain/internal/derived subtypes onto
// this single interface rather than a class hierarchy.
type Object interface {
	Name() string
	Unit() string
	Value() Value
	// ChangeValue applies a new value. confirm is forwarded to subscribers so
	// a client-initiated write can be echoed back to its originator.
	ChangeValue(v Value, confirm bool)
	// OnChange registers a callback invoked after every successful change
	// and returns a function that removes it. The registry and session
	// layers use this instead of a signal/slot system (Design Notes §9).
	OnChange(fn ChangeFunc) (cancel func())
}

type base struct {
	mu        sync.RWMutex
	name      string
	unit      string
	val       Value
	subs      map[uint64]ChangeFunc
	nextSubID uint64
}

func newBase(name, unit string) *base {
	return &base{
		name: name,
		unit: unit,
		val:  Invalid(),
		subs: make(map[uint64]ChangeFunc),
	}
}

func (b *base) Name() string { return b.name }
func (b *base) Unit() string { return b.unit }

func (b *base) Value() Value {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.val
}

func (b *base) OnChange(fn ChangeFunc) (cancel func()) {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// set stores the new value and returns the callbacks to fire, snapshotted
// under lock so a slow or unsubscribing callback can't corrupt the map
// being ranged over (§5 ordering guarantees).
func (b *base) set(v Value) []ChangeFunc {
	b.mu.Lock()
	b.val = v
	fns := make([]ChangeFunc, 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	return fns
}

func notify(fns []ChangeFunc, v Value, confirm bool) {
	for _, fn := range fns {
		fn(v, confirm)
	}
}

// Plain is the base object subtype: a value set by local producers or by a
// subscribed connection writing back through the protocol.
type Plain struct {
	*base
}

func NewPlain(name, unit string) *Plain {
	return &Plain{base: newBase(name, unit)}
}

func (p *Plain) ChangeValue(v Value, confirm bool) {
	notify(p.set(v), v, confirm)
}

// Internal additionally persists every successful change into a Store keyed
// by the object's name, and re-hydrates from that store on construction
// (§3's "internal" subtype).
type Internal struct {
	*base
	store Store
}

func NewInternal(name, unit string, st Store) *Internal {
	o := &Internal{base: newBase(name, unit), store: st}
	if st != nil {
		if v, ok := st.Load(name); ok {
			o.val = v
		}
	}
	return o
}

func (o *Internal) ChangeValue(v Value, confirm bool) {
	fns := o.set(v)
	if o.store != nil {
		if err := o.store.Save(o.name, v); err != nil && logger != nil {
			logger.Error("failed to persist object value", log.KV("object", o.name), log.KVErr(err))
		}
	}
	notify(fns, v, confirm)
}

// Derived bridges a value produced elsewhere (a local producer wired in at
// configuration time, per §3(a)) into the object model by polling a source
// function on an interval and pushing changes through the normal
// ChangeValue/OnChange path. The declarative config loader that would wire
// real producers is out of scope (§1); Derived is the seam it plugs into.
type Derived struct {
	*base
	source   func() Value
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

func NewDerived(name, unit string, interval time.Duration, source func() Value) *Derived {
	return &Derived{
		base:     newBase(name, unit),
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// ChangeValue lets the derived object also accept direct writes (e.g. from
// a subscribed connection), in addition to its polled source.
func (d *Derived) ChangeValue(v Value, confirm bool) {
	notify(d.set(v), v, confirm)
}

// Run polls source at the configured interval until Stop is called. Callers
// typically launch Run in its own goroutine right after registering the
// object.
func (d *Derived) Run() {
	if d.interval <= 0 || d.source == nil {
		return
	}
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
			nv := d.source()
			if !nv.Equal(d.Value()) {
				d.ChangeValue(nv, false)
			}
		}
	}
}

func (d *Derived) Stop() {
	d.once.Do(func() { close(d.stop) })
}
