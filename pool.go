package liveobjects

import (
	"sync"
	"time"

	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ObjectsPool owns every live object of a channel by id. Cross-object
// references are ids resolved against the pool at read time.
//
// The pool lock is never held while taking an object lock.
type ObjectsPool struct {
	objects *Objects

	lock      sync.RWMutex
	entries   map[string]poolObject
	graveyard *lru.Cache[string, time.Time]
}

func newObjectsPool(o *Objects, graveyardSize int) *ObjectsPool {
	graveyard, _ := lru.New[string, time.Time](graveyardSize)
	p := &ObjectsPool{
		objects:   o,
		entries:   make(map[string]poolObject),
		graveyard: graveyard,
	}
	p.entries[rdx.RootID] = newLiveMap(o, rdx.RootID)
	return p
}

func (p *ObjectsPool) get(id string) poolObject {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.entries[id]
}

func (p *ObjectsPool) Root() *LiveMap {
	return p.get(rdx.RootID).(*LiveMap)
}

func (p *ObjectsPool) Len() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.entries)
}

// buried reports whether the id was collected by GC.
func (p *ObjectsPool) buried(id string) bool {
	return p.graveyard.Contains(id)
}

// getOrCreateZeroValue returns the object with that id, creating an
// empty one of the kind its id implies. It returns nil for collected
// ids and ids of no known kind.
func (p *ObjectsPool) getOrCreateZeroValue(id string) poolObject {
	if obj := p.get(id); obj != nil {
		return obj
	}
	if p.buried(id) {
		return nil
	}
	t, ok := rdx.ObjectTypeOf(id)
	if !ok {
		return nil
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if obj, ok := p.entries[id]; ok {
		return obj
	}
	obj := p.newObject(t, id)
	p.entries[id] = obj
	return obj
}

func (p *ObjectsPool) newObject(t rdx.ObjectType, id string) poolObject {
	if t == rdx.TypeCounter {
		return newLiveCounter(p.objects, id)
	}
	return newLiveMap(p.objects, id)
}

// create registers a new object of kind t unless the id is taken or
// collected; the returned flag is false in that case.
func (p *ObjectsPool) create(t rdx.ObjectType, id string) (poolObject, bool) {
	return p.adopt(p.newObject(t, id))
}

// adopt registers an object built outside the pool. An object already
// holding the id wins and is returned instead; a collected id yields nil.
func (p *ObjectsPool) adopt(obj poolObject) (poolObject, bool) {
	if p.buried(obj.ID()) {
		return nil, false
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if prev, ok := p.entries[obj.ID()]; ok {
		return prev, false
	}
	p.entries[obj.ID()] = obj
	return obj, true
}

// remove drops the object for good.
func (p *ObjectsPool) remove(id string, at time.Time) {
	if id == rdx.RootID {
		return
	}
	p.lock.Lock()
	delete(p.entries, id)
	p.lock.Unlock()
	p.graveyard.Add(id, at)
}

// forget drops an object without burying it, so the id may be
// created again.
func (p *ObjectsPool) forget(id string) {
	if id == rdx.RootID {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.entries, id)
}

func (p *ObjectsPool) snapshot() []poolObject {
	p.lock.RLock()
	defer p.lock.RUnlock()
	objs := make([]poolObject, 0, len(p.entries))
	for _, obj := range p.entries {
		objs = append(objs, obj)
	}
	return objs
}

// resolve turns stored map data into a Value.
func (p *ObjectsPool) resolve(data *protocol.ObjectData) Value {
	switch {
	case data.ObjectID != "":
		obj := p.get(data.ObjectID)
		if obj == nil || obj.base().IsTombstoned() {
			return Value{}
		}
		switch o := obj.(type) {
		case *LiveMap:
			return MapValue(o)
		case *LiveCounter:
			return CounterValue(o)
		}
		return Value{}
	case data.String != nil:
		return StringValue(*data.String)
	case data.Number != nil:
		return NumberValue(*data.Number)
	case data.Boolean != nil:
		return BoolValue(*data.Boolean)
	case data.Bytes != nil:
		return BytesValue(data.Bytes)
	}
	return Value{}
}

type poolStats struct {
	maps, counters       int
	tombstoned           int
	entries, deadEntries int
	graveyard            int
}

func (p *ObjectsPool) stats() (st poolStats) {
	for _, obj := range p.snapshot() {
		if obj.base().IsTombstoned() {
			st.tombstoned++
		}
		switch o := obj.(type) {
		case *LiveMap:
			st.maps++
			live, dead := o.entryCounts()
			st.entries += live
			st.deadEntries += dead
		case *LiveCounter:
			st.counters++
		}
	}
	st.graveyard = p.graveyard.Len()
	return
}
