package p64

import "sync/atomic"

// ConcurrentMap is the sync.Map-shaped contract both map implementations
// below satisfy, kept distinct from sync.Map itself so callers can swap in
// whichever locking discipline (plain exclusion vs. boxed-entry atomics)
// suits their read/write ratio.
type ConcurrentMap interface {
	Clear()
	CompareAndDelete(key, old any) (deleted bool)
	CompareAndSwap(key, old, new any) (swapped bool)
	Delete(key any)
	Load(key any) (value any, ok bool)
	LoadAndDelete(key any) (value any, loaded bool)
	LoadOrStore(key, value any) (actual any, loaded bool)
	Range(f func(key, value any) bool)
	Store(key, value any)
	Swap(key, value any) (previous any, loaded bool)
}

// LockedMap is a map[any]any guarded by a single RWLock: reads take the
// shared path, every mutation takes the exclusive path. It favors
// simplicity over the read/write split of BoxedMap.
type LockedMap struct {
	mu    RWLock
	inner map[any]any
}

func (m *LockedMap) Load(key any) (value any, ok bool) {
	if m == nil {
		return nil, false
	}
	m.mu.AcquireRead()
	value, ok = m.inner[key]
	m.mu.ReleaseRead()
	return value, ok
}

func (m *LockedMap) Store(key, value any) {
	m.mu.AcquireWrite()
	if m.inner == nil {
		m.inner = make(map[any]any, 8)
	}
	m.inner[key] = value
	m.mu.ReleaseWrite()
}

func (m *LockedMap) Swap(key, value any) (previous any, loaded bool) {
	m.mu.AcquireWrite()
	if m.inner == nil {
		m.inner = make(map[any]any, 8)
	}
	previous, loaded = m.inner[key]
	m.inner[key] = value
	m.mu.ReleaseWrite()
	return previous, loaded
}

func (m *LockedMap) CompareAndDelete(key, old any) (deleted bool) {
	if old == nil {
		return false
	}
	m.mu.AcquireWrite()
	if v, ok := m.inner[key]; ok && v == old {
		delete(m.inner, key)
		deleted = true
	}
	m.mu.ReleaseWrite()
	return deleted
}

func (m *LockedMap) CompareAndSwap(key, old, newv any) (swapped bool) {
	if old == nil {
		return false
	}
	m.mu.AcquireWrite()
	if v, ok := m.inner[key]; ok && v == old {
		m.inner[key] = newv
		swapped = true
	}
	m.mu.ReleaseWrite()
	return swapped
}

func (m *LockedMap) Delete(key any) {
	m.mu.AcquireWrite()
	delete(m.inner, key)
	m.mu.ReleaseWrite()
}

func (m *LockedMap) LoadAndDelete(key any) (value any, loaded bool) {
	m.mu.AcquireWrite()
	value, loaded = m.inner[key]
	delete(m.inner, key)
	m.mu.ReleaseWrite()
	return value, loaded
}

func (m *LockedMap) LoadOrStore(key, value any) (actual any, loaded bool) {
	m.mu.AcquireWrite()
	if m.inner == nil {
		m.inner = make(map[any]any, 8)
	}
	actual, loaded = m.inner[key]
	if !loaded {
		m.inner[key] = value
		actual = value
	}
	m.mu.ReleaseWrite()
	return actual, loaded
}

// Range holds the read lock for the duration of the snapshot copy, not the
// callback: f may call back into m without deadlocking.
func (m *LockedMap) Range(f func(key, value any) bool) {
	m.mu.AcquireRead()
	snapshot := make(map[any]any, len(m.inner))
	for k, v := range m.inner {
		snapshot[k] = v
	}
	m.mu.ReleaseRead()
	for k, v := range snapshot {
		if !f(k, v) {
			break
		}
	}
}

func (m *LockedMap) Clear() {
	m.mu.AcquireWrite()
	m.inner = make(map[any]any, 8)
	m.mu.ReleaseWrite()
}

// BoxedEntry is a single map slot holding its value in an atomic.Value, so
// an update or tombstone-delete of an existing key never needs the map's
// write lock.
type BoxedEntry struct {
	inner atomic.Value // always holds a boxed, so nil and mixed types can be stored
}

type boxed struct{ v any }

func (b *BoxedEntry) Load() any {
	x, _ := b.inner.Load().(boxed)
	return x.v
}

func (b *BoxedEntry) Store(v any) {
	b.inner.Store(boxed{v})
}

func (b *BoxedEntry) CompareAndSwap(old, newv any) bool {
	if old == nil {
		return false
	}
	return b.inner.CompareAndSwap(boxed{old}, boxed{newv})
}

func (b *BoxedEntry) Delete() {
	b.inner.Store(boxed{})
}

// BoxedMap splits updates into two tiers behind a PhaseFairRWLock: the map
// structure itself (inserting or removing a key) takes the exclusive path,
// but updating a value already present is a lock-free CompareAndSwap on its
// BoxedEntry. Phase-fairness bounds a writer's wait under read-heavy load,
// which matters here since every Load also takes the shared path.
type BoxedMap struct {
	mu    PhaseFairRWLock
	inner map[any]*BoxedEntry
}

func (m *BoxedMap) init() {
	m.inner = make(map[any]*BoxedEntry, 8)
}

func (m *BoxedMap) Load(key any) (value any, ok bool) {
	if m == nil {
		return nil, false
	}
	m.mu.AcquireRead()
	v, loaded := m.inner[key]
	m.mu.ReleaseRead()
	if !loaded {
		return nil, false
	}
	value = v.Load()
	return value, value != nil
}

func (m *BoxedMap) Store(key, value any) {
	m.mu.AcquireRead()
	v, loaded := m.inner[key]
	m.mu.ReleaseRead()
	if loaded {
		v.Store(value)
		return
	}

	m.mu.AcquireWrite()
	if m.inner == nil {
		m.init()
	}
	if v, loaded = m.inner[key]; !loaded {
		v = new(BoxedEntry)
		m.inner[key] = v
	}
	m.mu.ReleaseWrite()
	v.Store(value)
}

func (m *BoxedMap) Swap(key, value any) (previous any, loaded bool) {
	m.mu.AcquireWrite()
	if m.inner == nil {
		m.init()
	}
	v, loaded := m.inner[key]
	if !loaded {
		v = new(BoxedEntry)
		m.inner[key] = v
	}
	m.mu.ReleaseWrite()

	if loaded {
		previous = v.Load()
	}
	v.Store(value)
	return previous, loaded
}

func (m *BoxedMap) CompareAndDelete(key, old any) (deleted bool) {
	if old == nil {
		return false
	}
	m.mu.AcquireRead()
	v, ok := m.inner[key]
	m.mu.ReleaseRead()
	if !ok {
		return false
	}
	return v.CompareAndSwap(old, nil)
}

func (m *BoxedMap) CompareAndSwap(key, old, newv any) (swapped bool) {
	m.mu.AcquireRead()
	v, ok := m.inner[key]
	m.mu.ReleaseRead()
	if !ok {
		return false
	}
	return v.CompareAndSwap(old, newv)
}

func (m *BoxedMap) Delete(key any) {
	m.mu.AcquireRead()
	v, ok := m.inner[key]
	m.mu.ReleaseRead()
	if ok {
		v.Delete()
	}
}

func (m *BoxedMap) LoadAndDelete(key any) (value any, loaded bool) {
	m.mu.AcquireWrite()
	v, ok := m.inner[key]
	if ok {
		delete(m.inner, key)
	}
	m.mu.ReleaseWrite()
	if !ok {
		return nil, false
	}
	value = v.Load()
	v.Delete()
	return value, value != nil
}

func (m *BoxedMap) LoadOrStore(key, value any) (actual any, loaded bool) {
	m.mu.AcquireWrite()
	if m.inner == nil {
		m.init()
	}
	v, loaded := m.inner[key]
	if !loaded {
		v = new(BoxedEntry)
		m.inner[key] = v
	}
	m.mu.ReleaseWrite()

	if loaded {
		if actual = v.Load(); actual != nil {
			return actual, true
		}
	}
	v.Store(value)
	return value, false
}

func (m *BoxedMap) Range(f func(key, value any) bool) {
	m.mu.AcquireRead()
	snapshot := make(map[any]any, len(m.inner))
	for k, v := range m.inner {
		if a := v.Load(); a != nil {
			snapshot[k] = a
		}
	}
	m.mu.ReleaseRead()
	for k, v := range snapshot {
		if !f(k, v) {
			break
		}
	}
}

func (m *BoxedMap) Clear() {
	m.mu.AcquireWrite()
	m.init()
	m.mu.ReleaseWrite()
}
