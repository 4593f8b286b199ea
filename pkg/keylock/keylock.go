package keylock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/metrics"
)

// Entry is a single blob id's lock record: an RW lock plus the
// bookkeeping the manager's sweep needs to decide whether the record
// is safe to evict. Acquire/release always go through Entry's own
// methods rather than the embedded mutex directly, so refs stays an
// accurate live-borrower count.
type Entry struct {
	mu       sync.RWMutex
	lastUsed atomic.Int64
	refs     atomic.Int32
}

// Lock acquires the write lock.
func (e *Entry) Lock() {
	e.refs.Add(1)
	e.mu.Lock()
}

// Unlock releases the write lock.
func (e *Entry) Unlock() {
	e.mu.Unlock()
	e.refs.Add(-1)
}

// RLock acquires a read lock. Readers do not block other readers.
func (e *Entry) RLock() {
	e.refs.Add(1)
	e.mu.RLock()
}

// RUnlock releases a read lock.
func (e *Entry) RUnlock() {
	e.mu.RUnlock()
	e.refs.Add(-1)
}

// Manager is a shared map from blob id to Entry, with TTL-based lazy
// eviction swept opportunistically from GetLock once the map reaches
// its threshold — never from a path that already holds one of the
// locks it manages.
type Manager struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	ttl       time.Duration
	threshold int
	logger    zerolog.Logger
}

// New returns a Manager that sweeps entries idle for longer than ttl
// once the map holds more than threshold entries.
func New(ttl time.Duration, threshold int) *Manager {
	return &Manager{
		entries:   make(map[string]*Entry),
		ttl:       ttl,
		threshold: threshold,
		logger:    log.WithComponent("keylock"),
	}
}

// GetLock returns the shared Entry for id, creating it if absent, and
// refreshes its last-used time. If creating the entry would take the
// map past the configured threshold, a sweep runs first to reclaim
// idle, unborrowed entries.
func (m *Manager) GetLock(id string) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		if len(m.entries) >= m.threshold {
			m.sweepLocked()
		}
		e = &Entry{}
		m.entries[id] = e
		metrics.KeyLockActiveTotal.Set(float64(len(m.entries)))
	}
	e.lastUsed.Store(time.Now().UnixNano())
	return e
}

// sweepLocked removes every entry idle for longer than ttl with no
// live borrowers. Callers must hold m.mu.
func (m *Manager) sweepLocked() {
	now := time.Now()
	evicted := 0
	for id, e := range m.entries {
		if e.refs.Load() != 0 {
			continue
		}
		if now.Sub(time.Unix(0, e.lastUsed.Load())) < m.ttl {
			continue
		}
		delete(m.entries, id)
		evicted++
	}
	if evicted > 0 {
		m.logger.Debug().Int("evicted", evicted).Int("remaining", len(m.entries)).Msg("swept idle key locks")
		metrics.KeyLockEvictionsTotal.Add(float64(evicted))
		metrics.KeyLockActiveTotal.Set(float64(len(m.entries)))
	}
}

// Len reports the number of entries currently tracked, live or idle.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
