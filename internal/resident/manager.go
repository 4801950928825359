// Package resident implements the single-slot model cache at the heart of
// the service: at most one model is loaded at a time, acquisitions for the
// resident key reuse it, acquisitions for a different key swap it out, and
// a background sweeper evicts it after a period of inactivity.
package resident

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxlabs/ttsd/internal/engine"
)

// Manager owns the resident slot. The slot is either empty or holds exactly
// one (key, handle, lastAccess) triple; it is never partially populated. All
// reads and mutations of the slot happen under mu, and mu is held across the
// whole of Acquire — including the slow load — so two concurrent misses can
// never both load and the memory footprint never doubles.
type Manager struct {
	loaders map[string]engine.Loader
	logger  *slog.Logger
	now     func() time.Time // injectable clock for tests

	mu         sync.Mutex
	key        string
	handle     engine.Handle
	lastAccess time.Time
	borrows    int // invocations in flight against the resident handle
}

// NewManager creates a Manager with an empty slot. loaders maps each
// recognized model key to the loader that produces it.
func NewManager(loaders map[string]engine.Loader, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loaders: loaders,
		logger:  logger,
		now:     time.Now,
	}
}

// Acquire returns a usable handle for key, loading or swapping as needed,
// plus a release callback. The handle is borrowed until release is invoked;
// callers must call release exactly once, when their invocation returns,
// and must not retain the handle past that point. While a borrow is
// outstanding the sweeper leaves the resident alone.
//
// A request arriving while another load is in flight queues behind the slot
// lock. The in-flight load is not owned by any one waiter: it runs to
// completion regardless of the caller's context at the HTTP edge.
func (m *Manager) Acquire(ctx context.Context, key string) (engine.Handle, func(), error) {
	loader, ok := m.loaders[key]
	if !ok {
		return nil, nil, &UnknownModelError{Key: key}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Hit: resident key matches, refresh the timestamp and reuse.
	if m.handle != nil && m.key == key {
		m.lastAccess = m.now()
		m.borrows++
		return m.handle, m.releaseFunc(m.handle), nil
	}

	// Swap: dispose the current resident completely before loading the
	// replacement. Disposal failure is logged but the slot is still
	// cleared, so a stuck resident never blocks new work.
	if m.handle != nil {
		m.logger.Info("swapping resident model", "evict", m.key, "load", key)
		m.evictLocked()
	}

	m.logger.Info("loading model", "key", key, "engine", loader.Name())
	start := m.now()
	// The load runs detached from the caller's context: whoever acquired
	// first is queueing waiters behind the lock, and a timed-out or
	// disconnected caller must not abort the load they are all waiting
	// on. The loader's own start timeout still bounds it.
	h, err := loader.Load(context.WithoutCancel(ctx), key)
	if err != nil {
		// The slot stays exactly as it was before the attempt: empty.
		return nil, nil, &LoadError{Key: key, Err: err}
	}

	m.key = key
	m.handle = h
	m.lastAccess = m.now()
	m.borrows = 1
	m.logger.Info("model loaded", "key", key, "duration", m.lastAccess.Sub(start))
	return h, m.releaseFunc(h), nil
}

// releaseFunc builds the release callback for one borrow of h. The borrow
// may outlive its resident: a swap disposes the handle it belongs to and
// resets the count, so a stale release must not touch the new resident.
func (m *Manager) releaseFunc(h engine.Handle) func() {
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.handle == h {
			m.borrows--
			m.lastAccess = m.now()
		}
	}
}

// EvictIdle clears the slot if it has been idle for longer than timeout.
// It uses TryLock so a sweep tick never queues behind a slow load; a
// contended tick is simply skipped and retried next period. Reports whether
// an eviction happened.
func (m *Manager) EvictIdle(timeout time.Duration) bool {
	if !m.mu.TryLock() {
		return false
	}
	defer m.mu.Unlock()

	if m.handle == nil {
		return false
	}
	// A borrowed handle is in use no matter what the timestamp says;
	// disposing it would kill an invocation mid-flight.
	if m.borrows > 0 {
		return false
	}
	idle := m.now().Sub(m.lastAccess)
	if idle <= timeout {
		return false
	}
	m.logger.Info("evicting idle model", "key", m.key, "idle", idle)
	m.evictLocked()
	return true
}

// Evict unconditionally clears the slot. Used for best-effort cleanup at
// shutdown.
func (m *Manager) Evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return
	}
	m.logger.Info("evicting resident model", "key", m.key)
	m.evictLocked()
}

// Resident reports the currently loaded key and its last access time, or
// ok=false when the slot is empty.
func (m *Manager) Resident() (key string, lastAccess time.Time, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return "", time.Time{}, false
	}
	return m.key, m.lastAccess, true
}

// evictLocked disposes the resident handle and clears the slot. Callers
// must hold mu and have checked that the slot is populated.
func (m *Manager) evictLocked() {
	if err := m.handle.Close(); err != nil {
		derr := &DisposalError{Key: m.key, Err: err}
		m.logger.Error("model disposal failed", "key", m.key, "error", derr)
	}
	m.key = ""
	m.handle = nil
	m.lastAccess = time.Time{}
	m.borrows = 0
}
