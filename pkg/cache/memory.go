package cache

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// sweepEvery bounds how often Set scans for expired entries.
const sweepEvery = time.Minute

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache. Expired entries are dropped on read and by
// a periodic sweep from Set, so keys that are never read again do not pile up.
type Memory struct {
	entries *xsync.Map[string, entry]
	now     func() time.Time

	sweepMu   sync.Mutex
	nextSweep time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: xsync.NewMap[string, entry](), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		m.entries.Delete(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := m.now()
	m.sweep(now)
	m.entries.Store(key, entry{value: value, expires: now.Add(ttl)})
	return nil
}

func (m *Memory) sweep(now time.Time) {
	m.sweepMu.Lock()
	due := !now.Before(m.nextSweep)
	if due {
		m.nextSweep = now.Add(sweepEvery)
	}
	m.sweepMu.Unlock()
	if !due {
		return
	}
	m.entries.Range(func(key string, e entry) bool {
		if !now.Before(e.expires) {
			m.entries.Delete(key)
		}
		return true
	})
}

// Len counts stored entries, expired ones included.
func (m *Memory) Len() int {
	return m.entries.Size()
}
