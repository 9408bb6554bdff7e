package kvcache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const sharedShards = 32

type memKey struct {
	store string
	key   string
}

type memShard struct {
	mu      sync.RWMutex
	entries map[memKey]Entry
	// gen advances on every write or delete in the shard.
	gen uint64
}

// Shared is the memory layer. Every Cache built on the same Shared and bound
// to the same store sees the same entries. It is safe for concurrent use.
type Shared struct {
	shards [sharedShards]*memShard
	closed atomic.Bool
}

var (
	defaultMu     sync.Mutex
	defaultShared *Shared
)

// DefaultShared returns the process-wide memory layer used by caches opened
// without WithShared. It is created on first use and again after
// CloseDefaultShared.
func DefaultShared() *Shared {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultShared == nil || defaultShared.Closed() {
		defaultShared = NewShared()
	}
	return defaultShared
}

// CloseDefaultShared closes the process-wide memory layer. Caches still bound
// to it return ErrClosed; caches opened afterwards get a new one.
func CloseDefaultShared() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultShared == nil {
		return nil
	}
	err := defaultShared.Close()
	defaultShared = nil
	return err
}

// NewShared creates an empty memory layer.
func NewShared() *Shared {
	s := &Shared{}
	for i := range s.shards {
		s.shards[i] = &memShard{entries: make(map[memKey]Entry)}
	}
	return s
}

// Close drops every entry and makes caches using s return ErrClosed.
// Files on disk are not touched. Close is idempotent.
func (s *Shared) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	for _, sh := range s.shards {
		sh.mu.Lock()
		clear(sh.entries)
		sh.gen++
		sh.mu.Unlock()
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Shared) Closed() bool {
	return s.closed.Load()
}

func (s *Shared) shard(k memKey) *memShard {
	h := xxhash.New()
	_, _ = h.WriteString(k.store)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(k.key)
	return s.shards[h.Sum64()%sharedShards]
}

func (s *Shared) get(store, key string) (Entry, bool) {
	k := memKey{store, key}
	sh := s.shard(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[k]
	return e, ok
}

func (s *Shared) put(store, key string, e Entry) {
	k := memKey{store, key}
	sh := s.shard(k)
	sh.mu.Lock()
	sh.entries[k] = e
	sh.gen++
	sh.mu.Unlock()
}

// generation returns the mutation counter of the shard holding key.
func (s *Shared) generation(store, key string) uint64 {
	sh := s.shard(memKey{store, key})
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.gen
}

// fill caches e, read from disk, under key. An entry already present wins.
// Nothing is stored if the shard changed since gen was taken, so a fill
// cannot bring back an entry removed while its file was being read.
func (s *Shared) fill(store, key string, e Entry, gen uint64) (Entry, bool) {
	k := memKey{store, key}
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if existing, ok := sh.entries[k]; ok {
		return existing, false
	}
	if sh.gen != gen {
		return e, false
	}
	sh.entries[k] = e
	return e, true
}

func (s *Shared) delete(store, key string) {
	k := memKey{store, key}
	sh := s.shard(k)
	sh.mu.Lock()
	delete(sh.entries, k)
	sh.gen++
	sh.mu.Unlock()
}

// deleteIf removes the entry only while pred holds for the current value.
func (s *Shared) deleteIf(store, key string, pred func(Entry) bool) bool {
	k := memKey{store, key}
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[k]
	if !ok || !pred(e) {
		return false
	}
	delete(sh.entries, k)
	sh.gen++
	return true
}

// rangeStore calls fn for a snapshot of the entries of store.
func (s *Shared) rangeStore(store string, fn func(key string, e Entry)) {
	type kv struct {
		key string
		e   Entry
	}
	for _, sh := range s.shards {
		sh.mu.RLock()
		snapshot := make([]kv, 0, len(sh.entries))
		for k, e := range sh.entries {
			if k.store == store {
				snapshot = append(snapshot, kv{k.key, e})
			}
		}
		sh.mu.RUnlock()

		for _, item := range snapshot {
			fn(item.key, item.e)
		}
	}
}

func (s *Shared) clearStore(store string) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k := range sh.entries {
			if k.store == store {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.gen++
		sh.mu.Unlock()
	}
	return removed
}

func (s *Shared) count(store string) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.entries {
			if k.store == store {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}
