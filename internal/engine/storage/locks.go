package storage

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// lockStripes is the number of mutexes shared by all entry paths.
const lockStripes = 256

// keyLocks serializes operations on the same entry file without keeping a
// mutex per key. Distinct keys may share a stripe; that only costs contention.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(path string) func() {
	m := &l.stripes[xxhash.Sum64String(path)%lockStripes]
	m.Lock()
	return m.Unlock
}
