package kvcache

import "time"

// Entry is a value held in the memory layer.
type Entry struct {
	// Value is the cached value. May be nil.
	Value any

	// TypeTag is the codec tag the value was stored under.
	TypeTag string

	// ExpiresAt is the absolute expiry instant; the zero time means no expiry.
	ExpiresAt time.Time
}

func newEntry(value any, tag string, now time.Time, ttl *time.Duration) Entry {
	e := Entry{Value: value, TypeTag: tag}
	if ttl != nil {
		e.ExpiresAt = now.Add(*ttl)
	}
	return e
}

// HasExpiry reports whether the entry has a TTL.
func (e Entry) HasExpiry() bool {
	return !e.ExpiresAt.IsZero()
}

// IsExpired reports whether the entry's expiry instant is at or before now.
func (e Entry) IsExpired(now time.Time) bool {
	return e.HasExpiry() && !now.Before(e.ExpiresAt)
}

// TimeUntilExpiration returns the time left before expiry.
// Returns 0 if already expired and -1 if the entry never expires.
func (e Entry) TimeUntilExpiration(now time.Time) time.Duration {
	if !e.HasExpiry() {
		return -1
	}
	remaining := e.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
