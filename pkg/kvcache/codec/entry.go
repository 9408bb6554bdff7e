package codec

import "time"

// Entry is one stored value plus the metadata written to its file header.
//
// Serialize sets IsCompressed and IsSerialized from the value; Deserialize
// reports what the header said.
type Entry struct {
	// IsCompressed reports whether the body is gzip framed.
	IsCompressed bool

	// IsSerialized reports whether the payload is JSON rather than a literal string.
	IsSerialized bool

	// ExpiresAt is the absolute expiry instant; the zero time means no expiry.
	ExpiresAt time.Time

	// TypeTag names the codec used to rebuild Value.
	TypeTag string

	// Value is the cached value. May be nil.
	Value any
}

// HasExpiry reports whether the entry carries an expiry instant.
func (e *Entry) HasExpiry() bool {
	return !e.ExpiresAt.IsZero()
}

// IsExpired reports whether the entry's expiry instant is at or before now.
func (e *Entry) IsExpired(now time.Time) bool {
	return e.HasExpiry() && !now.Before(e.ExpiresAt)
}
