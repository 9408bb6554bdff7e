// Package codec implements the on-disk entry format used by kvcache.
//
// Every entry file starts with a fixed 10-byte header:
//
//	byte 0     isCompressed (0 or 1)
//	byte 1     isSerialized (0 or 1)
//	bytes 2-9  expiry as little-endian int64 ticks (100ns since 0001-01-01 UTC), 0 = none
//
// The header is followed by a newline-terminated type tag and the payload.
// When isCompressed is set the tag line and payload are wrapped in a single
// gzip stream. The payload is the literal text of a plain string value, or
// the JSON encoding of anything else.
//
// Types are recovered through an explicit Registry that maps tags to codecs,
// so decoding never guesses a Go type from the payload.
package codec
