// Package keys turns raw cache keys into filesystem-legal strings.
//
// Normalization is pure: the same raw key always produces the same string,
// which is what lets a later read find the file an earlier write produced.
// Characters that are illegal in the target context are replaced by the
// uppercase hex of their UTF-8 bytes; everything else is copied verbatim.
// Escapes are not marked, so "a:" and "a3A" normalize to the same name.
//
// A normalized key names one file, so it may be at most MaxLength bytes.
// Each escaped byte takes two: 100 colons normalize to 200 bytes.
package keys

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

// Key errors.
var (
	// ErrNilKey is returned when a key is nil or a nil pointer, map, slice or interface.
	ErrNilKey = errors.New("cache key cannot be nil")

	ErrKeyTooLong = fmt.Errorf("normalized cache key is longer than %d bytes", MaxLength)
)

// MaxLength is the longest normalized key. With the four-byte entry
// extension the file name stays within the usual 255-byte limit.
const MaxLength = 251

// hexDigits is the uppercase alphabet used for byte escapes.
const hexDigits = "0123456789ABCDEF"

// Handler computes normalized keys. The zero value is ready to use.
type Handler struct{}

// NewHandler returns a key handler.
func NewHandler() *Handler {
	return &Handler{}
}

// ComputeKey normalizes rawKey for use as a leaf file name.
// Strings are normalized as-is; any other value is first encoded to
// canonical JSON (sorted map keys, struct fields in declaration order).
func (h *Handler) ComputeKey(rawKey any) (string, error) {
	if isNil(rawKey) {
		return "", ErrNilKey
	}

	var k string
	if s, ok := rawKey.(string); ok {
		k = NormalizeKey(s, false)
	} else {
		encoded, err := json.Marshal(rawKey)
		if err != nil {
			return "", fmt.Errorf("encoding structured key %T: %w", rawKey, err)
		}
		k = NormalizeKey(string(encoded), false)
	}

	if len(k) > MaxLength {
		return "", fmt.Errorf("%w: %d bytes", ErrKeyTooLong, len(k))
	}
	return k, nil
}

// NormalizeKey escapes the characters of key that are invalid in the given
// context. isPath selects the store-root rules, which keep separators and
// drive colons legal; otherwise the stricter file-name rules apply.
func (h *Handler) NormalizeKey(key string, isPath bool) string {
	return NormalizeKey(key, isPath)
}

// NormalizeKey is the package-level form of Handler.NormalizeKey.
func NormalizeKey(key string, isPath bool) string {
	var sb strings.Builder
	sb.Grow(len(key))

	for i := 0; i < len(key); {
		r, size := utf8.DecodeRuneInString(key[i:])
		if r == utf8.RuneError && size <= 1 {
			// Not valid UTF-8; escape the raw byte so the mapping stays total.
			writeHex(&sb, key[i])
			i++
			continue
		}

		if invalidRune(r, isPath) {
			for j := i; j < i+size; j++ {
				writeHex(&sb, key[j])
			}
		} else {
			sb.WriteString(key[i : i+size])
		}
		i += size
	}

	return sb.String()
}

func writeHex(sb *strings.Builder, b byte) {
	sb.WriteByte(hexDigits[b>>4])
	sb.WriteByte(hexDigits[b&0x0F])
}

// invalidRune reports whether r must be escaped in the given context.
func invalidRune(r rune, isPath bool) bool {
	if r < 0x20 || r == 0x7F {
		return true
	}

	switch r {
	case '"', '<', '>', '|', '*', '?':
		return true
	case ':', '/', '\\':
		return !isPath
	}

	return false
}

// isNil reports whether v is nil or a typed nil of a nillable kind.
func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
