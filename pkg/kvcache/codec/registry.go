package codec

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Built-in type tags.
const (
	TagNull     = "null"
	TagString   = "string"
	TagBool     = "bool"
	TagInt      = "int"
	TagInt8     = "int8"
	TagInt16    = "int16"
	TagInt32    = "int32"
	TagInt64    = "int64"
	TagUint     = "uint"
	TagUint8    = "uint8"
	TagUint16   = "uint16"
	TagUint32   = "uint32"
	TagUint64   = "uint64"
	TagFloat32  = "float32"
	TagFloat64  = "float64"
	TagBytes    = "bytes"
	TagTime     = "time"
	TagDuration = "duration"
	TagStrings  = "[]string"
	TagInts     = "[]int"
	TagStrMap   = "map[string]string"
	TagIntMap   = "map[string]int"

	// TagAnySlice and TagAnyMap hold untyped JSON. Numbers inside them read
	// back as float64 and nested values as []any or map[string]any; see
	// Registry.Normalize.
	TagAnySlice = "[]any"
	TagAnyMap   = "map[string]any"
)

// Registry errors.
var (
	ErrUnregisteredType = errors.New("value type is not registered")
	ErrInvalidTag       = errors.New("type tag must be non-empty and single-line")
	ErrDuplicateTag     = errors.New("type tag already registered for another type")
)

// Codec encodes and decodes the values of one registered type.
type Codec struct {
	// Tag is the name written into entry files.
	Tag string

	// Encode produces the JSON payload for a value.
	Encode func(v any) ([]byte, error)

	// Decode rebuilds a value from its JSON payload.
	Decode func(data []byte) (any, error)

	// untyped marks codecs whose Decode does not return the encoded value's
	// dynamic types.
	untyped bool
}

// Registry maps type tags to codecs and Go types to tags.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byTag  map[string]*Codec
	byType map[reflect.Type]string
}

// NewRegistry returns a registry preloaded with the built-in tags.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	registerBuiltins(r)
	return r
}

// NewEmptyRegistry returns a registry that only knows the null tag.
func NewEmptyRegistry() *Registry {
	r := &Registry{
		byTag:  make(map[string]*Codec),
		byType: make(map[reflect.Type]string),
	}
	r.byTag[TagNull] = &Codec{
		Tag:    TagNull,
		Encode: func(any) ([]byte, error) { return []byte("null"), nil },
		Decode: func([]byte) (any, error) { return nil, nil },
	}
	return r
}

// Register adds T under tag. Registering the same type and tag twice is a no-op.
func Register[T any](r *Registry, tag string) error {
	typ := reflect.TypeFor[T]()
	return r.add(typ, &Codec{
		Tag: tag,
		Encode: func(v any) ([]byte, error) {
			return json.Marshal(v)
		},
		Decode: func(data []byte) (any, error) {
			var out T
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	})
}

// MustRegister is Register that panics on error. Use it during setup only.
func MustRegister[T any](r *Registry, tag string) {
	if err := Register[T](r, tag); err != nil {
		panic(err)
	}
}

func (r *Registry) add(typ reflect.Type, c *Codec) error {
	if c.Tag == "" || c.Tag == TagNull || strings.ContainsAny(c.Tag, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidTag, c.Tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[typ]; ok {
		if existing == c.Tag {
			return nil
		}
		return fmt.Errorf("%w: %s is already registered as %q", ErrDuplicateTag, typ, existing)
	}
	if _, ok := r.byTag[c.Tag]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTag, c.Tag)
	}

	r.byTag[c.Tag] = c
	r.byType[typ] = c.Tag
	return nil
}

// TagOf returns the tag for v's dynamic type. A nil interface maps to TagNull.
func (r *Registry) TagOf(v any) (string, error) {
	if v == nil {
		return TagNull, nil
	}

	typ := reflect.TypeOf(v)

	r.mu.RLock()
	tag, ok := r.byType[typ]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnregisteredType, typ)
	}
	return tag, nil
}

// Lookup returns the codec registered under tag.
func (r *Registry) Lookup(tag string) (*Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byTag[tag]
	return c, ok
}

// Normalize returns v in the form it reads back from an entry file. Values
// under TagAnySlice and TagAnyMap are passed through their codec so that,
// for example, an int inside them becomes float64; other values, and values
// that fail to encode, are returned unchanged.
func (r *Registry) Normalize(tag string, v any) any {
	c, ok := r.Lookup(tag)
	if !ok || !c.untyped {
		return v
	}
	data, err := c.Encode(v)
	if err != nil {
		return v
	}
	out, err := c.Decode(data)
	if err != nil {
		return v
	}
	return out
}

func registerBuiltins(r *Registry) {
	MustRegister[string](r, TagString)
	MustRegister[bool](r, TagBool)
	MustRegister[int](r, TagInt)
	MustRegister[int8](r, TagInt8)
	MustRegister[int16](r, TagInt16)
	MustRegister[int32](r, TagInt32)
	MustRegister[int64](r, TagInt64)
	MustRegister[uint](r, TagUint)
	MustRegister[uint8](r, TagUint8)
	MustRegister[uint16](r, TagUint16)
	MustRegister[uint32](r, TagUint32)
	MustRegister[uint64](r, TagUint64)
	MustRegister[float32](r, TagFloat32)
	MustRegister[float64](r, TagFloat64)
	MustRegister[[]byte](r, TagBytes)
	MustRegister[time.Time](r, TagTime)
	MustRegister[time.Duration](r, TagDuration)
	MustRegister[[]string](r, TagStrings)
	MustRegister[[]int](r, TagInts)
	MustRegister[[]any](r, TagAnySlice)
	MustRegister[map[string]string](r, TagStrMap)
	MustRegister[map[string]int](r, TagIntMap)
	MustRegister[map[string]any](r, TagAnyMap)

	for _, tag := range []string{TagAnySlice, TagAnyMap} {
		r.byTag[tag].untyped = true
	}
}
