package kvcache

import (
	"errors"

	"github.com/rshade/kvcache/internal/engine/keys"
	"github.com/rshade/kvcache/internal/engine/storage"
	"github.com/rshade/kvcache/pkg/kvcache/codec"
)

// Cache errors.
var (
	ErrNilKey            = keys.ErrNilKey
	ErrKeyTooLong        = keys.ErrKeyTooLong
	ErrEmptyStore        = storage.ErrEmptyStore
	ErrIncompatibleStore = storage.ErrIncompatibleStore
	ErrUnregisteredType  = codec.ErrUnregisteredType
	ErrFormat            = codec.ErrFormat

	ErrTypeMismatch = errors.New("cached value has a different type")
	ErrClosed       = errors.New("cache is closed")
)
