package kvcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	ttl := time.Minute

	e := newEntry("v", "string", now, &ttl)
	assert.True(t, e.HasExpiry())
	assert.False(t, e.IsExpired(now))
	assert.Equal(t, time.Minute, e.TimeUntilExpiration(now))
	assert.True(t, e.IsExpired(now.Add(time.Minute)))
	assert.Equal(t, time.Duration(0), e.TimeUntilExpiration(now.Add(time.Hour)))

	forever := newEntry("v", "string", now, nil)
	assert.False(t, forever.HasExpiry())
	assert.False(t, forever.IsExpired(now.Add(100*365*24*time.Hour)))
	assert.Equal(t, time.Duration(-1), forever.TimeUntilExpiration(now))
}

func TestShared(t *testing.T) {
	s := NewShared()

	s.put("a", "k", Entry{Value: 1})
	s.put("b", "k", Entry{Value: 2})

	e, ok := s.get("a", "k")
	require.True(t, ok)
	assert.Equal(t, 1, e.Value)
	assert.Equal(t, 1, s.count("a"))

	kept, stored := s.fill("a", "k", Entry{Value: 99}, s.generation("a", "k"))
	assert.False(t, stored)
	assert.Equal(t, 1, kept.Value)

	assert.False(t, s.deleteIf("a", "k", func(e Entry) bool { return e.Value == 99 }))
	assert.True(t, s.deleteIf("a", "k", func(e Entry) bool { return e.Value == 1 }))
	_, ok = s.get("a", "k")
	assert.False(t, ok)

	for i := range 50 {
		s.put("a", fmt.Sprintf("k%d", i), Entry{Value: i})
	}
	var seen int
	s.rangeStore("a", func(string, Entry) { seen++ })
	assert.Equal(t, 50, seen)

	assert.Equal(t, 50, s.clearStore("a"))
	assert.Zero(t, s.count("a"))
	assert.Equal(t, 1, s.count("b"))

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Zero(t, s.count("b"))
}

func TestShared_Fill(t *testing.T) {
	t.Run("Absent", func(t *testing.T) {
		s := NewShared()
		e, stored := s.fill("a", "k", Entry{Value: 1}, s.generation("a", "k"))
		assert.True(t, stored)
		assert.Equal(t, 1, e.Value)
		_, ok := s.get("a", "k")
		assert.True(t, ok)
	})

	t.Run("DeletedSinceRead", func(t *testing.T) {
		s := NewShared()
		gen := s.generation("a", "k")
		s.delete("a", "k")

		_, stored := s.fill("a", "k", Entry{Value: 1}, gen)
		assert.False(t, stored)
		_, ok := s.get("a", "k")
		assert.False(t, ok, "a delete after the disk read wins")
	})

	t.Run("ClearedSinceRead", func(t *testing.T) {
		s := NewShared()
		gen := s.generation("a", "k")
		s.clearStore("a")

		_, stored := s.fill("a", "k", Entry{Value: 1}, gen)
		assert.False(t, stored)
	})

	t.Run("WrittenSinceRead", func(t *testing.T) {
		s := NewShared()
		gen := s.generation("a", "k")
		s.put("a", "k", Entry{Value: 2})

		e, stored := s.fill("a", "k", Entry{Value: 1}, gen)
		assert.False(t, stored)
		assert.Equal(t, 2, e.Value, "the newer write is returned")
	})
}

func TestDefaultShared(t *testing.T) {
	s := DefaultShared()
	assert.Same(t, s, DefaultShared())

	require.NoError(t, CloseDefaultShared())
	assert.True(t, s.Closed())

	next := DefaultShared()
	assert.NotSame(t, s, next)
	assert.False(t, next.Closed())
}

func TestShared_Concurrent(t *testing.T) {
	s := NewShared()
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			s.put("store", key, Entry{Value: i})
			e, ok := s.get("store", key)
			assert.True(t, ok)
			assert.Equal(t, i, e.Value)
			s.rangeStore("store", func(string, Entry) {})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, s.count("store"))
}
