package utils_test

import (
	"sync"
	"testing"
	"time"

	"github.com/pointboard/forum/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestTTLMap(t *testing.T) {
	t.Parallel()

	ttl := 100 * time.Millisecond
	m := utils.NewTTLMap[string, int](ttl)
	t.Cleanup(m.Close)

	t.Run("basic set and get", func(t *testing.T) {
		t.Parallel()
		m.Set("test1", 123)
		value, exists := m.Get("test1")
		assert.True(t, exists)
		assert.Equal(t, 123, value)
	})

	t.Run("expiration", func(t *testing.T) {
		t.Parallel()
		m.Set("test2", 456)
		time.Sleep(ttl + 50*time.Millisecond) // Wait for expiration

		_, exists := m.Get("test2")
		assert.False(t, exists)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		m.Set("test3", 789)
		m.Delete("test3")
		_, exists := m.Get("test3")
		assert.False(t, exists)
	})

	t.Run("non-existent key", func(t *testing.T) {
		t.Parallel()

		_, exists := m.Get("nonexistent")
		assert.False(t, exists)
	})

	t.Run("update existing key", func(t *testing.T) {
		t.Parallel()
		m.Set("test4", 111)
		m.Set("test4", 222)
		value, exists := m.Get("test4")
		assert.True(t, exists)
		assert.Equal(t, 222, value)
	})
}

func TestTTLMapGetOrSet(t *testing.T) {
	t.Parallel()

	m := utils.NewTTLMap[string, int](time.Minute)
	t.Cleanup(m.Close)

	calls := 0
	create := func() int {
		calls++
		return calls * 10
	}

	assert.Equal(t, 10, m.GetOrSet("key", create))
	assert.Equal(t, 10, m.GetOrSet("key", create))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, m.Len())
}

func TestTTLMapCleanup(t *testing.T) {
	t.Parallel()

	ttl := 20 * time.Millisecond
	m := utils.NewTTLMap[string, int](ttl)
	t.Cleanup(m.Close)

	m.Set("a", 1)
	m.Set("b", 2)

	assert.Eventually(t, func() bool {
		return m.Len() == 0
	}, time.Second, ttl)
}

func TestTTLMapConcurrent(t *testing.T) {
	t.Parallel()

	m := utils.NewTTLMap[string, int](100 * time.Millisecond)
	t.Cleanup(m.Close)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := range 100 {
			m.Set("key", i)
		}
	}()

	go func() {
		defer wg.Done()
		for range 100 {
			m.Get("key")
		}
	}()

	go func() {
		defer wg.Done()
		for range 100 {
			m.GetOrSet("other", func() int { return 1 })
		}
	}()

	wg.Wait()
	m.Close()
	m.Close()
}
