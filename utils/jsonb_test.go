package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// TEST SUITE 1: JSON ARRAY COLUMN
// ============================================================================

func TestJSONArray_AppendUnique(t *testing.T) {
	arr := JSONArray{"a", "b"}

	arr = arr.AppendUnique("b", "c", "", "a", "d")
	assert.Equal(t, JSONArray{"a", "b", "c", "d"}, arr, "Duplicates and empties are dropped, order preserved")

	var empty JSONArray
	assert.Equal(t, JSONArray{"x"}, empty.AppendUnique("x"))
}

func TestJSONArray_ValueScanRoundTrip(t *testing.T) {
	arr := JSONArray{"evidence/a.png", "evidence/b.png"}

	v, err := arr.Value()
	assert.NoError(t, err)

	var scanned JSONArray
	assert.NoError(t, scanned.Scan(v))
	assert.Equal(t, arr, scanned)

	var nilArr JSONArray
	v, err = nilArr.Value()
	assert.NoError(t, err)
	assert.Nil(t, v, "A nil array stores SQL NULL")

	assert.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}

// ============================================================================
// TEST SUITE 2: KEYED MUTEX
// ============================================================================

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	m := NewKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("tenant-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter, "All increments run under the same key's lock")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()

	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	<-done // would deadlock if "b" waited on "a"
}
