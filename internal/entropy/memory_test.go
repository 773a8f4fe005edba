package entropy

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUnseenPathIsZero(t *testing.T) {
	m, err := NewMemory(4)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Previous("/a"))
}

func TestMemoryObserveReturnsPrevious(t *testing.T) {
	m, err := NewMemory(4)
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.Observe("/a", 1.5))
	assert.Equal(t, 1.5, m.Observe("/a", 7.9))
	assert.Equal(t, 7.9, m.Previous("/a"))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryEvictsLeastRecentlyObserved(t *testing.T) {
	m, err := NewMemory(2)
	require.NoError(t, err)

	m.Observe("/a", 1)
	m.Observe("/b", 2)
	m.Observe("/a", 3)
	m.Observe("/c", 4)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 0.0, m.Previous("/b"), "evicted path reads back as unseen")
	assert.Equal(t, 3.0, m.Previous("/a"))
	assert.Equal(t, 4.0, m.Previous("/c"))
}

func TestMemoryUnbounded(t *testing.T) {
	m, err := NewMemory(0)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		m.Observe("/f/"+strconv.Itoa(i), float64(i%8))
	}
	assert.Equal(t, 1000, m.Len())
}
