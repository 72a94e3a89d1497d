package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBufferEvictsOldestAtCapacity(t *testing.T) {
	b := NewCircularBuffer[int](3)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	b.Push(4)

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{2, 3, 4}, b.Iter())

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 4, latest)

	oldest, ok := b.Oldest()
	require.True(t, ok)
	assert.Equal(t, 2, oldest)
}

func TestCircularBufferResizeTruncatesOldestOnShrink(t *testing.T) {
	b := NewCircularBuffer[int](5)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}
	b.Resize(2)
	assert.Equal(t, []int{4, 5}, b.Iter())
}

func TestCircularBufferEmptyReturnsFalse(t *testing.T) {
	b := NewCircularBuffer[string](2)
	_, ok := b.Latest()
	assert.False(t, ok)
	_, ok = b.Oldest()
	assert.False(t, ok)
}
