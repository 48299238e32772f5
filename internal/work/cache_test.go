package work

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetPut(t *testing.T) {
	c := NewCache[string, int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	c.Put("answer", 42)
	got, ok := c.Get("answer")
	assert.True(t, ok)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheStoresZeroValues(t *testing.T) {
	c := NewCache[int, error]()
	c.Put(1, nil)

	got, ok := c.Get(1)
	assert.True(t, ok, "zero value was not cached")
	assert.Nil(t, got)
}
