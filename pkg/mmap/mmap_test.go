package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeap(t *testing.T) {
	buf, err := Heap{}.Alloc(4096)
	require.NoError(t, err)
	assert.Len(t, buf, 4096)
}
