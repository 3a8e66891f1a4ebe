// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionFindSingletons(t *testing.T) {
	uf := newUnionFind(3)
	assert.False(t, uf.same(0, 1))
	assert.False(t, uf.same(1, 2))
	assert.Equal(t, 0, uf.find(0))
}

func TestUnionFindMergesTransitively(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(1, 2)

	assert.True(t, uf.same(0, 2))
	assert.False(t, uf.same(0, 3))

	uf.union(3, 4)
	uf.union(2, 3)
	for i := 0; i < 5; i++ {
		assert.True(t, uf.same(0, i))
	}
}

func TestUnionFindPartition(t *testing.T) {
	// Every element belongs to exactly one set: leaders are consistent
	// under repeated finds and self-union is a no-op.
	uf := newUnionFind(4)
	uf.union(0, 1)
	uf.union(0, 1)
	uf.union(2, 2)

	assert.Equal(t, uf.find(0), uf.find(1))
	assert.NotEqual(t, uf.find(0), uf.find(2))
	assert.Equal(t, uf.find(3), uf.find(3))
}
