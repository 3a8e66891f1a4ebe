// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

// unionFind is an array-backed disjoint-set over entry positions, with
// union by rank and path compression. Entries within one author name are
// indexable by position, so no node bookkeeping is needed.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

// find returns the set leader for i, compressing the path on the way up.
func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

// union merges the sets containing a and b.
func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// same reports whether a and b are in one set.
func (uf *unionFind) same(a, b int) bool {
	return uf.find(a) == uf.find(b)
}
