package domain

import (
	"sort"

	"github.com/talgya/rootsoil/internal/geom"
)

// CellKey is the quantized key of a cell's vertex centroid.
func CellKey(c geom.Polygon) string {
	return geom.Key(c.Centroid())
}

// Adjacency maps a cell key to the keys of cells sharing an edge with it,
// ordered by cell index.
type Adjacency map[string][]string

// CellAdjacency links cells that share an edge. Edges are matched by the
// quantized keys of their endpoints in either direction.
func CellAdjacency(cells []geom.Polygon) Adjacency {
	edgeOwners := make(map[string][]int)
	for i, c := range cells {
		for j := range c {
			e := c.Edge(j)
			edgeOwners[edgeKey(e)] = append(edgeOwners[edgeKey(e)], i)
		}
	}

	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = CellKey(c)
	}

	adj := make(Adjacency, len(cells))
	for i, c := range cells {
		seen := make(map[int]bool)
		var owners []int
		for j := range c {
			for _, o := range edgeOwners[edgeKey(c.Edge(j))] {
				if o == i || seen[o] || keys[o] == keys[i] {
					continue
				}
				seen[o] = true
				owners = append(owners, o)
			}
		}
		sort.Ints(owners)
		nbrs := make([]string, len(owners))
		for k, o := range owners {
			nbrs[k] = keys[o]
		}
		adj[keys[i]] = nbrs
	}
	return adj
}

// edgeKey is direction independent.
func edgeKey(s geom.Segment) string {
	a, b := geom.Key(s.A), geom.Key(s.B)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
