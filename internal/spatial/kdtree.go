package spatial

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// Hit is one stored point returned by a query.
type Hit struct {
	Key   string    `json:"key"`
	Point r3.Vector `json:"point"`
	Dist  float64   `json:"dist"`
}

type kdItem struct {
	key string
	p   r3.Vector
}

// kdNode stores one item; children are indices into the node slice, -1 when
// absent.
type kdNode struct {
	item  int32
	left  int32
	right int32
	axis  uint8
}

// kdTree is a static 3-d tree over a flat node slice, split at the median
// of the axis cycling with depth.
type kdTree struct {
	nodes []kdNode
	items []kdItem
}

func newKDTree(items []kdItem) *kdTree {
	t := &kdTree{
		nodes: make([]kdNode, 0, len(items)),
		items: items,
	}
	if len(items) > 0 {
		t.build(0, len(items)-1, 0)
	}
	return t
}

func (t *kdTree) build(start, end, depth int) int32 {
	if start > end {
		return -1
	}
	axis := depth % 3
	sortItemsRange(t.items[start:end+1], axis)
	median := (start + end) / 2

	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{item: int32(median), axis: uint8(axis)})
	left := t.build(start, median-1, depth+1)
	right := t.build(median+1, end, depth+1)
	t.nodes[idx].left = left
	t.nodes[idx].right = right
	return idx
}

func sortItemsRange(items []kdItem, axis int) {
	sort.Slice(items, func(i, j int) bool {
		a, b := coord(items[i].p, axis), coord(items[j].p, axis)
		if a != b {
			return a < b
		}
		return items[i].key < items[j].key
	})
}

func coord(p r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	}
	return p.Z
}

// less orders hits by distance, then key.
func less(d2a float64, ka string, d2b float64, kb string) bool {
	if d2a != d2b {
		return d2a < d2b
	}
	return ka < kb
}

type candidate struct {
	item int32
	d2   float64
}

// nearest returns up to k items closest to q that satisfy keep (nil keeps
// everything), ordered by distance then key.
func (t *kdTree) nearest(q r3.Vector, k int, keep func(string) bool) []Hit {
	if k <= 0 || len(t.nodes) == 0 {
		return nil
	}
	best := make([]candidate, 0, k)
	var search func(n int32)
	search = func(n int32) {
		if n < 0 {
			return
		}
		node := t.nodes[n]
		it := t.items[node.item]
		if keep == nil || keep(it.key) {
			d2 := q.Sub(it.p).Norm2()
			best = t.offer(best, k, candidate{item: node.item, d2: d2})
		}

		diff := coord(q, int(node.axis)) - coord(it.p, int(node.axis))
		near, far := node.left, node.right
		if diff > 0 {
			near, far = far, near
		}
		search(near)
		if len(best) < k || diff*diff <= best[len(best)-1].d2 {
			search(far)
		}
	}
	search(0)
	return t.hits(best)
}

// offer inserts c into the sorted, k-bounded slice best.
func (t *kdTree) offer(best []candidate, k int, c candidate) []candidate {
	key := t.items[c.item].key
	pos := sort.Search(len(best), func(i int) bool {
		return less(c.d2, key, best[i].d2, t.items[best[i].item].key)
	})
	if pos >= k {
		return best
	}
	if len(best) < k {
		best = append(best, candidate{})
	}
	copy(best[pos+1:], best[pos:])
	best[pos] = c
	return best
}

// within returns every item no farther than r from q, ordered by distance
// then key.
func (t *kdTree) within(q r3.Vector, r float64) []Hit {
	if len(t.nodes) == 0 || r < 0 {
		return nil
	}
	r2 := r * r
	var found []candidate
	var search func(n int32)
	search = func(n int32) {
		if n < 0 {
			return
		}
		node := t.nodes[n]
		it := t.items[node.item]
		if d2 := q.Sub(it.p).Norm2(); d2 <= r2 {
			found = append(found, candidate{item: node.item, d2: d2})
		}
		diff := coord(q, int(node.axis)) - coord(it.p, int(node.axis))
		if diff <= r {
			search(node.left)
		}
		if diff >= -r {
			search(node.right)
		}
	}
	search(0)
	sort.Slice(found, func(i, j int) bool {
		return less(found[i].d2, t.items[found[i].item].key, found[j].d2, t.items[found[j].item].key)
	})
	return t.hits(found)
}

func (t *kdTree) hits(cs []candidate) []Hit {
	if len(cs) == 0 {
		return nil
	}
	out := make([]Hit, len(cs))
	for i, c := range cs {
		it := t.items[c.item]
		out[i] = Hit{Key: it.key, Point: it.p, Dist: math.Sqrt(c.d2)}
	}
	return out
}
