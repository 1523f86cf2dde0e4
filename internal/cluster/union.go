package cluster

import (
	"sort"

	"github.com/golang/geo/r3"

	"github.com/talgya/rootsoil/internal/geom"
)

// Unioner merges the member cells of a cluster into closed boundaries.
type Unioner interface {
	Union(cells []geom.Polygon) []geom.Polygon
}

// EdgeUnion merges edge-sharing cells. Every cell is wound to agree with a
// reference normal, edges shared by two cells cancel, and the remaining
// directed edges are chained into loops. Outer boundaries come out wound
// counter-clockwise about the reference and holes clockwise. Straight runs
// of collinear vertices are collapsed.
type EdgeUnion struct {
	// Normal is the reference, typically the domain plane's Z axis. When
	// zero, the normal of the first non-degenerate cell is used.
	Normal r3.Vector
}

type directedEdge struct {
	from, to string
}

// Union implements Unioner.
func (u EdgeUnion) Union(cells []geom.Polygon) []geom.Polygon {
	if len(cells) == 0 {
		return nil
	}

	normals := make([]r3.Vector, len(cells))
	ref := u.Normal
	for i, c := range cells {
		normals[i] = newellNormal(c)
		if ref.Norm2() == 0 {
			ref = normals[i]
		}
	}

	count := make(map[directedEdge]int)
	pts := make(map[string]r3.Vector)
	for i, c := range cells {
		pg := c
		if normals[i].Dot(ref) < 0 {
			pg = reversed(c)
		}
		for k := range pg {
			a, b := pg[k], pg[(k+1)%len(pg)]
			ka, kb := geom.Key(a), geom.Key(b)
			if ka == kb {
				continue
			}
			pts[ka], pts[kb] = a, b
			back := directedEdge{kb, ka}
			if count[back] > 0 {
				count[back]--
				continue
			}
			count[directedEdge{ka, kb}]++
		}
	}

	out := make(map[string][]string)
	for e, n := range count {
		for ; n > 0; n-- {
			out[e.from] = append(out[e.from], e.to)
		}
	}
	starts := make([]string, 0, len(out))
	for k, tos := range out {
		sort.Strings(tos)
		starts = append(starts, k)
	}
	sort.Strings(starts)

	var loops []geom.Polygon
	for _, s := range starts {
		for len(out[s]) > 0 {
			var loop []r3.Vector
			cur := s
			for {
				next := out[cur]
				if len(next) == 0 {
					break
				}
				out[cur] = next[1:]
				loop = append(loop, pts[cur])
				cur = next[0]
				if cur == s {
					break
				}
			}
			if pg := collapseCollinear(loop); len(pg) >= 3 {
				loops = append(loops, pg)
			}
		}
	}
	return loops
}

func newellNormal(pg geom.Polygon) r3.Vector {
	var n r3.Vector
	for i := range pg {
		n = n.Add(pg[i].Cross(pg[(i+1)%len(pg)]))
	}
	return n
}

func reversed(pg geom.Polygon) geom.Polygon {
	out := make(geom.Polygon, len(pg))
	for i, p := range pg {
		out[len(pg)-1-i] = p
	}
	return out
}

// collapseCollinear drops vertices lying on the straight line through
// their neighbours.
func collapseCollinear(loop []r3.Vector) geom.Polygon {
	pg := geom.Polygon(loop)
	for changed := true; changed && len(pg) > 3; {
		changed = false
		for i := range pg {
			prev := pg[(i+len(pg)-1)%len(pg)]
			next := pg[(i+1)%len(pg)]
			a, b := pg[i].Sub(prev), next.Sub(pg[i])
			if a.Cross(b).Norm() <= 1e-9*a.Norm()*b.Norm() && a.Dot(b) > 0 {
				pg = append(pg[:i:i], pg[i+1:]...)
				changed = true
				break
			}
		}
	}
	return pg
}
