// Package growth simulates branching root growth over a spatial index.
//
// Sectional growth walks the six-slot topology graph of a lattice, drawing
// each step from a downward-biased slot distribution. Planar growth runs a
// fixed sequence of phases in free directions and snaps every step to the
// nearest index point. Both can be bent by a steering field.
package growth

import (
	"errors"

	"github.com/golang/geo/r3"

	"github.com/talgya/rootsoil/internal/geom"
)

// ErrAnchorUnreachable is returned when the anchor lies farther than one
// unit length from every domain point.
var ErrAnchorUnreachable = errors.New("anchor unreachable")

// State is the lifecycle stage of a growth node.
type State uint8

const (
	StateFrontier State = iota // Queued, not yet expanded
	StateExpanded              // Children enqueued
	StateTerminal              // A stopping rule fired
)

// node is one vertex of the growth tree.
type node struct {
	pos      r3.Vector
	key      string
	parent   *node
	children []*node
	pathDist float64   // Distance walked from the anchor
	step     int       // Steps from the anchor
	dir      r3.Vector // Incoming unit direction
	level    int       // Branch level, 0 for the main roots
	state    State
}

func newRoot(pos r3.Vector, dir r3.Vector) *node {
	return &node{pos: pos, key: geom.Key(pos), dir: dir}
}

// grow attaches a child at pos on the given branch level.
func (n *node) grow(pos r3.Vector, level int) *node {
	d := pos.Sub(n.pos)
	c := &node{
		pos:      pos,
		key:      geom.Key(pos),
		parent:   n,
		pathDist: n.pathDist + d.Norm(),
		step:     n.step + 1,
		dir:      geom.Unit(d),
		level:    level,
	}
	n.children = append(n.children, c)
	return c
}

// walk visits the tree depth first, parents before children.
func (n *node) walk(fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

// Result holds the segments of one growth run.
type Result struct {
	Levels    [][]geom.Segment `json:"levels"`    // Segments per branch level or phase
	Absorbent []geom.Segment   `json:"absorbent"` // Short offshoots along planar segments
	Nodes     int              `json:"nodes"`     // Growth nodes created, anchor included
	Seed      int64            `json:"seed"`      // Seed actually used
}

// Segments counts the segments over every level.
func (r Result) Segments() int {
	n := 0
	for _, l := range r.Levels {
		n += len(l)
	}
	return n
}

func (r *Result) add(level int, s geom.Segment) {
	for len(r.Levels) <= level {
		r.Levels = append(r.Levels, nil)
	}
	r.Levels[level] = append(r.Levels[level], s)
}
