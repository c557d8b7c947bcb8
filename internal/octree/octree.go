// Package octree implements a bounded, depth-limited octree over immovable
// points. The tree is built once and then only queried; it never rebalances.
package octree

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultCapacity = 8
	DefaultMaxDepth = 5

	// MinHalfSize keeps the root cube well-defined when every point shares
	// one position (or there are no points at all).
	MinHalfSize = 1e-3
)

// Item is anything with a fixed position in world space.
type Item interface {
	Pos() mgl64.Vec3
}

// Node is a cube region [center-half, center+half] on every axis.
// kids is either nil (leaf) or a full set of eight octants (internal).
type Node[T Item] struct {
	center   mgl64.Vec3
	half     float64
	capacity int
	depth    int
	maxDepth int

	items []T
	kids  *[8]*Node[T]
}

// QueryStats counts the work done by one range query.
type QueryStats struct {
	NodesVisited int
	NodesPruned  int
	Comparisons  int
}

// New creates a root node. Non-positive capacity and negative maxDepth fall
// back to the defaults; maxDepth 0 yields a single flat node.
func New[T Item](center mgl64.Vec3, half float64, capacity, maxDepth int) *Node[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxDepth < 0 {
		maxDepth = DefaultMaxDepth
	}
	if half < MinHalfSize {
		half = MinHalfSize
	}
	return &Node[T]{
		center:   center,
		half:     half,
		capacity: capacity,
		maxDepth: maxDepth,
	}
}

// Build sizes a root around items and inserts them in order.
// It returns the tree and the number of items that were rejected, which is
// zero for finite positions.
func Build[T Item](items []T, capacity, maxDepth int) (*Node[T], int) {
	pts := make([]mgl64.Vec3, len(items))
	for i, it := range items {
		pts[i] = it.Pos()
	}
	center, half := RootFor(pts)
	root := New[T](center, half, capacity, maxDepth)
	rejected := 0
	for _, it := range items {
		if !root.Insert(it) {
			rejected++
		}
	}
	return root, rejected
}

// RootFor computes the root cube for a point set: centered at the midpoint of
// the per-axis extent, half size equal to the largest half extent.
func RootFor(pts []mgl64.Vec3) (mgl64.Vec3, float64) {
	if len(pts) == 0 {
		return mgl64.Vec3{}, MinHalfSize
	}
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		for a := 0; a < 3; a++ {
			lo[a] = math.Min(lo[a], p[a])
			hi[a] = math.Max(hi[a], p[a])
		}
	}
	var center mgl64.Vec3
	half := 0.0
	for a := 0; a < 3; a++ {
		center[a] = (lo[a] + hi[a]) / 2
		half = math.Max(half, (hi[a]-lo[a])/2)
	}
	// midpoint rounding can leave an extreme point one ulp outside
	half += half * 1e-9
	if half < MinHalfSize {
		half = MinHalfSize
	}
	return center, half
}

func (n *Node[T]) Center() mgl64.Vec3 { return n.center }
func (n *Node[T]) HalfSize() float64  { return n.half }
func (n *Node[T]) Depth() int         { return n.depth }
func (n *Node[T]) IsLeaf() bool       { return n.kids == nil }

// Items returns the records that terminated insertion at this node.
func (n *Node[T]) Items() []T { return n.items }

// Insert places it in the subtree. It returns false only when the position is
// outside this node's cube.
func (n *Node[T]) Insert(it T) bool {
	if !n.Contains(it.Pos()) {
		return false
	}
	if len(n.items) < n.capacity || n.depth >= n.maxDepth {
		n.items = append(n.items, it)
		return true
	}
	if n.kids == nil {
		n.subdivide()
	}
	for _, k := range n.kids {
		if k.Insert(it) {
			return true
		}
	}
	// boundary rounding: keep it here rather than drop it
	n.items = append(n.items, it)
	return true
}

func (n *Node[T]) subdivide() {
	q := n.half / 2
	var kids [8]*Node[T]
	for i := range kids {
		c := n.center
		c[0] += sign(i&1) * q
		c[1] += sign((i>>1)&1) * q
		c[2] += sign((i>>2)&1) * q
		kids[i] = &Node[T]{
			center:   c,
			half:     q,
			capacity: n.capacity,
			depth:    n.depth + 1,
			maxDepth: n.maxDepth,
		}
	}
	n.kids = &kids
}

func sign(bit int) float64 {
	if bit == 0 {
		return -1
	}
	return 1
}

// Contains is an inclusive point-in-cube test.
func (n *Node[T]) Contains(p mgl64.Vec3) bool {
	for a := 0; a < 3; a++ {
		if p[a] < n.center[a]-n.half || p[a] > n.center[a]+n.half {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether the sphere touches the node cube.
func (n *Node[T]) IntersectsSphere(c mgl64.Vec3, r float64) bool {
	d := 0.0
	for a := 0; a < 3; a++ {
		lo, hi := n.center[a]-n.half, n.center[a]+n.half
		switch {
		case c[a] < lo:
			d += (lo - c[a]) * (lo - c[a])
		case c[a] > hi:
			d += (c[a] - hi) * (c[a] - hi)
		}
	}
	return d <= r*r
}

// QuerySphere appends every item within r of c to out and returns it.
// Order is node append order, then children in octant order.
func (n *Node[T]) QuerySphere(c mgl64.Vec3, r float64, out []T) []T {
	return n.query(c, r, r*r, out, nil)
}

// QuerySphereStats is QuerySphere with work counters.
func (n *Node[T]) QuerySphereStats(c mgl64.Vec3, r float64, out []T, st *QueryStats) []T {
	return n.query(c, r, r*r, out, st)
}

func (n *Node[T]) query(c mgl64.Vec3, r, r2 float64, out []T, st *QueryStats) []T {
	if !n.IntersectsSphere(c, r) {
		if st != nil {
			st.NodesPruned++
		}
		return out
	}
	if st != nil {
		st.NodesVisited++
		st.Comparisons += len(n.items)
	}
	for _, it := range n.items {
		if it.Pos().Sub(c).LenSqr() <= r2 {
			out = append(out, it)
		}
	}
	if n.kids != nil {
		for _, k := range n.kids {
			out = k.query(c, r, r2, out, st)
		}
	}
	return out
}

// Walk visits every node depth first, parent before children.
func (n *Node[T]) Walk(fn func(*Node[T])) {
	fn(n)
	if n.kids != nil {
		for _, k := range n.kids {
			k.Walk(fn)
		}
	}
}

// Shape summarizes the built tree.
type Shape struct {
	Nodes    int
	Leaves   int
	MaxDepth int
	Items    int
	// Overfull counts nodes holding more items than capacity, which happens
	// at max depth and on the boundary fallback path.
	Overfull int
}

func (n *Node[T]) Shape() Shape {
	var s Shape
	n.Walk(func(x *Node[T]) {
		s.Nodes++
		if x.kids == nil {
			s.Leaves++
		}
		if x.depth > s.MaxDepth {
			s.MaxDepth = x.depth
		}
		s.Items += len(x.items)
		if len(x.items) > x.capacity {
			s.Overfull++
		}
	})
	return s
}
