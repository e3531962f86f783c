package geocoding

import (
	"fmt"

	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
)

const (
	defaultNodeCapacity = 20
	defaultMaxDepth     = 10
)

// Visitor walks the levels and stored rectangles of a QuadTree
type Visitor interface {
	Begin(bounds gps.Rect)
	Level(depth int, bounds gps.Rect)
	Object(bounds gps.Rect)
	End()
}

// QuadTree indexes values by rectangle. Rectangles which do not fit into a
// single quadrant stay at the level that fully contains them.
type QuadTree[T any] struct {
	bounds   gps.Rect
	root     *quad[T]
	count    int
	capacity int
	maxDepth int
}

type item[T any] struct {
	bounds gps.Rect
	value  T
}

type quad[T any] struct {
	bounds   gps.Rect
	depth    int
	children *[4]*quad[T]
	items    []item[T]
}

// NewQuadTree creates an empty tree accepting rectangles within bounds
func NewQuadTree[T any](bounds gps.Rect) *QuadTree[T] {
	return &QuadTree[T]{bounds: bounds, capacity: defaultNodeCapacity, maxDepth: defaultMaxDepth}
}

// Insert adds value for r, r must lie within the bounds of the tree
func (qt *QuadTree[T]) Insert(r gps.Rect, value T) error {
	if !qt.bounds.FullyContains(r) {
		return fmt.Errorf("rect %v is outside of %v", r, qt.bounds)
	}
	if qt.root == nil {
		start := r
		if r.W() <= 0 || r.H() <= 0 {
			start = qt.bounds
		}
		qt.root = &quad[T]{bounds: start, depth: qt.maxDepth}
	}
	for !qt.root.bounds.FullyContains(r) {
		qt.root = qt.root.parentToward(r)
	}
	qt.root.insert(item[T]{r, value}, qt.capacity)
	qt.count++
	return nil
}

// At returns the values whose rectangle contains p
func (qt *QuadTree[T]) At(p gps.Point) []T {
	var found []T
	for q := qt.root; q != nil && p.In(q.bounds); {
		for _, it := range q.items {
			if p.In(it.bounds) {
				found = append(found, it.value)
			}
		}
		if q.children == nil {
			break
		}
		q = q.children[q.quadrantOf(p)]
	}
	return found
}

// Within returns the values whose rectangle intersects r
func (qt *QuadTree[T]) Within(r gps.Rect) []T {
	var found []T
	if qt.root != nil {
		qt.root.collect(r, &found)
	}
	return found
}

// Len returns the number of values in the tree
func (qt *QuadTree[T]) Len() int {
	return qt.count
}

// Visit walks the tree depth-first, an empty tree is visited with its bounds
func (qt *QuadTree[T]) Visit(v Visitor) {
	if qt.root == nil {
		v.Begin(qt.bounds)
		v.End()
		return
	}
	v.Begin(qt.root.bounds)
	qt.root.visit(v)
	v.End()
}

func (q *quad[T]) insert(it item[T], capacity int) {
	for {
		if q.children == nil {
			if len(q.items) < capacity || q.depth == 0 {
				q.items = append(q.items, it)
				return
			}
			q.subdivide(capacity)
		}
		i := q.fitting(it.bounds)
		if i < 0 {
			q.items = append(q.items, it)
			return
		}
		q = q.children[i]
	}
}

// subdivide creates the four quadrants, ordered SW, NW, SE, NE, and moves
// down the items fitting into one of them
func (q *quad[T]) subdivide(capacity int) {
	hw, hh := q.bounds.HalfSize()
	x0, y0 := q.bounds.X0(), q.bounds.Y0()
	q.children = &[4]*quad[T]{
		{bounds: gps.RectFrom(x0, y0, x0+hw, y0+hh), depth: q.depth - 1},
		{bounds: gps.RectFrom(x0, y0+hh, x0+hw, q.bounds.Y1()), depth: q.depth - 1},
		{bounds: gps.RectFrom(x0+hw, y0, q.bounds.X1(), y0+hh), depth: q.depth - 1},
		{bounds: gps.RectFrom(x0+hw, y0+hh, q.bounds.X1(), q.bounds.Y1()), depth: q.depth - 1},
	}
	kept := q.items[:0]
	for _, it := range q.items {
		if i := q.fitting(it.bounds); i >= 0 {
			q.children[i].insert(it, capacity)
		} else {
			kept = append(kept, it)
		}
	}
	q.items = kept
}

// parentToward returns a quad of twice the size having q as one of its
// quadrants, extended in the direction of r
func (q *quad[T]) parentToward(r gps.Rect) *quad[T] {
	w, h := q.bounds.W(), q.bounds.H()
	x0, y0 := q.bounds.X0(), q.bounds.Y0()
	index := 0
	if q.bounds.X0()-r.X0() > r.X1()-q.bounds.X1() {
		x0 -= w
		index += 2
	}
	if q.bounds.Y0()-r.Y0() > r.Y1()-q.bounds.Y1() {
		y0 -= h
		index++
	}
	parent := &quad[T]{bounds: gps.RectPointSize(x0, y0, 2*w, 2*h), depth: q.depth + 1}
	parent.children = &[4]*quad[T]{}
	for i := range parent.children {
		if i == index {
			parent.children[i] = q
			continue
		}
		dx, dy := float64(i/2)*w, float64(i%2)*h
		parent.children[i] = &quad[T]{bounds: gps.RectPointSize(x0+dx, y0+dy, w, h), depth: q.depth}
	}
	return parent
}

func (q *quad[T]) fitting(r gps.Rect) int {
	for i, child := range q.children {
		if child.bounds.FullyContains(r) {
			return i
		}
	}
	return -1
}

func (q *quad[T]) quadrantOf(p gps.Point) int {
	center := q.bounds.Center()
	i := 0
	if p.X() > center.X() {
		i += 2
	}
	if p.Y() > center.Y() {
		i++
	}
	return i
}

func (q *quad[T]) collect(r gps.Rect, found *[]T) {
	if !q.bounds.Intersects(r) {
		return
	}
	for _, it := range q.items {
		if it.bounds.Intersects(r) {
			*found = append(*found, it.value)
		}
	}
	if q.children != nil {
		for _, child := range q.children {
			child.collect(r, found)
		}
	}
}

func (q *quad[T]) visit(v Visitor) {
	v.Level(q.depth, q.bounds)
	for _, it := range q.items {
		v.Object(it.bounds)
	}
	if q.children != nil {
		for _, child := range q.children {
			child.visit(v)
		}
	}
}
