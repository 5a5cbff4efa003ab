package nav

import (
	"container/heap"
	"math"

	"github.com/kasuganosora/nightwatch/game/ai"
)

// Cell is an integer grid coordinate on the ground plane.
type Cell struct {
	X, Z int
}

// Grid is the walkable cell map the planner searches.
// Cell (x, z) covers world [x, x+1) × [z, z+1).
type Grid interface {
	Size() (width, depth int)
	Walkable(x, z int) bool
}

// CellOf returns the cell containing p.
func CellOf(p ai.Vec3) Cell {
	return Cell{X: int(math.Floor(p.X)), Z: int(math.Floor(p.Z))}
}

// Center returns the world-space center of c at height y.
func (c Cell) Center(y float64) ai.Vec3 {
	return ai.Vec3{X: float64(c.X) + 0.5, Y: y, Z: float64(c.Z) + 0.5}
}

var neighbours = [4]Cell{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

type node struct {
	cell   Cell
	g, f   int
	parent *node
	index  int
}

type openSet []*node

func (o openSet) Len() int           { return len(o) }
func (o openSet) Less(i, j int) bool { return o[i].f < o[j].f }
func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openSet) Push(x any) {
	n := x.(*node)
	n.index = len(*o)
	*o = append(*o, n)
}
func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}

func manhattan(a, b Cell) int {
	dx, dz := a.X-b.X, a.Z-b.Z
	if dx < 0 {
		dx = -dx
	}
	if dz < 0 {
		dz = -dz
	}
	return dx + dz
}

// AStar finds the shortest 4-connected walkable path from `from` to `to`.
// Returns the path excluding the start and including the end, an empty
// slice when from == to, or nil if no path exists.
func AStar(g Grid, from, to Cell) []Cell {
	if g == nil || !g.Walkable(to.X, to.Z) {
		return nil
	}
	if from == to {
		return []Cell{}
	}

	closed := make(map[Cell]bool)
	gScore := map[Cell]int{from: 0}
	open := &openSet{}
	heap.Push(open, &node{cell: from, f: manhattan(from, to)})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if closed[cur.cell] {
			continue
		}
		closed[cur.cell] = true

		if cur.cell == to {
			var path []Cell
			for n := cur; n.parent != nil; n = n.parent {
				path = append(path, n.cell)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}

		for _, d := range neighbours {
			next := Cell{cur.cell.X + d.X, cur.cell.Z + d.Z}
			if closed[next] || !g.Walkable(next.X, next.Z) {
				continue
			}
			ng := cur.g + 1
			if prev, ok := gScore[next]; ok && ng >= prev {
				continue
			}
			gScore[next] = ng
			heap.Push(open, &node{cell: next, g: ng, f: ng + manhattan(next, to), parent: cur})
		}
	}
	return nil
}
