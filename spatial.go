package main

import "math"

const (
	GeomCellSize = 8.0  // meters per cell
	GeomHalfSize = 96.0 // world extent: x,z in [-96, 96]
	GeomCols     = 24   // 192 / 8
)

// GeometryIndex is a fixed XZ grid over a map's collidable objects,
// built once when the map freezes. It culls ray/AABB tests: a ray only
// checks objects registered in cells its bounding rectangle overlaps.
type GeometryIndex struct {
	cells [GeomCols * GeomCols][]int
	objs  []MapObject
}

// BuildGeometryIndex indexes every collidable object in the document
func BuildGeometryIndex(doc *MapDocument) *GeometryIndex {
	g := &GeometryIndex{}
	for _, obj := range doc.Objects {
		if !obj.Collidable {
			continue
		}
		idx := len(g.objs)
		g.objs = append(g.objs, obj)
		min, max := obj.AABB()
		minCX, minCZ := geomCell(min.X, min.Z)
		maxCX, maxCZ := geomCell(max.X, max.Z)
		for cz := minCZ; cz <= maxCZ; cz++ {
			for cx := minCX; cx <= maxCX; cx++ {
				c := cz*GeomCols + cx
				g.cells[c] = append(g.cells[c], idx)
			}
		}
	}
	return g
}

func geomCell(x, z float64) (int, int) {
	cx := int((x + GeomHalfSize) / GeomCellSize)
	cz := int((z + GeomHalfSize) / GeomCellSize)
	if cx < 0 {
		cx = 0
	} else if cx >= GeomCols {
		cx = GeomCols - 1
	}
	if cz < 0 {
		cz = 0
	} else if cz >= GeomCols {
		cz = GeomCols - 1
	}
	return cx, cz
}

// RaycastStatic returns the distance to the closest static-geometry hit
// along a normalized ray, limited to maxDist. ok is false when nothing
// is hit within range.
func (g *GeometryIndex) RaycastStatic(origin, dir Vec3, maxDist float64) (float64, bool) {
	if g == nil || len(g.objs) == 0 {
		return 0, false
	}
	end := origin.Add(dir.Scale(maxDist))
	minCX, minCZ := geomCell(math.Min(origin.X, end.X), math.Min(origin.Z, end.Z))
	maxCX, maxCZ := geomCell(math.Max(origin.X, end.X), math.Max(origin.Z, end.Z))

	best := maxDist
	found := false
	seen := make(map[int]struct{}, 8)
	for cz := minCZ; cz <= maxCZ; cz++ {
		for cx := minCX; cx <= maxCX; cx++ {
			for _, idx := range g.cells[cz*GeomCols+cx] {
				if _, dup := seen[idx]; dup {
					continue
				}
				seen[idx] = struct{}{}
				min, max := g.objs[idx].AABB()
				if t, ok := RayAABB(origin, dir, min, max); ok && t <= best {
					best = t
					found = true
				}
			}
		}
	}
	return best, found
}
