package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/fabworks/modelio/pkg/geom"
)

// arrangeCell is one candidate grid cell, weighted by distance from
// the area center so parts fill from the middle out.
type arrangeCell struct {
	center geom.Vec2
	weight float64
}

// arrange packs rectangles of the given sizes on a grid with at least
// dist between part edges, inside bb when supplied. It returns one
// placement center per size, or ErrArrangeOverflow when the parts
// cannot fit.
func (m *Model) arrange(sizes []geom.Vec2, dist float64, bb *geom.BoundingBox2) ([]geom.Vec2, error) {
	if len(sizes) == 0 {
		return nil, nil
	}

	// The grid cell is the largest part plus the separation distance.
	var part geom.Vec2
	for _, s := range sizes {
		part.X = math.Max(part.X, s.X)
		part.Y = math.Max(part.Y, s.Y)
	}
	part.X += dist
	part.Y += dist

	var area geom.Vec2
	bounded := bb != nil && bb.Defined
	if bounded {
		area = bb.Size()
	} else {
		// Unbounded: an area large enough for a single row.
		area = geom.Vec2{X: part.X * float64(len(sizes)), Y: part.Y * float64(len(sizes))}
	}

	cellsX := int(math.Floor((area.X + dist) / part.X))
	cellsY := int(math.Floor((area.Y + dist) / part.Y))
	if len(sizes) > cellsX*cellsY {
		return nil, fmt.Errorf("%w: %d parts, %d cells", ErrArrangeOverflow, len(sizes), cellsX*cellsY)
	}

	// Total space used by the grid, centered inside the area.
	used := geom.Vec2{X: float64(cellsX) * part.X, Y: float64(cellsY) * part.Y}
	origin := geom.Vec2{X: (area.X - used.X) / 2, Y: (area.Y - used.Y) / 2}
	if bounded {
		origin = origin.Add(bb.Min)
	}

	areaCenter := geom.Vec2{X: area.X / 2, Y: area.Y / 2}
	if bounded {
		areaCenter = bb.Center()
	}

	cells := make([]arrangeCell, 0, cellsX*cellsY)
	for i := 0; i < cellsX; i++ {
		for j := 0; j < cellsY; j++ {
			c := geom.Vec2{
				X: origin.X + (float64(i)+0.5)*part.X,
				Y: origin.Y + (float64(j)+0.5)*part.Y,
			}
			cells = append(cells, arrangeCell{center: c, weight: c.Distance(areaCenter)})
		}
	}
	sort.SliceStable(cells, func(a, b int) bool {
		return cells[a].weight < cells[b].weight
	})

	out := make([]geom.Vec2, len(sizes))
	for i := range sizes {
		out[i] = cells[i].center
	}
	return out, nil
}

// ArrangeObjects repositions every instance of every object on a grid
// with the given minimum spacing, inside bb when supplied.
func (m *Model) ArrangeObjects(dist float64, bb *geom.BoundingBox2) error {
	var sizes []geom.Vec2
	for _, o := range m.Objects {
		for i := range o.Instances {
			s := o.InstanceBoundingBox(i).Size()
			sizes = append(sizes, geom.Vec2{X: s.X, Y: s.Y})
		}
	}
	positions, err := m.arrange(sizes, dist, bb)
	if err != nil {
		return err
	}
	idx := 0
	for _, o := range m.Objects {
		for i, inst := range o.Instances {
			center := o.InstanceBoundingBox(i).Center()
			inst.Offset.X += positions[idx].X - center.X
			inst.Offset.Y += positions[idx].Y - center.Y
			idx++
		}
		o.InvalidateBoundingBox()
	}
	return nil
}
