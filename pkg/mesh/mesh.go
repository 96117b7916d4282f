// Package mesh provides the triangle mesh storage shared by every
// model volume, with a deduplicated shared-vertex table and the rigid
// and affine transforms applied during import and export.
package mesh

import (
	"errors"
	"fmt"

	"github.com/fabworks/modelio/pkg/geom"
)

// Mesh errors.
var (
	ErrVertexIndex = errors.New("facet vertex index out of range")
)

// Facet is a single triangle, its corners in model coordinates.
type Facet struct {
	Vertices [3]geom.Vec3
}

// TriangleMesh owns a triangle soup plus a lazily built shared-vertex
// table. Facet corners are authoritative; the shared table is rebuilt
// on demand after any geometric mutation.
type TriangleMesh struct {
	facets   []Facet
	shared   []geom.Vec3
	indices  [][3]int
	repaired bool
}

// New returns a mesh owning the given facets.
func New(facets []Facet) *TriangleMesh {
	return &TriangleMesh{facets: facets}
}

// NewIndexed builds a mesh from a vertex table and triangle indices.
func NewIndexed(vertices []geom.Vec3, indices [][3]int) (*TriangleMesh, error) {
	m := &TriangleMesh{facets: make([]Facet, 0, len(indices))}
	for i, tri := range indices {
		var f Facet
		for c := 0; c < 3; c++ {
			idx := tri[c]
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("facet %d corner %d: %w: %d of %d", i, c, ErrVertexIndex, idx, len(vertices))
			}
			f.Vertices[c] = vertices[idx]
		}
		m.facets = append(m.facets, f)
	}
	return m, nil
}

// FacetCount returns the number of triangles.
func (m *TriangleMesh) FacetCount() int {
	return len(m.facets)
}

// Facets exposes the facet slice. Callers must not mutate it.
func (m *TriangleMesh) Facets() []Facet {
	return m.facets
}

// RequireSharedVertices ensures the shared-vertex table is populated,
// deduplicating facet corners by exact coordinate equality. Idempotent.
func (m *TriangleMesh) RequireSharedVertices() {
	if m.shared != nil {
		return
	}
	lookup := make(map[geom.Vec3]int, len(m.facets))
	m.shared = m.shared[:0]
	m.indices = make([][3]int, len(m.facets))
	for i, f := range m.facets {
		for c := 0; c < 3; c++ {
			v := f.Vertices[c]
			idx, ok := lookup[v]
			if !ok {
				idx = len(m.shared)
				m.shared = append(m.shared, v)
				lookup[v] = idx
			}
			m.indices[i][c] = idx
		}
	}
}

// SharedVertices returns the deduplicated vertex table, building it if
// necessary.
func (m *TriangleMesh) SharedVertices() []geom.Vec3 {
	m.RequireSharedVertices()
	return m.shared
}

// FacetIndices returns, for each facet, the three indices into the
// shared-vertex table.
func (m *TriangleMesh) FacetIndices() [][3]int {
	m.RequireSharedVertices()
	return m.indices
}

// invalidate drops derived state after a geometric mutation.
func (m *TriangleMesh) invalidate() {
	m.shared = nil
	m.indices = nil
}

// Repair drops degenerate facets (two or more coincident corners) and
// rebuilds the shared-vertex table. A second call changes nothing.
func (m *TriangleMesh) Repair() {
	kept := m.facets[:0]
	for _, f := range m.facets {
		if f.Vertices[0] == f.Vertices[1] ||
			f.Vertices[1] == f.Vertices[2] ||
			f.Vertices[0] == f.Vertices[2] {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) != len(m.facets) {
		m.facets = kept
		m.invalidate()
	}
	m.RequireSharedVertices()
	m.repaired = true
}

// NeedsRepair reports whether Repair has not yet run on the current
// geometry.
func (m *TriangleMesh) NeedsRepair() bool {
	return !m.repaired
}

// Merge appends another mesh's facets.
func (m *TriangleMesh) Merge(other *TriangleMesh) {
	if other == nil || len(other.facets) == 0 {
		return
	}
	m.facets = append(m.facets, other.facets...)
	m.invalidate()
	m.repaired = false
}

// Clone returns a deep copy.
func (m *TriangleMesh) Clone() *TriangleMesh {
	c := &TriangleMesh{
		facets:   make([]Facet, len(m.facets)),
		repaired: m.repaired,
	}
	copy(c.facets, m.facets)
	return c
}

// Transform applies an affine transform to every facet corner.
func (m *TriangleMesh) Transform(a geom.Affine) {
	for i := range m.facets {
		for c := 0; c < 3; c++ {
			m.facets[i].Vertices[c] = a.Apply(m.facets[i].Vertices[c])
		}
	}
	m.invalidate()
}

// Translate shifts every vertex by (x, y, z).
func (m *TriangleMesh) Translate(x, y, z float64) {
	d := geom.Vec3{X: x, Y: y, Z: z}
	for i := range m.facets {
		for c := 0; c < 3; c++ {
			m.facets[i].Vertices[c] = m.facets[i].Vertices[c].Add(d)
		}
	}
	m.invalidate()
}

// Scale scales uniformly about the origin.
func (m *TriangleMesh) Scale(factor float64) {
	m.ScaleXYZ(geom.Vec3{X: factor, Y: factor, Z: factor})
}

// ScaleXYZ scales per-axis about the origin.
func (m *TriangleMesh) ScaleXYZ(versor geom.Vec3) {
	for i := range m.facets {
		for c := 0; c < 3; c++ {
			m.facets[i].Vertices[c] = m.facets[i].Vertices[c].Mul(versor)
		}
	}
	m.invalidate()
}

// RotateZ rotates about the Z axis by angle radians.
func (m *TriangleMesh) RotateZ(angle float64) {
	for i := range m.facets {
		for c := 0; c < 3; c++ {
			m.facets[i].Vertices[c] = m.facets[i].Vertices[c].RotateZ(angle)
		}
	}
	m.invalidate()
}

// Mirror flips the mesh across the plane normal to the given axis.
func (m *TriangleMesh) Mirror(axis geom.Axis) {
	for i := range m.facets {
		for c := 0; c < 3; c++ {
			v := &m.facets[i].Vertices[c]
			switch axis {
			case geom.X:
				v.X = -v.X
			case geom.Y:
				v.Y = -v.Y
			case geom.Z:
				v.Z = -v.Z
			}
		}
		// Keep winding consistent after the flip.
		m.facets[i].Vertices[1], m.facets[i].Vertices[2] = m.facets[i].Vertices[2], m.facets[i].Vertices[1]
	}
	m.invalidate()
}

// BoundingBox returns the axis-aligned bounds of all facet corners.
func (m *TriangleMesh) BoundingBox() geom.BoundingBox3 {
	var bb geom.BoundingBox3
	for _, f := range m.facets {
		for c := 0; c < 3; c++ {
			bb.Merge(f.Vertices[c])
		}
	}
	return bb
}
