package model

import (
	"math"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/mesh"
)

// Instance is one placement of an object on the bed: rotation about Z,
// uniform scale and a planar offset.
type Instance struct {
	Rotation      float64 // radians about Z
	ScalingFactor float64
	Offset        geom.Vec2

	object *Object
}

// Object returns the owning object.
func (i *Instance) Object() *Object {
	return i.object
}

// TransformMesh applies the instance rotation and scale to an external
// mesh, and its offset unless dontTranslate is set.
func (i *Instance) TransformMesh(m *mesh.TriangleMesh, dontTranslate bool) {
	m.RotateZ(i.Rotation)
	m.Scale(i.ScalingFactor)
	if !dontTranslate {
		m.Translate(i.Offset.X, i.Offset.Y, 0)
	}
}

// TransformMeshBoundingBox returns the bounds an external mesh would
// have after TransformMesh, without mutating the mesh.
func (i *Instance) TransformMeshBoundingBox(m *mesh.TriangleMesh, dontTranslate bool) geom.BoundingBox3 {
	return i.TransformBoundingBox(m.BoundingBox(), dontTranslate)
}

// TransformBoundingBox transforms an external bounding box by the
// instance rotation, scale and, unless dontTranslate, offset. The
// rotated box corners are merged so the result stays axis-aligned.
func (i *Instance) TransformBoundingBox(bb geom.BoundingBox3, dontTranslate bool) geom.BoundingBox3 {
	var out geom.BoundingBox3
	if !bb.Defined {
		return out
	}
	c, s := cosSin(i.Rotation)
	for _, corner := range [4]geom.Vec2{
		{X: bb.Min.X, Y: bb.Min.Y},
		{X: bb.Max.X, Y: bb.Min.Y},
		{X: bb.Max.X, Y: bb.Max.Y},
		{X: bb.Min.X, Y: bb.Max.Y},
	} {
		x := (corner.X*c - corner.Y*s) * i.ScalingFactor
		y := (corner.X*s + corner.Y*c) * i.ScalingFactor
		out.Merge(geom.Vec3{X: x, Y: y, Z: bb.Min.Z * i.ScalingFactor})
		out.Merge(geom.Vec3{X: x, Y: y, Z: bb.Max.Z * i.ScalingFactor})
	}
	if !dontTranslate {
		out.Translate(i.Offset.X, i.Offset.Y, 0)
	}
	return out
}

func cosSin(angle float64) (float64, float64) {
	return math.Cos(angle), math.Sin(angle)
}
