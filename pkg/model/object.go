package model

import (
	"sort"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/mesh"
	"github.com/fabworks/modelio/pkg/printcfg"
)

// LayerHeightRange overrides the layer height for a span of Z
// coordinates. Ranges on one object must not overlap.
type LayerHeightRange struct {
	MinZ, MaxZ float64
	Height     float64
}

// Object is a printable part: one or more mesh volumes, the instances
// placing it on the bed and its object-level print settings.
type Object struct {
	Name      string
	InputFile string

	Volumes   []*Volume
	Instances []*Instance

	Config            printcfg.Config
	LayerHeightRanges []LayerHeightRange

	// OriginTranslation accumulates the translation applied when the
	// object was centered. It is subtracted from vertices on write and
	// compensated in the instance transform so re-import is stable.
	OriginTranslation geom.Vec3

	// PartNumber is the optional part number; -1 means absent.
	PartNumber int

	model *Model

	boundingBox      geom.BoundingBox3
	boundingBoxValid bool
}

// Model returns the owning model.
func (o *Object) Model() *Model {
	return o.model
}

// AddVolume appends a new volume owning the given mesh.
func (o *Object) AddVolume(m *mesh.TriangleMesh) *Volume {
	v := &Volume{object: o, Mesh: m}
	o.Volumes = append(o.Volumes, v)
	o.InvalidateBoundingBox()
	return v
}

// AddVolumeCopy appends a deep copy of another volume. The material
// referenced by the copy is carried into this object's model when it
// is not already present.
func (o *Object) AddVolumeCopy(other *Volume) *Volume {
	v := o.AddVolume(other.Mesh.Clone())
	v.Name = other.Name
	v.Config = other.Config.Clone()
	v.Modifier = other.Modifier
	v.MaterialID = other.MaterialID
	if other.MaterialID != "" && other.object != nil && other.object.model != nil {
		if src := other.object.model.GetMaterial(other.MaterialID); src != nil && o.model.GetMaterial(other.MaterialID) == nil {
			o.model.AddMaterialCopy(other.MaterialID, src)
		}
	}
	return v
}

// DeleteVolume removes the volume at index.
func (o *Object) DeleteVolume(idx int) {
	if idx < 0 || idx >= len(o.Volumes) {
		return
	}
	o.Volumes = append(o.Volumes[:idx], o.Volumes[idx+1:]...)
	o.InvalidateBoundingBox()
}

// ClearVolumes drops every volume.
func (o *Object) ClearVolumes() {
	o.Volumes = nil
	o.InvalidateBoundingBox()
}

// AddInstance appends an identity instance.
func (o *Object) AddInstance() *Instance {
	inst := &Instance{object: o, ScalingFactor: 1}
	o.Instances = append(o.Instances, inst)
	o.InvalidateBoundingBox()
	return inst
}

// AddInstanceCopy appends a copy of another instance.
func (o *Object) AddInstanceCopy(other *Instance) *Instance {
	inst := o.AddInstance()
	inst.Rotation = other.Rotation
	inst.ScalingFactor = other.ScalingFactor
	inst.Offset = other.Offset
	return inst
}

// DeleteInstance removes the instance at index.
func (o *Object) DeleteInstance(idx int) {
	if idx < 0 || idx >= len(o.Instances) {
		return
	}
	o.Instances = append(o.Instances[:idx], o.Instances[idx+1:]...)
	o.InvalidateBoundingBox()
}

// DeleteLastInstance removes the most recently added instance.
func (o *Object) DeleteLastInstance() {
	o.DeleteInstance(len(o.Instances) - 1)
}

// ClearInstances drops every instance.
func (o *Object) ClearInstances() {
	o.Instances = nil
	o.InvalidateBoundingBox()
}

// AddLayerHeightRange inserts a non-overlapping layer height override
// and keeps the set sorted by MinZ. Overlapping ranges are rejected.
func (o *Object) AddLayerHeightRange(r LayerHeightRange) bool {
	for _, existing := range o.LayerHeightRanges {
		if r.MinZ < existing.MaxZ && existing.MinZ < r.MaxZ {
			return false
		}
	}
	o.LayerHeightRanges = append(o.LayerHeightRanges, r)
	sort.Slice(o.LayerHeightRanges, func(a, b int) bool {
		return o.LayerHeightRanges[a].MinZ < o.LayerHeightRanges[b].MinZ
	})
	return true
}

// BoundingBox returns the cached union of the instance-transformed
// volume bounds, recomputing it when invalid.
func (o *Object) BoundingBox() geom.BoundingBox3 {
	if !o.boundingBoxValid {
		o.updateBoundingBox()
	}
	return o.boundingBox
}

// InvalidateBoundingBox marks the cached bounding box stale.
func (o *Object) InvalidateBoundingBox() {
	o.boundingBoxValid = false
}

func (o *Object) updateBoundingBox() {
	var bb geom.BoundingBox3
	for i := range o.Instances {
		bb.MergeBox(o.InstanceBoundingBox(i))
	}
	if !bb.Defined {
		bb = o.RawBoundingBox()
	}
	o.boundingBox = bb
	o.boundingBoxValid = true
}

// RawBoundingBox returns the bounds of the non-modifier volumes
// without any instance transform.
func (o *Object) RawBoundingBox() geom.BoundingBox3 {
	var bb geom.BoundingBox3
	for _, v := range o.Volumes {
		if v.Modifier {
			continue
		}
		bb.MergeBox(v.Mesh.BoundingBox())
	}
	return bb
}

// InstanceBoundingBox returns the bounds of the non-modifier volumes
// transformed by the instance at index.
func (o *Object) InstanceBoundingBox(idx int) geom.BoundingBox3 {
	var bb geom.BoundingBox3
	if idx < 0 || idx >= len(o.Instances) {
		return bb
	}
	inst := o.Instances[idx]
	for _, v := range o.Volumes {
		if v.Modifier {
			continue
		}
		bb.MergeBox(inst.TransformBoundingBox(v.Mesh.BoundingBox(), false))
	}
	return bb
}

// Repair runs mesh repair on every volume.
func (o *Object) Repair() {
	for _, v := range o.Volumes {
		v.Mesh.Repair()
	}
}

// Mesh flattens all volumes into one mesh per instance, instance
// transforms applied.
func (o *Object) Mesh() *mesh.TriangleMesh {
	out := mesh.New(nil)
	raw := o.RawMesh()
	for _, inst := range o.Instances {
		m := raw.Clone()
		inst.TransformMesh(m, false)
		out.Merge(m)
	}
	if len(o.Instances) == 0 {
		out.Merge(raw)
	}
	return out
}

// RawMesh flattens all non-modifier volumes into one mesh, ignoring
// instances.
func (o *Object) RawMesh() *mesh.TriangleMesh {
	out := mesh.New(nil)
	for _, v := range o.Volumes {
		if v.Modifier {
			continue
		}
		out.Merge(v.Mesh)
	}
	return out
}

// AlignToGround drops the object so its lowest point sits at Z = 0.
func (o *Object) AlignToGround() {
	bb := o.RawBoundingBox()
	if !bb.Defined {
		return
	}
	o.Translate(0, 0, -bb.Min.Z)
}

// CenterAroundOrigin centers the raw geometry at the origin,
// accumulates the shift into OriginTranslation and compensates the
// instance offsets so placements on the bed do not move.
func (o *Object) CenterAroundOrigin() {
	var bb geom.BoundingBox3
	for _, v := range o.Volumes {
		if v.Modifier {
			continue
		}
		bb.MergeBox(v.Mesh.BoundingBox())
	}
	if !bb.Defined {
		return
	}
	size := bb.Size()
	shift := geom.Vec3{
		X: -bb.Min.X - size.X/2,
		Y: -bb.Min.Y - size.Y/2,
		Z: -bb.Min.Z,
	}
	o.Translate(shift.X, shift.Y, shift.Z)
	for _, inst := range o.Instances {
		inst.Offset.X -= shift.X
		inst.Offset.Y -= shift.Y
	}
	o.InvalidateBoundingBox()
}

// Translate shifts every volume mesh and accumulates the shift into
// OriginTranslation so a later write can undo it.
func (o *Object) Translate(x, y, z float64) {
	for _, v := range o.Volumes {
		v.Mesh.Translate(x, y, z)
	}
	o.OriginTranslation = o.OriginTranslation.Add(geom.Vec3{X: x, Y: y, Z: z})
	if o.boundingBoxValid {
		o.boundingBox.Translate(x, y, z)
	}
}

// Scale scales every volume mesh uniformly about the origin. The
// origin translation no longer applies and is reset.
func (o *Object) Scale(factor float64) {
	o.ScaleXYZ(geom.Vec3{X: factor, Y: factor, Z: factor})
}

// ScaleXYZ scales every volume mesh per-axis about the origin.
func (o *Object) ScaleXYZ(versor geom.Vec3) {
	for _, v := range o.Volumes {
		v.Mesh.ScaleXYZ(versor)
	}
	o.OriginTranslation = geom.Vec3{}
	o.InvalidateBoundingBox()
}

// Rotate rotates every volume mesh about the given axis. Only Z is
// meaningful for placement; X and Y reorient the part itself.
func (o *Object) Rotate(angle float64, axis geom.Axis) {
	for _, v := range o.Volumes {
		switch axis {
		case geom.Z:
			v.Mesh.RotateZ(angle)
		default:
			// Reorientation about X or Y goes through the affine path.
			v.Mesh.Transform(rotationAffine(angle, axis))
		}
	}
	o.OriginTranslation = geom.Vec3{}
	o.InvalidateBoundingBox()
}

// Mirror flips every volume mesh across the plane normal to axis.
func (o *Object) Mirror(axis geom.Axis) {
	for _, v := range o.Volumes {
		v.Mesh.Mirror(axis)
	}
	o.OriginTranslation = geom.Vec3{}
	o.InvalidateBoundingBox()
}

// TransformByInstance bakes an instance's transform into the object
// geometry. Every instance then has the baked rotation and offset
// subtracted and its scale divided by the baked scale, so the baked
// instance becomes the identity placement. The effective placement of
// another instance is kept only when it shares the baked instance's
// rotation and scale.
func (o *Object) TransformByInstance(inst Instance, dontTranslate bool) {
	o.Rotate(inst.Rotation, geom.Z)
	o.Scale(inst.ScalingFactor)
	if !dontTranslate {
		o.Translate(inst.Offset.X, inst.Offset.Y, 0)
	}
	for _, i := range o.Instances {
		i.Rotation -= inst.Rotation
		i.ScalingFactor /= inst.ScalingFactor
		if !dontTranslate {
			i.Offset = i.Offset.Sub(inst.Offset)
		}
	}
	o.OriginTranslation = geom.Vec3{}
	o.InvalidateBoundingBox()
}

// MaterialsCount returns the number of distinct material ids used by
// the volumes.
func (o *Object) MaterialsCount() int {
	seen := make(map[string]struct{})
	for _, v := range o.Volumes {
		if v.MaterialID != "" {
			seen[v.MaterialID] = struct{}{}
		}
	}
	return len(seen)
}

// FacetsCount returns the facet total over all non-modifier volumes.
func (o *Object) FacetsCount() int {
	n := 0
	for _, v := range o.Volumes {
		if v.Modifier {
			continue
		}
		n += v.Mesh.FacetCount()
	}
	return n
}

// NeedsRepair reports whether any volume mesh has not been repaired.
func (o *Object) NeedsRepair() bool {
	for _, v := range o.Volumes {
		if v.Mesh.NeedsRepair() {
			return true
		}
	}
	return false
}

func rotationAffine(angle float64, axis geom.Axis) geom.Affine {
	c, s := cosSin(angle)
	switch axis {
	case geom.X:
		return geom.Affine{
			1, 0, 0,
			0, c, s,
			0, -s, c,
			0, 0, 0,
		}
	case geom.Y:
		return geom.Affine{
			c, 0, -s,
			0, 1, 0,
			s, 0, c,
			0, 0, 0,
		}
	default:
		return geom.Affine{
			c, s, 0,
			-s, c, 0,
			0, 0, 1,
			0, 0, 0,
		}
	}
}
