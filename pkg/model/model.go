// Package model holds the in-memory scene the file format codecs read
// and write: a Model owning Objects, each Object owning mesh Volumes
// and placement Instances, plus shared Materials and metadata.
package model

import (
	"errors"
	"fmt"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/mesh"
)

// Model errors.
var (
	ErrNoObjects       = errors.New("model has no objects")
	ErrMultipleObjects = errors.New("operation supports a single object only")
	ErrArrangeOverflow = errors.New("objects do not fit in the print area")
)

// Model is the print bed content: objects with their instances, the
// materials they reference and free-form metadata.
type Model struct {
	Objects   []*Object
	Materials map[string]*Material
	Metadata  map[string]string
}

// New returns an empty model.
func New() *Model {
	return &Model{
		Materials: make(map[string]*Material),
		Metadata:  make(map[string]string),
	}
}

// Clone returns a deep copy of the model and everything it owns.
func (m *Model) Clone() *Model {
	clone := New()
	for k, v := range m.Metadata {
		clone.Metadata[k] = v
	}
	for id, mat := range m.Materials {
		clone.AddMaterialCopy(id, mat)
	}
	for _, o := range m.Objects {
		clone.AddObjectCopy(o, true)
	}
	return clone
}

// AddObject appends a new empty object owned by the model.
func (m *Model) AddObject() *Object {
	o := &Object{model: m, PartNumber: -1}
	m.Objects = append(m.Objects, o)
	return o
}

// AddObjectCopy appends a deep copy of another object. Volumes are
// copied only when copyVolumes is set; instances always are.
func (m *Model) AddObjectCopy(other *Object, copyVolumes bool) *Object {
	o := m.AddObject()
	o.Name = other.Name
	o.InputFile = other.InputFile
	o.Config = other.Config.Clone()
	o.LayerHeightRanges = append([]LayerHeightRange(nil), other.LayerHeightRanges...)
	o.OriginTranslation = other.OriginTranslation
	o.PartNumber = other.PartNumber
	if copyVolumes {
		for _, v := range other.Volumes {
			o.AddVolumeCopy(v)
		}
	}
	for _, inst := range other.Instances {
		o.AddInstanceCopy(inst)
	}
	return o
}

// DeleteObject removes the object at index, preserving the order of
// the rest.
func (m *Model) DeleteObject(idx int) {
	if idx < 0 || idx >= len(m.Objects) {
		return
	}
	m.Objects = append(m.Objects[:idx], m.Objects[idx+1:]...)
}

// ClearObjects drops every object.
func (m *Model) ClearObjects() {
	m.Objects = nil
}

// AddMaterial creates an empty material under id, destroying any prior
// material with the same id.
func (m *Model) AddMaterial(id string) *Material {
	mat := &Material{
		model:      m,
		Attributes: make(map[string]string),
	}
	m.Materials[id] = mat
	return mat
}

// AddMaterialCopy creates a material under id as a deep copy of other,
// destroying any prior material with the same id.
func (m *Model) AddMaterialCopy(id string, other *Material) *Material {
	mat := m.AddMaterial(id)
	for k, v := range other.Attributes {
		mat.Attributes[k] = v
	}
	mat.Config = other.Config.Clone()
	return mat
}

// GetMaterial returns the material under id, or nil.
func (m *Model) GetMaterial(id string) *Material {
	return m.Materials[id]
}

// DeleteMaterial removes the material under id.
func (m *Model) DeleteMaterial(id string) {
	delete(m.Materials, id)
}

// ClearMaterials drops every material.
func (m *Model) ClearMaterials() {
	m.Materials = make(map[string]*Material)
}

// HasObjectsWithNoInstances reports whether any object has zero
// instances.
func (m *Model) HasObjectsWithNoInstances() bool {
	for _, o := range m.Objects {
		if len(o.Instances) == 0 {
			return true
		}
	}
	return false
}

// AddDefaultInstances appends one identity instance to every object
// lacking any.
func (m *Model) AddDefaultInstances() {
	for _, o := range m.Objects {
		if len(o.Instances) == 0 {
			o.AddInstance()
		}
	}
}

// BoundingBox returns the union of every object's instance-transformed
// bounding box.
func (m *Model) BoundingBox() geom.BoundingBox3 {
	var bb geom.BoundingBox3
	for _, o := range m.Objects {
		bb.MergeBox(o.BoundingBox())
	}
	return bb
}

// Repair runs mesh repair on every volume of every object.
func (m *Model) Repair() {
	for _, o := range m.Objects {
		o.Repair()
	}
}

// CenterInstancesAroundPoint shifts every instance offset so that the
// XY bounding box of the whole model is centered at p.
func (m *Model) CenterInstancesAroundPoint(p geom.Vec2) {
	bb := m.BoundingBox()
	if !bb.Defined {
		return
	}
	size := bb.Size()
	shiftX := -bb.Min.X + p.X - size.X/2
	shiftY := -bb.Min.Y + p.Y - size.Y/2
	for _, o := range m.Objects {
		for _, inst := range o.Instances {
			inst.Offset.X += shiftX
			inst.Offset.Y += shiftY
		}
		o.InvalidateBoundingBox()
	}
}

// AlignInstancesToOrigin translates instances so the XY bounding box
// is centered at the origin.
func (m *Model) AlignInstancesToOrigin() {
	bb := m.BoundingBox()
	if !bb.Defined {
		return
	}
	size := bb.Size()
	m.CenterInstancesAroundPoint(geom.Vec2{X: size.X / 2, Y: size.Y / 2})
	m.CenterInstancesAroundPoint(geom.Vec2{})
}

// Translate shifts every object, meshes and origin translation
// included.
func (m *Model) Translate(x, y, z float64) {
	for _, o := range m.Objects {
		o.Translate(x, y, z)
	}
}

// Mesh flattens the whole model into a single mesh with all instance
// transforms applied.
func (m *Model) Mesh() *mesh.TriangleMesh {
	out := mesh.New(nil)
	for _, o := range m.Objects {
		out.Merge(o.Mesh())
	}
	return out
}

// RawMesh flattens the whole model into a single mesh ignoring
// instances.
func (m *Model) RawMesh() *mesh.TriangleMesh {
	out := mesh.New(nil)
	for _, o := range m.Objects {
		out.Merge(o.RawMesh())
	}
	return out
}

// LooksLikeMultipartObject reports whether the model is probably one
// logical part imported as a single object with several independent
// body volumes: exactly one object, more than one volume, none of
// them modifiers and none carrying volume-level configuration.
func (m *Model) LooksLikeMultipartObject() bool {
	if len(m.Objects) != 1 {
		return false
	}
	o := m.Objects[0]
	if len(o.Volumes) < 2 {
		return false
	}
	for _, v := range o.Volumes {
		if v.Modifier || v.Config.Len() > 0 {
			return false
		}
	}
	return true
}

// ConvertMultipartObject promotes each volume of a single multi-part
// object into its own object, carrying over instances and per-volume
// configuration.
func (m *Model) ConvertMultipartObject() {
	if len(m.Objects) != 1 {
		return
	}
	src := m.Objects[0]
	for _, v := range src.Volumes {
		o := m.AddObject()
		o.InputFile = src.InputFile
		o.OriginTranslation = src.OriginTranslation
		if v.Name != "" {
			o.Name = v.Name
		} else {
			o.Name = src.Name
		}
		nv := o.AddVolumeCopy(v)
		nv.Name = v.Name
		for _, inst := range src.Instances {
			o.AddInstanceCopy(inst)
		}
	}
	m.DeleteObject(0)
}

// Duplicate clones the whole model's instances n-fold and spreads the
// copies on a grid, keeping relative positions within each copy.
func (m *Model) Duplicate(copies int, dist float64, bb *geom.BoundingBox2) error {
	if copies < 2 {
		return nil
	}
	size := m.BoundingBox().Size()
	sizes := make([]geom.Vec2, copies-1)
	for i := range sizes {
		sizes[i] = geom.Vec2{X: size.X, Y: size.Y}
	}
	positions, err := m.arrange(sizes, dist, bb)
	if err != nil {
		return err
	}
	for _, o := range m.Objects {
		existing := append([]*Instance(nil), o.Instances...)
		for _, inst := range existing {
			for _, pos := range positions {
				ni := o.AddInstanceCopy(inst)
				ni.Offset.X += pos.X
				ni.Offset.Y += pos.Y
			}
		}
		o.InvalidateBoundingBox()
	}
	return nil
}

// DuplicateObjects appends copies of every instance of every object,
// then rearranges everything.
func (m *Model) DuplicateObjects(copies int, dist float64, bb *geom.BoundingBox2) error {
	if copies < 2 {
		return nil
	}
	for _, o := range m.Objects {
		existing := append([]*Instance(nil), o.Instances...)
		for i := 2; i <= copies; i++ {
			for _, inst := range existing {
				o.AddInstanceCopy(inst)
			}
		}
	}
	return m.ArrangeObjects(dist, bb)
}

// DuplicateObjectsGrid lays x*y instances of a single object out on a
// regular grid.
func (m *Model) DuplicateObjectsGrid(x, y int, dist float64) error {
	if len(m.Objects) == 0 {
		return ErrNoObjects
	}
	if len(m.Objects) > 1 {
		return fmt.Errorf("%w: grid duplication", ErrMultipleObjects)
	}
	o := m.Objects[0]
	o.ClearInstances()
	size := o.RawBoundingBox().Size()
	for i := 0; i < x; i++ {
		for j := 0; j < y; j++ {
			inst := o.AddInstance()
			inst.Offset.X = (size.X + dist) * float64(i)
			inst.Offset.Y = (size.Y + dist) * float64(j)
		}
	}
	o.InvalidateBoundingBox()
	return nil
}
