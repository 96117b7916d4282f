package model

import (
	"github.com/fabworks/modelio/pkg/mesh"
	"github.com/fabworks/modelio/pkg/printcfg"
)

// Volume is one mesh region of an object: a printable body, or a
// modifier region overriding print settings for the space it occupies.
type Volume struct {
	Name string
	Mesh *mesh.TriangleMesh

	Config printcfg.Config

	// Modifier marks the volume as a parameter-override region rather
	// than printable geometry.
	Modifier bool

	// MaterialID names a material in the owning model, or holds a
	// legacy integer id carried over from older files. Empty means no
	// material.
	MaterialID string

	object *Object
}

// Object returns the owning object.
func (v *Volume) Object() *Object {
	return v.object
}

// Material resolves MaterialID against the owning model, or nil.
func (v *Volume) Material() *Material {
	if v.MaterialID == "" || v.object == nil || v.object.model == nil {
		return nil
	}
	return v.object.model.GetMaterial(v.MaterialID)
}

// SetMaterial stores a copy of the material under id in the owning
// model and points this volume at it.
func (v *Volume) SetMaterial(id string, material *Material) {
	if v.object == nil || v.object.model == nil {
		return
	}
	v.object.model.AddMaterialCopy(id, material)
	v.MaterialID = id
}
