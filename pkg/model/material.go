package model

import "github.com/fabworks/modelio/pkg/printcfg"

// Material is a print material shared across the volumes of a model.
// Attributes carry the file-format fields (at least "name", often
// "displaycolor"); Config carries material-level print settings.
type Material struct {
	Attributes map[string]string
	Config     printcfg.Config

	model *Model
}

// Model returns the owning model.
func (m *Material) Model() *Model {
	return m.model
}

// Apply merges file-format attributes into the material.
func (m *Material) Apply(attributes map[string]string) {
	for k, v := range attributes {
		m.Attributes[k] = v
	}
}

// Name returns the "name" attribute, or empty.
func (m *Material) Name() string {
	return m.Attributes["name"]
}
