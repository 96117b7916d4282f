// Package tmf reads and writes 3MF packages: a ZIP archive holding a
// content-type manifest, a relationships part and the 3D model XML,
// with the materials extension and a private namespace for volume
// boundaries and print settings.
package tmf

import "errors"

// Package entry names. Entries are written in this order: types,
// relationships, model.
const (
	contentTypesEntry = "[Content_Types].xml"
	relsEntry         = "_rels/.rels"
	modelEntry        = "3D/3dmodel.model"
)

// XML namespaces, used literally.
const (
	contentTypesNS  = "http://schemas.openxmlformats.org/package/2006/content-types"
	relationshipsNS = "http://schemas.openxmlformats.org/package/2006/relationships"
	coreNS          = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
	materialNS      = "http://schemas.microsoft.com/3dmanufacturing/material/2015/02"
	slic3rNS        = "http://schemas.slic3r.org/3mf/2017/06"

	startPartType = "http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"
)

// producerVersion is stamped into the model metadata on write.
const producerVersion = "1.3.1"

// writeBufferMaxCapacity is the in-memory XML buffer size at which the
// writer flushes to the open archive entry. The check runs after each
// vertex, triangle and object, so the buffer can pass this size by the
// last element appended; metadata, materials and build items are not
// checked and are flushed at the end of the entry.
const writeBufferMaxCapacity = 64 << 10

// 3MF errors.
var (
	ErrMissingEntry     = errors.New("tmf: required package entry missing")
	ErrBadRoot          = errors.New("tmf: root element is not <model>")
	ErrMissingAttribute = errors.New("tmf: missing required attribute")
	ErrBadNumber        = errors.New("tmf: malformed numeric value")
	ErrUnknownObject    = errors.New("tmf: reference to unknown object id")
	ErrBadVolumeRange   = errors.New("tmf: volume triangle range out of bounds")
)
