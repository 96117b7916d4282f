package tmf

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/mesh"
	"github.com/fabworks/modelio/pkg/model"
	"github.com/fabworks/modelio/pkg/pack"
	"github.com/fabworks/modelio/pkg/xmlstream"
)

// Read parses the 3MF package at path into m. On failure m may hold a
// partial model and must be discarded.
func Read(path string, m *model.Model) error {
	arch, err := pack.Open(path, pack.Read)
	if err != nil {
		return fmt.Errorf("tmf: %w", err)
	}
	defer arch.Close()

	for _, required := range []string{contentTypesEntry, relsEntry, modelEntry} {
		if !arch.Contains(required) {
			return fmt.Errorf("%w: %s", ErrMissingEntry, required)
		}
	}

	// The model part is extracted to a scratch file before parsing;
	// the file is removed on every exit path.
	tmp, err := os.CreateTemp("", "3dmodel-*.model")
	if err != nil {
		return fmt.Errorf("tmf: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := arch.EntryOpen(modelEntry); err != nil {
		return fmt.Errorf("tmf: %w", err)
	}
	if err := arch.EntryFread(tmpPath); err != nil {
		arch.EntryClose()
		return fmt.Errorf("tmf: %w", err)
	}
	if err := arch.EntryClose(); err != nil {
		return fmt.Errorf("tmf: %w", err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("tmf: %w", err)
	}
	defer f.Close()

	ctx := newParserContext(m)
	return ctx.parser.Parse(f, ctx)
}

// nodeType tags one open element on the parser stack.
type nodeType int

const (
	nodeUnknown nodeType = iota
	nodeModel
	nodeMetadata
	nodeResources
	nodeBuild
	nodeBaseMaterials
	nodeBase
	nodeSlic3rMaterials
	nodeSlic3rMaterial
	nodeObject
	nodeItem
	nodeMesh
	nodeComponents
	nodeComponent
	nodeVertices
	nodeVertex
	nodeTriangles
	nodeTriangle
	nodeSlic3rVolumes
	nodeSlic3rVolume
	nodeSlic3rMetadata
)

// parserContext is the pushdown state machine fed by the XML driver.
type parserContext struct {
	parser *xmlstream.Parser
	model  *model.Model

	path []nodeType

	object *model.Object
	volume *model.Volume

	// Per-object accumulation: the shared vertex table and the global
	// triangle list later sliced into volumes by <slic3r:volume>.
	objectVertices []geom.Vec3
	triangles      [][3]int
	trianglePIDs   []string

	objectIndex map[string]int

	// objectBase is the destination model's object count before this
	// document; referenceOnly is indexed relative to it.
	objectBase int

	// referenceOnly is cleared for an object when a build item outputs
	// it; objects still flagged at </model> are deleted.
	referenceOnly []bool

	// midToID maps the document-order base material index to the id
	// assigned in the model's material map.
	midToID []string

	metaKey   string
	metaValue strings.Builder

	matMid   string
	matType  string
	matValue strings.Builder
}

func newParserContext(m *model.Model) *parserContext {
	return &parserContext{
		parser:      &xmlstream.Parser{},
		model:       m,
		objectIndex: make(map[string]int),
		objectBase:  len(m.Objects),
	}
}

func (c *parserContext) stop(err error) {
	c.parser.Stop(err)
}

// tag renders an element name with its namespace prefix restored. The
// decoder resolves prefixes to URIs; undeclared prefixes pass through
// verbatim.
func tag(n xml.Name) string {
	switch n.Space {
	case "", coreNS:
		return n.Local
	case slic3rNS, "slic3r":
		return "slic3r:" + n.Local
	case materialNS, "m":
		return "m:" + n.Local
	}
	return "?:" + n.Local
}

func (c *parserContext) StartElement(name xml.Name, attrs []xml.Attr) {
	node := nodeUnknown
	el := tag(name)

	switch len(c.path) {
	case 0:
		if el != "model" {
			c.stop(fmt.Errorf("%w: <%s>", ErrBadRoot, el))
			return
		}
		node = nodeModel
	case 1:
		switch el {
		case "metadata":
			key, ok := xmlstream.Attr(attrs, "name")
			if !ok {
				c.stop(fmt.Errorf("%w: metadata name", ErrMissingAttribute))
				return
			}
			c.metaKey = key
			c.metaValue.Reset()
			node = nodeMetadata
		case "resources":
			node = nodeResources
		case "build":
			node = nodeBuild
		}
	case 2:
		switch {
		case c.top() == nodeResources && el == "basematerials":
			if _, ok := xmlstream.Attr(attrs, "id"); !ok {
				c.stop(fmt.Errorf("%w: basematerials id", ErrMissingAttribute))
				return
			}
			node = nodeBaseMaterials
		case c.top() == nodeResources && el == "slic3r:materials":
			node = nodeSlic3rMaterials
		case c.top() == nodeResources && el == "object":
			id, ok := xmlstream.Attr(attrs, "id")
			if !ok {
				c.stop(fmt.Errorf("%w: object id", ErrMissingAttribute))
				return
			}
			c.object = c.model.AddObject()
			c.objectIndex[id] = len(c.model.Objects) - 1
			c.referenceOnly = append(c.referenceOnly, true)
			if pn, ok := xmlstream.Attr(attrs, "partnumber"); ok {
				if v, err := strconv.Atoi(pn); err == nil {
					c.object.PartNumber = v
				}
			}
			if objName, ok := xmlstream.Attr(attrs, "name"); ok {
				c.object.Name = objName
			}
			c.objectVertices = nil
			c.triangles = nil
			c.trianglePIDs = nil
			node = nodeObject
		case c.top() == nodeBuild && el == "item":
			if err := c.openItem(attrs); err != nil {
				c.stop(err)
				return
			}
			node = nodeItem
		}
	case 3:
		switch {
		case c.top() == nodeBaseMaterials && el == "base":
			id := strconv.Itoa(len(c.midToID))
			mat := c.model.AddMaterial(id)
			for _, a := range attrs {
				mat.Attributes[a.Name.Local] = a.Value
			}
			c.midToID = append(c.midToID, id)
			node = nodeBase
		case c.top() == nodeSlic3rMaterials && el == "slic3r:material":
			mid, okMid := xmlstream.Attr(attrs, "mid")
			typ, okType := xmlstream.Attr(attrs, "type")
			if !okMid || !okType {
				c.stop(fmt.Errorf("%w: slic3r:material mid/type", ErrMissingAttribute))
				return
			}
			c.matMid = mid
			c.matType = typ
			c.matValue.Reset()
			node = nodeSlic3rMaterial
		case c.top() == nodeObject && el == "mesh":
			node = nodeMesh
		case c.top() == nodeObject && el == "components":
			node = nodeComponents
		case c.top() == nodeObject && el == "slic3r:object":
			key, okKey := xmlstream.Attr(attrs, "type")
			val, okVal := xmlstream.Attr(attrs, "config")
			if okKey && okVal && c.object != nil {
				if err := c.object.Config.SetDeserialize(key, val); err != nil {
					c.stop(err)
					return
				}
			}
			node = nodeUnknown
		}
	case 4:
		switch {
		case c.top() == nodeMesh && el == "vertices":
			node = nodeVertices
		case c.top() == nodeMesh && el == "triangles":
			node = nodeTriangles
		case c.top() == nodeMesh && el == "slic3r:volumes":
			node = nodeSlic3rVolumes
		case c.top() == nodeComponents && el == "component":
			if err := c.openComponent(attrs); err != nil {
				c.stop(err)
				return
			}
			node = nodeComponent
		}
	case 5:
		switch {
		case c.top() == nodeVertices && el == "vertex":
			if err := c.openVertex(attrs); err != nil {
				c.stop(err)
				return
			}
			node = nodeVertex
		case c.top() == nodeTriangles && el == "triangle":
			if err := c.openTriangle(attrs); err != nil {
				c.stop(err)
				return
			}
			node = nodeTriangle
		case c.top() == nodeSlic3rVolumes && el == "slic3r:volume":
			if err := c.openVolume(attrs); err != nil {
				c.stop(err)
				return
			}
			node = nodeSlic3rVolume
		}
	case 6:
		if c.top() == nodeSlic3rVolume && el == "slic3r:metadata" {
			key, okKey := xmlstream.Attr(attrs, "type")
			val, okVal := xmlstream.Attr(attrs, "config")
			if c.volume == nil {
				c.stop(fmt.Errorf("%w: slic3r:metadata outside volume", ErrMissingAttribute))
				return
			}
			if okKey && okVal {
				if err := c.volume.Config.SetDeserialize(key, val); err != nil {
					c.stop(err)
					return
				}
			}
			node = nodeSlic3rMetadata
		}
	}

	c.path = append(c.path, node)
}

func (c *parserContext) Characters(data []byte) {
	if len(c.path) == 0 {
		return
	}
	switch c.top() {
	case nodeMetadata:
		c.metaValue.Write(data)
	case nodeSlic3rMaterial:
		c.matValue.Write(data)
	}
}

func (c *parserContext) EndElement(name xml.Name) {
	if len(c.path) == 0 {
		return
	}
	switch c.top() {
	case nodeMetadata:
		c.model.Metadata[c.metaKey] = c.metaValue.String()
		c.metaValue.Reset()
	case nodeSlic3rMaterial:
		c.closeMaterialConfig()
	case nodeMesh:
		// Objects without slic3r:volumes get all triangles as one
		// printable volume.
		if c.object != nil && len(c.object.Volumes) == 0 && len(c.triangles) > 0 {
			if _, err := c.addVolume(0, len(c.triangles)-1, false); err != nil {
				c.stop(err)
				return
			}
		}
	case nodeObject:
		c.objectVertices = nil
		c.triangles = nil
		c.trianglePIDs = nil
		c.object = nil
	case nodeSlic3rVolume:
		c.volume = nil
	case nodeModel:
		// Objects never emitted as build items exist only to be
		// referenced; drop them, highest index first.
		for i := len(c.referenceOnly) - 1; i >= 0; i-- {
			if c.referenceOnly[i] {
				c.model.DeleteObject(c.objectBase + i)
			}
		}
	}
	c.path = c.path[:len(c.path)-1]
}

func (c *parserContext) top() nodeType {
	return c.path[len(c.path)-1]
}

func (c *parserContext) openVertex(attrs []xml.Attr) error {
	var coords [3]float64
	for i, attr := range []string{"x", "y", "z"} {
		s, ok := xmlstream.Attr(attrs, attr)
		if !ok {
			return fmt.Errorf("%w: vertex %s", ErrMissingAttribute, attr)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		coords[i] = v
	}
	c.objectVertices = append(c.objectVertices, geom.Vec3{X: coords[0], Y: coords[1], Z: coords[2]})
	return nil
}

func (c *parserContext) openTriangle(attrs []xml.Attr) error {
	var tri [3]int
	for i, attr := range []string{"v1", "v2", "v3"} {
		s, ok := xmlstream.Attr(attrs, attr)
		if !ok {
			return fmt.Errorf("%w: triangle %s", ErrMissingAttribute, attr)
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		tri[i] = v
	}
	c.triangles = append(c.triangles, tri)
	p1, _ := xmlstream.Attr(attrs, "p1")
	c.trianglePIDs = append(c.trianglePIDs, p1)
	return nil
}

// openVolume slices the object's global triangle list into one model
// volume. The ts/te attributes are inclusive indices into the object's
// triangle list, counted in triangles.
func (c *parserContext) openVolume(attrs []xml.Attr) error {
	ts, okTS := xmlstream.Attr(attrs, "ts")
	te, okTE := xmlstream.Attr(attrs, "te")
	mod, okMod := xmlstream.Attr(attrs, "modifier")
	if !okTS || !okTE || !okMod {
		return fmt.Errorf("%w: slic3r:volume ts/te/modifier", ErrMissingAttribute)
	}
	start, err := strconv.Atoi(ts)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadNumber, ts)
	}
	end, err := strconv.Atoi(te)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadNumber, te)
	}
	v, err := c.addVolume(start, end, mod == "1")
	if err != nil {
		return err
	}
	c.volume = v
	return nil
}

// addVolume materializes triangles [start, end] against the object
// vertex table as a new repaired volume.
func (c *parserContext) addVolume(start, end int, modifier bool) (*model.Volume, error) {
	if c.object == nil {
		return nil, fmt.Errorf("%w: volume outside object", ErrBadVolumeRange)
	}
	if start < 0 || end < start || end >= len(c.triangles) {
		return nil, fmt.Errorf("%w: [%d, %d] of %d", ErrBadVolumeRange, start, end, len(c.triangles))
	}
	built, err := mesh.NewIndexed(c.objectVertices, c.triangles[start:end+1])
	if err != nil {
		return nil, fmt.Errorf("tmf: %w", err)
	}
	built.Repair()
	v := c.object.AddVolume(built)
	v.Modifier = modifier
	if pid := c.trianglePIDs[start]; pid != "" {
		v.MaterialID = c.resolveMaterial(pid)
	}
	return v, nil
}

// resolveMaterial maps a triangle p1 reference to the model material
// id; references outside the base material group pass through as
// legacy ids.
func (c *parserContext) resolveMaterial(p1 string) string {
	if idx, err := strconv.Atoi(p1); err == nil && idx >= 0 && idx < len(c.midToID) {
		return c.midToID[idx]
	}
	return p1
}

func (c *parserContext) closeMaterialConfig() {
	idx, err := strconv.Atoi(c.matMid)
	if err != nil || idx < 0 || idx >= len(c.midToID) {
		return
	}
	mat := c.model.GetMaterial(c.midToID[idx])
	if mat == nil {
		return
	}
	if err := mat.Config.SetDeserialize(c.matType, c.matValue.String()); err != nil {
		c.stop(err)
	}
}

// openItem marks the referenced object as build output and appends an
// instance. Only the scale of the decomposed transform is applied;
// rotation and translation are left out to match the established
// behavior of this format's producer.
func (c *parserContext) openItem(attrs []xml.Attr) error {
	id, ok := xmlstream.Attr(attrs, "objectid")
	if !ok {
		return fmt.Errorf("%w: item objectid", ErrMissingAttribute)
	}
	idx, ok := c.objectIndex[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownObject, id)
	}
	c.referenceOnly[idx-c.objectBase] = false
	inst := c.model.Objects[idx].AddInstance()

	if ts, ok := xmlstream.Attr(attrs, "transform"); ok {
		a, err := geom.ParseAffine(ts)
		if err != nil {
			return fmt.Errorf("tmf: %w", err)
		}
		scale, _, _ := a.Decompose()
		inst.ScalingFactor = scale.X
	}
	return nil
}

// openComponent flattens an object reference into a new volume of the
// current object, the component transform applied to a copy of the
// referenced mesh.
func (c *parserContext) openComponent(attrs []xml.Attr) error {
	id, ok := xmlstream.Attr(attrs, "objectid")
	if !ok {
		return fmt.Errorf("%w: component objectid", ErrMissingAttribute)
	}
	idx, ok := c.objectIndex[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownObject, id)
	}
	if c.object == nil {
		return fmt.Errorf("%w: component outside object", ErrUnknownObject)
	}
	ref := c.model.Objects[idx]
	m := ref.RawMesh()
	if ts, ok := xmlstream.Attr(attrs, "transform"); ok {
		a, err := geom.ParseAffine(ts)
		if err != nil {
			return fmt.Errorf("tmf: %w", err)
		}
		m.Transform(a)
	}
	m.Repair()
	c.object.AddVolume(m)
	return nil
}
