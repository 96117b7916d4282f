package amf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/mesh"
	"github.com/fabworks/modelio/pkg/model"
	"github.com/fabworks/modelio/pkg/pack"
	"github.com/fabworks/modelio/pkg/xmlstream"
)

// Read parses the AMF file at path into m. The file may be plain XML
// or a deflate archive wrapping exactly one XML entry; an archive with
// more than one file entry fails and leaves m untouched. On any other
// parse failure m may hold a partial model and must be discarded.
func Read(path string, m *model.Model) error {
	head := make([]byte, len(zipMagic))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("amf: %w", err)
	}
	n, _ := f.Read(head)
	f.Close()

	var data []byte
	if n == len(zipMagic) && string(head) == zipMagic {
		data, err = readArchived(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return parse(bytes.NewReader(data), m)
}

// readArchived extracts the single XML entry from the deflate archive
// form. Entry paths may contain subdirectories; more than one file
// entry is rejected.
func readArchived(path string) ([]byte, error) {
	arch, err := pack.Open(path, pack.Read)
	if err != nil {
		return nil, fmt.Errorf("amf: %w", err)
	}
	defer arch.Close()

	entries := arch.Entries()
	if len(entries) != 1 {
		return nil, fmt.Errorf("%w: %d entries", ErrMultipleEntries, len(entries))
	}
	if err := arch.EntryOpen(entries[0]); err != nil {
		return nil, fmt.Errorf("amf: %w", err)
	}
	defer arch.EntryClose()
	data, err := arch.EntryRead()
	if err != nil {
		return nil, fmt.Errorf("amf: %w", err)
	}
	return data, nil
}

// nodeType tags one open element on the parser stack.
type nodeType int

const (
	nodeUnknown nodeType = iota
	nodeAMF
	nodeObject
	nodeMesh
	nodeVertices
	nodeVertex
	nodeCoordinates
	nodeCoordinate
	nodeVolume
	nodeTriangle
	nodeTriangleIndex
	nodeMaterial
	nodeMetadata
	nodeConstellation
	nodeInstance
	nodeInstanceValue
)

// metaTarget selects which entity an open <metadata> element belongs
// to.
type metaTarget int

const (
	metaNone metaTarget = iota
	metaModel
	metaObject
	metaVolume
	metaMaterial
)

// parserContext is the pushdown state machine fed by the XML driver.
type parserContext struct {
	parser *xmlstream.Parser
	model  *model.Model

	path  []nodeType
	value [3]string

	object   *model.Object
	volume   *model.Volume
	material *model.Material

	vertices []geom.Vec3
	facets   [][3]int

	objectIndex map[string]int

	valueIdx   int
	metaKey    string
	metaTarget metaTarget
	metaValue  strings.Builder

	instObjectID string
}

func parse(r *bytes.Reader, m *model.Model) error {
	ctx := &parserContext{
		parser:      &xmlstream.Parser{},
		model:       m,
		objectIndex: make(map[string]int),
	}
	return ctx.parser.Parse(r, ctx)
}

func (c *parserContext) stop(err error) {
	c.parser.Stop(err)
}

func (c *parserContext) StartElement(name xml.Name, attrs []xml.Attr) {
	node := nodeUnknown
	local := name.Local

	switch len(c.path) {
	case 0:
		if local != "amf" {
			c.stop(fmt.Errorf("%w: <%s>", ErrBadRoot, local))
			return
		}
		if unit, ok := xmlstream.Attr(attrs, "unit"); ok && unit != "millimeter" {
			c.stop(fmt.Errorf("%w: %q", ErrBadUnit, unit))
			return
		}
		node = nodeAMF
	case 1:
		switch local {
		case "object":
			id, ok := xmlstream.Attr(attrs, "id")
			if !ok {
				c.stop(fmt.Errorf("%w: object id", ErrMissingAttribute))
				return
			}
			c.object = c.model.AddObject()
			c.objectIndex[id] = len(c.model.Objects) - 1
			c.vertices = nil
			node = nodeObject
		case "material":
			id, ok := xmlstream.Attr(attrs, "id")
			if !ok {
				c.stop(fmt.Errorf("%w: material id", ErrMissingAttribute))
				return
			}
			c.material = c.model.AddMaterial(id)
			node = nodeMaterial
		case "constellation":
			node = nodeConstellation
		case "metadata":
			node = c.openMetadata(attrs, metaModel)
		}
	case 2:
		switch {
		case c.top() == nodeObject && local == "mesh":
			c.vertices = nil
			node = nodeMesh
		case c.top() == nodeObject && local == "metadata":
			node = c.openMetadata(attrs, metaObject)
		case c.top() == nodeMaterial && local == "metadata":
			node = c.openMetadata(attrs, metaMaterial)
		case c.top() == nodeConstellation && local == "instance":
			id, ok := xmlstream.Attr(attrs, "objectid")
			if !ok {
				c.stop(fmt.Errorf("%w: instance objectid", ErrMissingAttribute))
				return
			}
			c.instObjectID = id
			c.value[0], c.value[1], c.value[2] = "", "", ""
			node = nodeInstance
		}
	case 3:
		switch {
		case c.top() == nodeMesh && local == "vertices":
			node = nodeVertices
		case c.top() == nodeMesh && local == "volume":
			c.volume = c.object.AddVolume(mesh.New(nil))
			if id, ok := xmlstream.Attr(attrs, "materialid"); ok {
				c.volume.MaterialID = id
			}
			c.facets = nil
			node = nodeVolume
		case c.top() == nodeInstance:
			switch local {
			case "deltax":
				c.valueIdx = 0
				node = nodeInstanceValue
			case "deltay":
				c.valueIdx = 1
				node = nodeInstanceValue
			case "rz":
				c.valueIdx = 2
				node = nodeInstanceValue
			}
		}
	case 4:
		switch {
		case c.top() == nodeVertices && local == "vertex":
			c.value[0], c.value[1], c.value[2] = "", "", ""
			node = nodeVertex
		case c.top() == nodeVolume && local == "triangle":
			c.value[0], c.value[1], c.value[2] = "", "", ""
			node = nodeTriangle
		case c.top() == nodeVolume && local == "metadata":
			node = c.openMetadata(attrs, metaVolume)
		}
	case 5:
		switch {
		case c.top() == nodeVertex && local == "coordinates":
			node = nodeCoordinates
		case c.top() == nodeTriangle:
			switch local {
			case "v1":
				c.valueIdx = 0
				node = nodeTriangleIndex
			case "v2":
				c.valueIdx = 1
				node = nodeTriangleIndex
			case "v3":
				c.valueIdx = 2
				node = nodeTriangleIndex
			}
		}
	case 6:
		if c.top() == nodeCoordinates {
			switch local {
			case "x":
				c.valueIdx = 0
				node = nodeCoordinate
			case "y":
				c.valueIdx = 1
				node = nodeCoordinate
			case "z":
				c.valueIdx = 2
				node = nodeCoordinate
			}
		}
	}

	c.path = append(c.path, node)
}

// openMetadata captures the metadata key attribute. AMF files use
// either type= or name= depending on producer; both are accepted.
func (c *parserContext) openMetadata(attrs []xml.Attr, target metaTarget) nodeType {
	key, ok := xmlstream.Attr(attrs, "type")
	if !ok {
		key, ok = xmlstream.Attr(attrs, "name")
	}
	if !ok {
		c.stop(fmt.Errorf("%w: metadata type", ErrMissingAttribute))
		return nodeUnknown
	}
	c.metaKey = key
	c.metaTarget = target
	c.metaValue.Reset()
	return nodeMetadata
}

func (c *parserContext) Characters(data []byte) {
	if len(c.path) == 0 {
		return
	}
	switch c.top() {
	case nodeCoordinate, nodeTriangleIndex, nodeInstanceValue:
		c.value[c.valueIdx] += string(data)
	case nodeMetadata:
		c.metaValue.Write(data)
	}
}

func (c *parserContext) EndElement(name xml.Name) {
	if len(c.path) == 0 {
		return
	}
	switch c.top() {
	case nodeVertex:
		v, err := c.parseVec3()
		if err != nil {
			c.stop(err)
			return
		}
		c.vertices = append(c.vertices, v)
	case nodeTriangle:
		tri, err := c.parseTriangle()
		if err != nil {
			c.stop(err)
			return
		}
		c.facets = append(c.facets, tri)
	case nodeVolume:
		built, err := mesh.NewIndexed(c.vertices, c.facets)
		if err != nil {
			c.stop(fmt.Errorf("amf: %w", err))
			return
		}
		built.Repair()
		c.volume.Mesh = built
		c.volume = nil
		c.facets = nil
	case nodeObject:
		c.vertices = nil
		c.object = nil
	case nodeMaterial:
		c.material = nil
	case nodeInstance:
		if err := c.closeInstance(); err != nil {
			c.stop(err)
			return
		}
	case nodeMetadata:
		c.closeMetadata()
	}
	c.path = c.path[:len(c.path)-1]
}

func (c *parserContext) top() nodeType {
	return c.path[len(c.path)-1]
}

func (c *parserContext) parseVec3() (geom.Vec3, error) {
	var out [3]float64
	for i := 0; i < 3; i++ {
		s := strings.TrimSpace(c.value[i])
		if s == "" {
			return geom.Vec3{}, fmt.Errorf("%w: vertex coordinate", ErrMissingValue)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return geom.Vec3{}, fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		out[i] = v
	}
	return geom.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

func (c *parserContext) parseTriangle() ([3]int, error) {
	var out [3]int
	for i := 0; i < 3; i++ {
		s := strings.TrimSpace(c.value[i])
		if s == "" {
			return out, fmt.Errorf("%w: triangle index", ErrMissingValue)
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return out, fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		out[i] = v
	}
	return out, nil
}

// closeInstance appends a constellation placement to its object.
// Missing delta elements default to zero; rz is stored in degrees on
// disk and converted to radians here.
func (c *parserContext) closeInstance() error {
	idx, ok := c.objectIndex[c.instObjectID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownObject, c.instObjectID)
	}
	var vals [3]float64
	for i := 0; i < 3; i++ {
		s := strings.TrimSpace(c.value[i])
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		vals[i] = v
	}
	inst := c.model.Objects[idx].AddInstance()
	inst.Offset = geom.Vec2{X: vals[0], Y: vals[1]}
	inst.Rotation = vals[2] * math.Pi / 180
	return nil
}

func (c *parserContext) closeMetadata() {
	value := c.metaValue.String()
	switch c.metaTarget {
	case metaModel:
		c.model.Metadata[c.metaKey] = value
	case metaObject:
		if c.object == nil {
			return
		}
		switch {
		case c.metaKey == "name":
			c.object.Name = value
		case strings.HasPrefix(c.metaKey, configPrefix):
			if err := c.object.Config.SetDeserialize(strings.TrimPrefix(c.metaKey, configPrefix), value); err != nil {
				c.stop(err)
			}
		}
	case metaVolume:
		if c.volume == nil {
			return
		}
		switch {
		case c.metaKey == "name":
			c.volume.Name = value
		case c.metaKey == "modifier":
			c.volume.Modifier = value == "1"
		case strings.HasPrefix(c.metaKey, configPrefix):
			if err := c.volume.Config.SetDeserialize(strings.TrimPrefix(c.metaKey, configPrefix), value); err != nil {
				c.stop(err)
			}
		}
	case metaMaterial:
		if c.material == nil {
			return
		}
		if strings.HasPrefix(c.metaKey, configPrefix) {
			if err := c.material.Config.SetDeserialize(strings.TrimPrefix(c.metaKey, configPrefix), value); err != nil {
				c.stop(err)
			}
			return
		}
		c.material.Attributes[c.metaKey] = value
	}
	c.metaTarget = metaNone
	c.metaKey = ""
}
